package utils

import (
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Ginzap logs one line per request. timeFormat formats the request time field; utc forces UTC.
func Ginzap(logger *zap.Logger, timeFormat string, utc bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("request_id", rid)
		c.Header(RequestIDHeader, rid)

		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		c.Next()

		end := time.Now()
		if utc {
			end = end.UTC()
		}
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.String("request_id", rid),
			zap.String("time", end.Format(timeFormat)),
			zap.Duration("latency", end.Sub(start)),
		}
		if len(c.Errors) > 0 {
			for _, e := range c.Errors.Errors() {
				logger.Error(e, fields...)
			}
			return
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn(path, fields...)
			return
		}
		logger.Info(path, fields...)
	}
}

// RecoveryWithZap turns panics into a 500 envelope and logs them. Broken client connections
// are logged without writing a response.
func RecoveryWithZap(logger *zap.Logger, stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			ne, brokenPipe := err.(*net.OpError)
			if brokenPipe {
				brokenPipe = false
				var se *os.SyscallError
				if errors.As(ne.Err, &se) {
					msg := strings.ToLower(se.Error())
					brokenPipe = strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
				}
			}
			req, _ := httputil.DumpRequest(c.Request, false)
			if brokenPipe {
				logger.Error(c.Request.URL.Path, zap.Any("error", err), zap.ByteString("request", req))
				_ = c.Error(ne)
				c.Abort()
				return
			}
			fields := []zap.Field{zap.Any("error", err), zap.ByteString("request", req)}
			if stack {
				fields = append(fields, zap.ByteString("stack", debug.Stack()))
			}
			logger.Error("[Recovery from panic]", fields...)
			Error(c, http.StatusInternalServerError, http.StatusInternalServerError, "Internal")
			c.Abort()
		}()
		c.Next()
	}
}
