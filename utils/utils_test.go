package utils

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestErrorFromStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
		wantKind   string
	}{
		{"invalid", status.Error(codes.InvalidArgument, "bad"), http.StatusBadRequest, 40000, "InvalidArgument"},
		{"not found", status.Error(codes.NotFound, "missing"), http.StatusNotFound, 40400, "NotFound"},
		{"exists", status.Error(codes.AlreadyExists, "dup"), http.StatusConflict, 40900, "AlreadyExists"},
		{"precondition", status.Error(codes.FailedPrecondition, "low"), http.StatusPreconditionFailed, 41200, "FailedPrecondition"},
		{"exhausted", status.Error(codes.ResourceExhausted, "quota"), http.StatusTooManyRequests, 42900, "ResourceExhausted"},
		{"plain error", errors.New("db down"), http.StatusInternalServerError, 50000, "Internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			ErrorFromStatus(c, tt.err, gin.H{"retryAfter": "x"})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), `"error":"`+tt.wantKind+`"`)
			assert.Contains(t, w.Body.String(), `"retryAfter":"x"`)
			assert.NotContains(t, w.Body.String(), "db down")
		})
	}
}

func TestRecoveryWithZap(t *testing.T) {
	r := gin.New()
	r.Use(Ginzap(zap.NewNop(), time.RFC3339, true), RecoveryWithZap(zap.NewNop(), true))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRedisCache_NilClientMisses(t *testing.T) {
	c := NewRedisCache(nil)
	c.SetBytes(context.Background(), "k", []byte("v"), 0)
	_, ok := c.GetBytes(context.Background(), "k")
	assert.False(t, ok)
}

func TestRegisterThrottle_DisabledAllows(t *testing.T) {
	assert.True(t, NewRegisterThrottle(nil, 1).Allow(context.Background(), "1.2.3.4"))
	var nilThrottle *RegisterThrottle
	assert.True(t, nilThrottle.Allow(context.Background(), "1.2.3.4"))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", SanitizeText("<b>hello</b>"))
	assert.Equal(t, "", SanitizeText("<script>alert(1)</script>"))
}

func TestGraceServer_StopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(ln.Addr().String(), http.NotFoundHandler(), zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
