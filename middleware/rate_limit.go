package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/anonid/utils"
)

const limiterIdleTTL = 5 * time.Minute

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// ipLimiters keeps one token bucket per client IP and forgets idle ones.
type ipLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func newIPLimiters(perMinute int) *ipLimiters {
	perMinute = max(perMinute, 1)
	return &ipLimiters{
		limiters: map[string]*rateLimiter{},
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(perMinute/2, 1),
		now:      time.Now,
	}
}

func (l *ipLimiters) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, rl := range l.limiters {
		if now.After(rl.expires) {
			delete(l.limiters, k)
		}
	}
	rl, ok := l.limiters[key]
	if !ok {
		rl = &rateLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = rl
	}
	rl.expires = now.Add(limiterIdleTTL)
	return rl.limiter.AllowN(now, 1)
}

// RateLimitMiddleware applies a simple IP based rate limiter using a token bucket.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	limiters := newIPLimiters(perMinute)
	return func(ctx *gin.Context) {
		if !limiters.allow(ctx.ClientIP()) {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// RegisterThrottle rejects registration attempts from an IP over its per-minute budget.
func RegisterThrottle(t *utils.RegisterThrottle) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !t.Allow(ctx.Request.Context(), ctx.ClientIP()) {
			utils.Error(ctx, http.StatusTooManyRequests, 42902, "too many registration attempts")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
