package utils

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const registerKeyTimeout = 500 * time.Millisecond

func regKey(parts ...string) string {
	return "anonid:reg:" + strings.Join(parts, ":")
}

// RegisterThrottle counts registration attempts per client IP in one-minute buckets.
type RegisterThrottle struct {
	cli   *redis.Client
	limit int
	now   func() time.Time
}

// NewRegisterThrottle allows limit attempts per IP and minute. A nil client or a non-positive
// limit disables the throttle.
func NewRegisterThrottle(cli *redis.Client, limit int) *RegisterThrottle {
	return &RegisterThrottle{cli: cli, limit: limit, now: time.Now}
}

// Allow records an attempt from ip and reports whether it is within the limit. Redis errors
// fail open.
func (t *RegisterThrottle) Allow(ctx context.Context, ip string) bool {
	if t == nil || t.cli == nil || t.limit <= 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, registerKeyTimeout)
	defer cancel()
	key := regKey("attempts", ip, t.now().UTC().Format("200601021504"))
	n, err := t.cli.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if n == 1 {
		_ = t.cli.Expire(ctx, key, 2*time.Minute).Err()
	}
	return n <= int64(t.limit)
}
