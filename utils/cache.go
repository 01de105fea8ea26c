package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = time.Hour
	cacheTimeout    = 2 * time.Second
	cachePrefix     = "anonid:cache:"
)

// RedisCache is a best-effort byte cache. A nil client or any Redis error reads as a miss.
type RedisCache struct {
	cli *redis.Client
}

// NewRedisCache wraps cli, which may be nil.
func NewRedisCache(cli *redis.Client) *RedisCache {
	return &RedisCache{cli: cli}
}

// GetBytes returns cached bytes for a key from Redis.
func (c *RedisCache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.cli == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	b, err := c.cli.Get(ctx, cachePrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			Sugar.Debugf("cache get miss key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// SetBytes stores bytes under key. A non-positive ttl uses the default of one hour.
func (c *RedisCache) SetBytes(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if c == nil || c.cli == nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	if err := c.cli.Set(ctx, cachePrefix+key, b, ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}
