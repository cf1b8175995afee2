// Package cache implements the read-through, write-invalidate cache that sits
// in front of per-user store lookups.
//
// Consistency window: writers mutate the store first and then delete the
// cache key. If that delete fails the failure is logged and dropped, so an
// entry may be served stale for at most its TTL (300s for users). Misses are
// never cached.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the minimal key/value contract the service needs.
type Cache interface {
	// Get returns found=false on a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value; ttl <= 0 applies the cache default TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RedisCache implements Cache on go-redis.
type RedisCache struct {
	client     redis.UniversalClient
	defaultTTL time.Duration
}

// NewRedisCache wraps a Redis client.
func NewRedisCache(client redis.UniversalClient, defaultTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, defaultTTL: defaultTTL}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
