package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/observability"
	"github.com/spec-kit/user-service/pkg/util/besteffort"
)

// DefaultUserTTL is written with every user entry.
const DefaultUserTTL = 300 * time.Second

// UserLoader loads a user from the credential store.
type UserLoader interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// UserCache serves per-user lookups through the cache.
type UserCache struct {
	cache  Cache
	store  UserLoader
	ttl    time.Duration
	logger *zap.Logger
}

// NewUserCache constructs the read-through cache.
func NewUserCache(cache Cache, store UserLoader, ttl time.Duration, logger *zap.Logger) *UserCache {
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserCache{cache: cache, store: store, ttl: ttl, logger: logger}
}

// UserKey is the cache key for a user id.
func UserKey(id string) string {
	return "user:" + id
}

// Get returns the user, from cache when possible. Cache failures and
// undecodable entries fall through to the store; only store errors surface.
func (c *UserCache) Get(ctx context.Context, id string) (*domain.User, error) {
	key := UserKey(id)

	raw, found, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	case found:
		var user domain.User
		if err := json.Unmarshal(raw, &user); err == nil {
			observability.RecordCacheLookup("hit")
			return &user, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	}
	observability.RecordCacheLookup("miss")

	user, err := c.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.populate(ctx, key, user)
	return user, nil
}

func (c *UserCache) populate(ctx context.Context, key string, user *domain.User) {
	payload, err := json.Marshal(user)
	if err != nil {
		besteffort.Discard(c.logger, "cache.encode", err, zap.String("key", key))
		return
	}
	besteffort.Discard(c.logger, "cache.set", c.cache.Set(ctx, key, payload, c.ttl), zap.String("key", key))
}

// Invalidate deletes the entry for id. Call it after every successful store write.
func (c *UserCache) Invalidate(ctx context.Context, id string) {
	key := UserKey(id)
	besteffort.Discard(c.logger, "cache.invalidate", c.cache.Del(ctx, key), zap.String("key", key))
}
