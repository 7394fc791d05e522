package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nrgiser71/tandemup-sub000/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultCacheTTL = 5 * time.Minute

// CachedResolver decorates a Resolver with a Redis read cache.
// Slightly stale profile data is acceptable: every write against the
// session store re-validates its own precondition. Unresolved lookups
// are never cached so a freshly created profile becomes visible on the
// next call.
type CachedResolver struct {
	next   Resolver
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedResolver(next Resolver, client *redis.Client, logger *zap.Logger) *CachedResolver {
	return &CachedResolver{
		next:   next,
		client: client,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

func (c *CachedResolver) Resolve(ctx context.Context, userID int64) (*model.User, error) {
	key := cacheKey(userID)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var user model.User
		if err := json.Unmarshal(payload, &user); err == nil {
			return &user, nil
		}
		// Битая запись в кэше: забываем её и идём к источнику
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Profile cache read failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	user, err := c.next.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(user); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("Profile cache write failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	return user, nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("profile:%d", userID)
}
