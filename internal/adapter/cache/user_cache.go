package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "user-service/internal/domain/user"
)

const keyPrefix = "users:id:"

// UserCache stores individual user records by ID.
type UserCache interface {
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, id int64) (*domain.User, error)
	Set(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id int64) error
}

// RedisUserCache implements UserCache on Redis with a fixed TTL per entry.
type RedisUserCache struct {
	rdb redis.Cmdable
	ttl time.Duration
	log *zap.Logger
}

// NewRedisUserCache creates a new Redis-backed user cache.
func NewRedisUserCache(rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *RedisUserCache {
	return &RedisUserCache{rdb: rdb, ttl: ttl, log: log}
}

// Key returns the Redis key holding user id.
func Key(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

// Get retrieves a user from Redis. A corrupt entry is dropped and reported as a miss.
func (c *RedisUserCache) Get(ctx context.Context, id int64) (*domain.User, error) {
	data, err := c.rdb.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		c.log.Warn("dropping undecodable cache entry", zap.Int64("user_id", id), zap.Error(err))
		_ = c.rdb.Del(ctx, Key(id)).Err()
		return nil, nil
	}
	return &u, nil
}

// Set stores u under its ID.
func (c *RedisUserCache) Set(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("cannot cache nil user")
	}

	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, Key(u.ID), data, c.ttl).Err()
}

// Delete evicts a user. Evicting a missing key is not an error.
func (c *RedisUserCache) Delete(ctx context.Context, id int64) error {
	return c.rdb.Del(ctx, Key(id)).Err()
}
