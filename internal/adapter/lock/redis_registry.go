package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quickcart/stock-ledger/internal/core/domain"
)

const lockKeyPrefix = "stocklock:"

// RedisRegistry backs the advisory lock with Redis SETNX so duplicate
// suppression holds across instances. Redis handles expiry itself; there is
// no sweep to run.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRegistry{client: client, ttl: ttl}
}

func (r *RedisRegistry) Acquire(ctx context.Context, userID, productID string) error {
	ok, err := r.client.SetNX(ctx, r.key(userID, productID), 1, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return domain.ErrLockConflict
	}
	return nil
}

func (r *RedisRegistry) Release(ctx context.Context, userID, productID string) error {
	if err := r.client.Del(ctx, r.key(userID, productID)).Err(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func (r *RedisRegistry) key(userID, productID string) string {
	return lockKeyPrefix + userID + ":" + productID
}
