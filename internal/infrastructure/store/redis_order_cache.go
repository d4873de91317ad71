package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/redis/go-redis/v9"
)

// RedisOrderCache keeps the last order per user under "checkout:last-order:<user>".
type RedisOrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisOrderCache returns a cache whose entries expire after ttl; zero
// keeps them until overwritten.
func NewRedisOrderCache(client *redis.Client, ttl time.Duration) *RedisOrderCache {
	return &RedisOrderCache{client: client, ttl: ttl}
}

func (r *RedisOrderCache) SetLast(ctx context.Context, userID string, o *order.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order failed: %w", err)
	}
	if err := r.client.Set(ctx, lastOrderKey(userID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisOrderCache) GetLast(ctx context.Context, userID string) (*order.Order, error) {
	data, err := r.client.Get(ctx, lastOrderKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var o order.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order failed: %w", err)
	}
	return &o, nil
}

func lastOrderKey(userID string) string {
	return fmt.Sprintf("checkout:last-order:%s", userID)
}
