// Package pricecache remembers the processor price id created for each subscription
// plan so recurring prices are created once per plan.
package pricecache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("price not cached")

type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, planID string) (string, error) {
	id, err := c.client.Get(ctx, key(planID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get price: %w", err)
	}
	return id, nil
}

// Set stores without expiry; processor prices are immutable.
func (c *RedisCache) Set(ctx context.Context, planID, priceID string) error {
	if err := c.client.Set(ctx, key(planID), priceID, 0).Err(); err != nil {
		return fmt.Errorf("redis set price: %w", err)
	}
	return nil
}

func key(planID string) string {
	return "price:" + planID
}
