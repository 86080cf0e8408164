// Package cache provides the Redis-backed bundle cache. Its presence for a
// key is the durable "already loaded" marker the loader checks before
// starting a network cycle.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "verify-gateway/internal/platform/redis"
	"verify-gateway/internal/sdk"
	"verify-gateway/pkg/platform/sentinel"
)

const bundleKey = "verify:sdk:bundle"

// RedisCache stores the fetched SDK bundle in Redis with a TTL so restarts
// and sibling instances skip the mirror cycle while the copy is fresh.
type RedisCache struct {
	client *platformredis.Client
	ttl    time.Duration
}

// NewRedisCache builds a bundle cache over an established Redis client.
func NewRedisCache(client *platformredis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached bundle, or sentinel.ErrNotFound on a miss.
func (c *RedisCache) Get(ctx context.Context) (*sdk.Bundle, error) {
	raw, err := c.client.Get(ctx, bundleKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get bundle: %w", err)
	}
	var b sdk.Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		// A corrupt entry is treated as a miss so the loader refetches.
		return nil, sentinel.ErrNotFound
	}
	return &b, nil
}

// Put stores the bundle with the configured TTL.
func (c *RedisCache) Put(ctx context.Context, b *sdk.Bundle) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	if err := c.client.Set(ctx, bundleKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("put bundle: %w", err)
	}
	return nil
}
