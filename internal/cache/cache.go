// Package cache is a Redis-backed JSON cache for composed read models.
// Callers treat every error short of a miss as a degraded backend and
// fall through to the source.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/strataisp/console/internal/metrics"
)

// ErrMiss means the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Connect builds and verifies a Redis client.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// Cache stores JSON-encoded values under string keys. The name labels
// cache metrics so multiple caches stay distinguishable.
type Cache struct {
	client *redis.Client
	name   string
	logger *zap.Logger
}

// New builds a named cache on the shared Redis client.
func New(client *redis.Client, name string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{client: client, name: name, logger: logger}
}

// Get loads and decodes the value at key into out. Returns ErrMiss when
// the key is absent.
func (c *Cache) Get(ctx context.Context, key string, out any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveCacheRequest(c.name, "miss")
		return ErrMiss
	}
	if err != nil {
		metrics.ObserveCacheRequest(c.name, "error")
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		// A decode failure means the stored shape changed; treat it as
		// a miss so the caller refreshes the entry.
		metrics.ObserveCacheRequest(c.name, "miss")
		c.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		return ErrMiss
	}
	metrics.ObserveCacheRequest(c.name, "hit")
	return nil
}

// Set encodes value and stores it at key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value for %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		metrics.ObserveCacheRequest(c.name, "error")
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		metrics.ObserveCacheRequest(c.name, "error")
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}
