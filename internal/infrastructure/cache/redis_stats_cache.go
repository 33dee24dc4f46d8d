// Package cache provides cache backends for the billing statistics
// snapshots.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	billingapp "github.com/gestloc/backend/internal/application/billing"
	"github.com/gestloc/backend/internal/infrastructure/config"
)

// RedisStatsCache implements the billing StatsCache on Redis. Suitable
// for distributed deployments where multiple instances share the cache.
// Cache failures degrade to a miss, never to an error for the caller.
type RedisStatsCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStatsCache connects to Redis and returns a stats cache
func NewRedisStatsCache(cfg config.RedisConfig, logger *zap.Logger) (*RedisStatsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStatsCache{client: client, logger: logger}, nil
}

// NewRedisStatsCacheWithClient wraps an existing Redis client.
// Useful for testing or when sharing a client across components.
func NewRedisStatsCacheWithClient(client *redis.Client, logger *zap.Logger) *RedisStatsCache {
	return &RedisStatsCache{client: client, logger: logger}
}

// Get returns the cached payload for key, or ok=false on a miss or any
// Redis error
func (c *RedisStatsCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Stats cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return value, true
}

// Set stores the payload under key with the given TTL
func (c *RedisStatsCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("Stats cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes the payload under key
func (c *RedisStatsCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("Stats cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Close closes the Redis client
func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}

var _ billingapp.StatsCache = (*RedisStatsCache)(nil)
