// Package cache is a small key/value store with TTLs. Redis backs it in
// production; the in-memory driver is used when no Redis address is
// configured and in tests.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Store is implemented by every driver. Values are JSON encoded.
type Store interface {
	// Get decodes the value under key into dest and reports a hit.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Connect returns a Redis store for cfg, or the memory store when cfg has no
// address.
func Connect(ctx context.Context, cfg config.Redis) (Store, error) {
	if cfg.Addr == "" {
		logger.Info("cache: REDIS_ADDR not set, using in-memory store")
		return NewMemory(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return NewRedis(client), nil
}

// Close releases the driver's resources when it holds any.
func Close(s Store) error {
	if c, ok := s.(interface{ Close() error }); ok {
		err := c.Close()
		if errors.Is(err, redis.ErrClosed) {
			return nil
		}
		return err
	}
	return nil
}
