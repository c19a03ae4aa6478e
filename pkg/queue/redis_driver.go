package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "storefront:queue:jobs"

// RedisDriver keeps jobs in a Redis list: LPUSH to dispatch, BRPOP to
// consume.
type RedisDriver struct {
	rdb  *redis.Client
	key  string
	wait time.Duration
}

// NewRedisDriver shares rdb with the cache. An empty key uses the default
// list name.
func NewRedisDriver(rdb *redis.Client, key string) *RedisDriver {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisDriver{rdb: rdb, key: key, wait: 5 * time.Second}
}

func (d *RedisDriver) Push(ctx context.Context, payload []byte) error {
	if err := d.rdb.LPush(ctx, d.key, payload).Err(); err != nil {
		return fmt.Errorf("queue/redis: push: %w", err)
	}
	return nil
}

// Pop waits up to five seconds and returns (nil, nil) when nothing arrived.
func (d *RedisDriver) Pop(ctx context.Context) ([]byte, error) {
	result, err := d.rdb.BRPop(ctx, d.wait, d.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue/redis: pop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}
