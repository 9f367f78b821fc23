package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	platredis "github.com/abramin/eventpipe/internal/platform/redis"
)

const keyPrefix = "eventpipe:aggregator:"

// Redis is the optional second-tier cache backend, grounded on the
// teacher's internal/platform/redis client wrapper.
type Redis struct {
	client *platredis.Client
	ttl    time.Duration
}

// NewRedis wraps an already-constructed Redis client. ttl <= 0 means
// entries never expire.
func NewRedis(client *platredis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) Get(ctx context.Context, name string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, keyPrefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *Redis) Set(ctx context.Context, name string, encoded []byte) error {
	return c.client.Set(ctx, keyPrefix+name, encoded, c.ttl).Err()
}

// Clear deletes every key under this cache's key prefix, scanning by
// prefix rather than FLUSHDB since the Redis instance may be shared with
// other consumers.
func (c *Redis) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
