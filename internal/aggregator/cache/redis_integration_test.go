//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abramin/eventpipe/internal/platform/config"
	platredis "github.com/abramin/eventpipe/internal/platform/redis"
	"github.com/abramin/eventpipe/pkg/testutil/containers"
)

func newTestRedisCache(t *testing.T) *Redis {
	t.Helper()
	rc := containers.NewRedisContainer(t)
	t.Cleanup(func() { _ = rc.FlushAll(context.Background()) })

	client, err := platredis.New(config.CacheConfig{RedisURL: rc.Addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client, time.Minute)
}

func TestRedisCache_SetThenGet(t *testing.T) {
	c := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "spec1", []byte("payload")))
	v, ok, err := c.Get(ctx, "spec1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), v)
}

func TestRedisCache_Get_MissingReturnsNotOK(t *testing.T) {
	c := newTestRedisCache(t)
	_, ok, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_Clear_RemovesOnlyOwnKeys(t *testing.T) {
	c := newTestRedisCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "spec1", []byte("a")))
	require.NoError(t, c.Set(ctx, "spec2", []byte("b")))
	require.NoError(t, c.client.Set(ctx, "other:key", "keep", 0).Err())

	require.NoError(t, c.Clear(ctx))

	_, ok1, _ := c.Get(ctx, "spec1")
	_, ok2, _ := c.Get(ctx, "spec2")
	assert.False(t, ok1)
	assert.False(t, ok2)

	kept, err := c.client.Get(ctx, "other:key").Result()
	require.NoError(t, err)
	assert.Equal(t, "keep", kept)
}
