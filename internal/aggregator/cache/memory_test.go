package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcess_SetThenGet(t *testing.T) {
	c := NewInProcess()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "spec1", []byte("payload")))
	v, ok, err := c.Get(ctx, "spec1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), v)
}

func TestInProcess_Clear_RemovesAllEntries(t *testing.T) {
	c := NewInProcess()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "spec1", []byte("a")))
	require.NoError(t, c.Set(ctx, "spec2", []byte("b")))

	require.NoError(t, c.Clear(ctx))

	_, ok1, _ := c.Get(ctx, "spec1")
	_, ok2, _ := c.Get(ctx, "spec2")
	assert.False(t, ok1)
	assert.False(t, ok2)
}
