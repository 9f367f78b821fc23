package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/storage/memory"
)

func TestStorageSink_Process_WritesBatchToStorage(t *testing.T) {
	store := memory.New()
	sink := NewStorageSink(store)
	ctx := context.Background()

	batch := events.NewBatch(1, []events.Event{
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(time.Now()).Build(),
	})
	require.NoError(t, sink.Process(ctx, batch))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalEvents)
}

func TestStorageSink_NameAndFlush(t *testing.T) {
	sink := NewStorageSink(memory.New())
	assert.Equal(t, "storage", sink.Name())
	assert.NoError(t, sink.Flush(context.Background()))
}
