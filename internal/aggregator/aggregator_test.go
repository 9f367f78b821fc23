package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abramin/eventpipe/internal/aggregator/cache"
	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/storage/memory"
)

func TestAggregate_ComputesAcrossWindow(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	batch := events.NewBatch(1, []events.Event{
		perfEvent(1, base),
		perfEvent(50, base.Add(time.Minute)),
		perfEvent(100, base.Add(2*time.Minute)),
	})
	require.NoError(t, store.Store(ctx, batch))

	agg := New(store, cache.NewInProcess())
	spec := AggregationSpec{
		Name:        "latency",
		Granularity: GranularityHour,
		EventTypes:  []events.Type{events.TypeLatencyRecorded},
		Functions:   []Function{FunctionCount, FunctionP50},
		ValueField:  "value",
	}

	metrics, err := agg.Aggregate(ctx, spec, base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, metrics, 2)
}

func TestAggregate_BypassesCache(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Store(ctx, events.NewBatch(1, []events.Event{perfEvent(1, now)})))

	c := cache.NewInProcess()
	agg := New(store, c)
	spec := AggregationSpec{Name: "latency", Granularity: GranularityDay, Functions: []Function{FunctionCount}}

	_, err := agg.Aggregate(ctx, spec, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, spec.Name)
	require.NoError(t, err)
	assert.False(t, ok, "Aggregate must not populate the cache")
}

func TestAggregateAll_PopulatesCache(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Store(ctx, events.NewBatch(1, []events.Event{perfEvent(1, now)})))

	c := cache.NewInProcess()
	agg := New(store, c)
	spec := AggregationSpec{Name: "latency", Granularity: GranularityDay, Functions: []Function{FunctionCount}}

	results, err := agg.AggregateAll(ctx, []AggregationSpec{spec}, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, results["latency"], 1)

	cached, ok, err := agg.Cached(ctx, "latency")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, results["latency"], cached)
}

func TestClearCache_RemovesPopulatedEntries(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Store(ctx, events.NewBatch(1, []events.Event{perfEvent(1, now)})))

	c := cache.NewInProcess()
	agg := New(store, c)
	spec := AggregationSpec{Name: "latency", Granularity: GranularityDay, Functions: []Function{FunctionCount}}

	_, err := agg.AggregateAll(ctx, []AggregationSpec{spec}, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, agg.ClearCache(ctx))

	_, ok, err := agg.Cached(ctx, "latency")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAggregate_RejectsInvalidGranularity(t *testing.T) {
	store := memory.New()
	agg := New(store, cache.NewInProcess())
	_, err := agg.Aggregate(context.Background(), AggregationSpec{Granularity: "fortnight"}, time.Time{}, time.Time{})
	assert.Error(t, err)
}
