//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/storage"
	"github.com/abramin/eventpipe/pkg/ids"
	"github.com/abramin/eventpipe/pkg/testutil/containers"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	s, err := New(ctx, pc.DSN, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_StoreAndQueryByTime_RoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	batch := events.NewBatch(1, []events.Event{
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(now).
			WithData(events.UsageData{Feature: "search"}).Build(),
	})
	require.NoError(t, s.Store(ctx, batch))

	got, err := s.QueryByTime(ctx, now.Add(-time.Minute), now.Add(time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, events.TypeFeatureUsed, got[0].Type())
	require.Equal(t, events.UsageData{Feature: "search"}, got[0].Data())
}

func TestStore_DeleteBeforeCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-60 * 24 * time.Hour).UTC()

	batch := events.NewBatch(1, []events.Event{
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(old).Build(),
	})
	require.NoError(t, s.Store(ctx, batch))

	removed, err := s.DeleteBeforeCategory(ctx, events.CategoryUsage, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestStore_DeleteByFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	batch := events.NewBatch(1, []events.Event{
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(now).Build(),
		events.NewBuilder(events.TypeErrorOccurred).WithTimestamp(now).Build(),
	})
	require.NoError(t, s.Store(ctx, batch))

	removed, err := s.DeleteByFilter(ctx, storage.DeleteFilter{Category: events.CategoryUsage})
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestStore_DeleteBySession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	session := ids.NewSessionID()

	batch := events.NewBatch(1, []events.Event{
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(now).WithSessionID(session).Build(),
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(now).Build(),
	})
	require.NoError(t, s.Store(ctx, batch))

	removed, err := s.DeleteBySession(ctx, session)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := events.NewBatch(1, []events.Event{
		events.NewBuilder(events.TypeFeatureUsed).Build(),
	})
	require.NoError(t, s.Store(ctx, batch))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.TotalEvents)
}
