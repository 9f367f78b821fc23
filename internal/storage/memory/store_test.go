package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/storage"
	"github.com/abramin/eventpipe/pkg/ids"
)

func eventAt(typ events.Type, ts time.Time) events.Event {
	return events.NewBuilder(typ).WithTimestamp(ts).Build()
}

func TestStore_QueryByTime_InclusiveBoundsDescending(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	batch := events.NewBatch(1, []events.Event{
		eventAt(events.TypeFeatureUsed, base),
		eventAt(events.TypeFeatureUsed, base.Add(time.Hour)),
		eventAt(events.TypeFeatureUsed, base.Add(2*time.Hour)),
	})
	require.NoError(t, s.Store(ctx, batch))

	got, err := s.QueryByTime(ctx, base, base.Add(2*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Timestamp().Equal(base.Add(2*time.Hour)))
	assert.True(t, got[2].Timestamp().Equal(base))
}

func TestStore_QueryByTime_IsMonotoneAsBoundsWiden(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	batch := events.NewBatch(1, []events.Event{
		eventAt(events.TypeFeatureUsed, base),
		eventAt(events.TypeFeatureUsed, base.Add(time.Hour)),
		eventAt(events.TypeFeatureUsed, base.Add(2*time.Hour)),
	})
	require.NoError(t, s.Store(ctx, batch))

	narrow, err := s.QueryByTime(ctx, base, base.Add(time.Hour), 0)
	require.NoError(t, err)
	wide, err := s.QueryByTime(ctx, base, base.Add(2*time.Hour), 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(narrow), len(wide))
}

func TestStore_QueryByCategoryAndType(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	batch := events.NewBatch(1, []events.Event{
		eventAt(events.TypeFeatureUsed, now),
		eventAt(events.TypeErrorOccurred, now),
	})
	require.NoError(t, s.Store(ctx, batch))

	byCategory, err := s.QueryByCategory(ctx, events.CategoryError, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, events.TypeErrorOccurred, byCategory[0].Type())

	byType, err := s.QueryByType(ctx, events.TypeFeatureUsed, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, byType, 1)
}

func TestStore_DeleteBefore_ReturnsRemovedCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	batch := events.NewBatch(1, []events.Event{
		eventAt(events.TypeFeatureUsed, now.Add(-60*24*time.Hour)),
		eventAt(events.TypeFeatureUsed, now.Add(-10*24*time.Hour)),
	})
	require.NoError(t, s.Store(ctx, batch))

	removed, err := s.DeleteBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := s.QueryByTime(ctx, time.Time{}, now, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestStore_DeleteBeforeCategory_OnlyAffectsThatCategory(t *testing.T) {
	s := New()
	ctx := context.Background()
	old := time.Now().Add(-100 * 24 * time.Hour)

	batch := events.NewBatch(1, []events.Event{
		eventAt(events.TypeFeatureUsed, old),
		eventAt(events.TypeErrorOccurred, old),
	})
	require.NoError(t, s.Store(ctx, batch))

	removed, err := s.DeleteBeforeCategory(ctx, events.CategoryUsage, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := s.QueryByTime(ctx, time.Time{}, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, events.CategoryError, remaining[0].Category())
}

func TestStore_DeleteByFilter_MatchesOnCategory(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	batch := events.NewBatch(1, []events.Event{
		eventAt(events.TypeFeatureUsed, now),
		eventAt(events.TypeErrorOccurred, now),
	})
	require.NoError(t, s.Store(ctx, batch))

	removed, err := s.DeleteByFilter(ctx, storage.DeleteFilter{Category: events.CategoryUsage})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := s.QueryByTime(ctx, time.Time{}, now.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, events.CategoryError, remaining[0].Category())
}

func TestStore_DeleteByFilter_MatchesOnType(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	batch := events.NewBatch(1, []events.Event{
		eventAt(events.TypeFeatureUsed, now),
		eventAt(events.TypeRevenueEvent, now),
	})
	require.NoError(t, s.Store(ctx, batch))

	removed, err := s.DeleteByFilter(ctx, storage.DeleteFilter{Type: events.TypeFeatureUsed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := s.QueryByTime(ctx, time.Time{}, now.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, events.TypeRevenueEvent, remaining[0].Type())
}

func TestStore_Stats(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	batch := events.NewBatch(1, []events.Event{
		eventAt(events.TypeFeatureUsed, now),
		eventAt(events.TypeErrorOccurred, now.Add(time.Hour)),
	})
	require.NoError(t, s.Store(ctx, batch))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalEvents)
	assert.True(t, stats.OldestTimestamp.Equal(now))
	assert.True(t, stats.NewestTimestamp.Equal(now.Add(time.Hour)))
	assert.Len(t, stats.PerCategoryCount, 2)
}

func TestStore_DeleteBySession_OnlyAffectsThatSession(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	session := ids.NewSessionID()
	other := ids.NewSessionID()

	batch := events.NewBatch(1, []events.Event{
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(now).WithSessionID(session).Build(),
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(now).WithSessionID(other).Build(),
		eventAt(events.TypeFeatureUsed, now),
	})
	require.NoError(t, s.Store(ctx, batch))

	removed, err := s.DeleteBySession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := s.QueryByTime(ctx, time.Time{}, now.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestStore_Compact_IsNoOp(t *testing.T) {
	s := New()
	assert.NoError(t, s.Compact(context.Background()))
}
