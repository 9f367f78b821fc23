// Package memory is an in-memory AnalyticsStorage, grounded on the
// teacher's store/memory.InMemoryStore: a mutex-guarded slice instead of a
// database, useful for tests and for hosts that don't want on-disk state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/storage"
	"github.com/abramin/eventpipe/pkg/ids"
)

type record struct {
	event      events.Event
	insertedAt time.Time
}

// Store is an in-memory AnalyticsStorage. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records []record
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{}
}

func (s *Store) Store(_ context.Context, batch events.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, e := range batch.Events() {
		s.records = append(s.records, record{event: e, insertedAt: now})
	}
	return nil
}

func (s *Store) QueryByTime(_ context.Context, start, end time.Time, limit int) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []events.Event
	for _, r := range s.records {
		ts := r.event.Timestamp()
		if !ts.Before(start) && !ts.After(end) {
			out = append(out, r.event)
		}
	}
	sortByTimestampDescending(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) QueryByCategory(_ context.Context, category events.Category, start, end time.Time) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []events.Event
	for _, r := range s.records {
		ts := r.event.Timestamp()
		if r.event.Category() == category && !ts.Before(start) && !ts.After(end) {
			out = append(out, r.event)
		}
	}
	sortByTimestampDescending(out)
	return out, nil
}

func (s *Store) QueryByType(_ context.Context, t events.Type, start, end time.Time) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []events.Event
	for _, r := range s.records {
		ts := r.event.Timestamp()
		if r.event.Type() == t && !ts.Before(start) && !ts.After(end) {
			out = append(out, r.event)
		}
	}
	sortByTimestampDescending(out)
	return out, nil
}

func (s *Store) CountByCategory(_ context.Context, start, end time.Time) ([]storage.CategoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[events.Category]int64)
	for _, r := range s.records {
		ts := r.event.Timestamp()
		if !ts.Before(start) && !ts.After(end) {
			counts[r.event.Category()]++
		}
	}

	out := make([]storage.CategoryCount, 0, len(counts))
	for cat, n := range counts {
		out = append(out, storage.CategoryCount{Category: cat, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Store) DeleteBefore(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteBeforeLocked(t, nil)
}

func (s *Store) DeleteBeforeCategory(_ context.Context, category events.Category, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteBeforeLocked(t, &category)
}

func (s *Store) DeleteBySession(_ context.Context, session ids.SessionID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var removed int64
	for _, r := range s.records {
		sid, ok := r.event.SessionID()
		if ok && sid == session {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}

func (s *Store) DeleteByFilter(_ context.Context, f storage.DeleteFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var removed int64
	for _, r := range s.records {
		if matchesFilter(r.event, f) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}

func matchesFilter(e events.Event, f storage.DeleteFilter) bool {
	if f.Category != "" && e.Category() != f.Category {
		return false
	}
	if f.Type != "" && e.Type() != f.Type {
		return false
	}
	return true
}

func (s *Store) deleteBeforeLocked(t time.Time, category *events.Category) (int64, error) {
	kept := s.records[:0]
	var removed int64
	for _, r := range s.records {
		matches := r.event.Timestamp().Before(t) && (category == nil || r.event.Category() == *category)
		if matches {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}

func (s *Store) Stats(_ context.Context) (storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := storage.Stats{TotalEvents: int64(len(s.records))}
	counts := make(map[events.Category]int64)
	for i, r := range s.records {
		ts := r.event.Timestamp()
		if i == 0 || ts.Before(stats.OldestTimestamp) {
			stats.OldestTimestamp = ts
		}
		if i == 0 || ts.After(stats.NewestTimestamp) {
			stats.NewestTimestamp = ts
		}
		counts[r.event.Category()]++
		stats.OnDiskBytes += estimateEventSize(r.event)
	}
	for cat, n := range counts {
		stats.PerCategoryCount = append(stats.PerCategoryCount, storage.CategoryCount{Category: cat, Count: n})
	}
	return stats, nil
}

// Compact is a no-op for the in-memory backend; there is no on-disk
// fragmentation to reclaim.
func (s *Store) Compact(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func sortByTimestampDescending(evts []events.Event) {
	sort.Slice(evts, func(i, j int) bool {
		return evts[i].Timestamp().After(evts[j].Timestamp())
	})
}

// estimateEventSize is a rough byte-size estimate used only for the stats()
// on-disk-size figure, which has no literal meaning for an in-memory store.
func estimateEventSize(events.Event) int64 {
	return 256
}
