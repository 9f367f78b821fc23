// Package storage defines the durable persistence contract for batches and
// events (spec.md §4.4). Concrete backends (postgres, memory) live in
// subpackages so the collector and retention engine depend only on this
// interface — the "trait-object storage" from the source maps to a Go
// capability interface (spec.md §9).
package storage

import (
	"context"
	"time"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/pkg/ids"
)

// CategoryCount is one row of a grouped count_by_category result.
type CategoryCount struct {
	Category events.Category
	Count    int64
}

// Stats is the storage engine's point-in-time summary (spec.md §4.4
// stats()).
type Stats struct {
	TotalEvents      int64
	OnDiskBytes      int64
	OldestTimestamp  time.Time
	NewestTimestamp  time.Time
	PerCategoryCount []CategoryCount
}

// DeleteFilter narrows DeleteByFilter to events matching every non-zero
// field; a zero Category or Type matches every value for that field, so
// a wholly zero DeleteFilter matches every event. Callers constructing one
// from user input should require at least one field set.
type DeleteFilter struct {
	Category events.Category
	Type     events.Type
}

// AnalyticsStorage is the durable, transactional persistence contract for
// Batch values (spec.md §4.4). Implementations must guarantee: batch
// insertion is atomic (all events visible or none); queries see only
// committed writes; time-range queries are monotone in result count as
// bounds widen; eviction never deletes events within the batch currently
// being inserted.
type AnalyticsStorage interface {
	// Store inserts batch metadata and all its events in a single
	// transaction. If the backing store exceeds its configured size cap,
	// the lowest 10%-by-timestamp events are evicted before the insert
	// transaction begins. daily_stats upserts run outside the transaction.
	Store(ctx context.Context, batch events.Batch) error

	// QueryByTime returns events with timestamp in [start, end], ordered
	// by timestamp descending. limit <= 0 means unbounded.
	QueryByTime(ctx context.Context, start, end time.Time, limit int) ([]events.Event, error)

	// QueryByCategory returns events of the given category in [start, end],
	// ordered by timestamp descending.
	QueryByCategory(ctx context.Context, category events.Category, start, end time.Time) ([]events.Event, error)

	// QueryByType returns events of the given type in [start, end], ordered
	// by timestamp descending.
	QueryByType(ctx context.Context, t events.Type, start, end time.Time) ([]events.Event, error)

	// CountByCategory returns grouped event counts in [start, end].
	CountByCategory(ctx context.Context, start, end time.Time) ([]CategoryCount, error)

	// DeleteBefore removes every event with timestamp < t, across all
	// categories, and returns the number removed.
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)

	// DeleteBeforeCategory removes every event of the given category with
	// timestamp < t, and returns the number removed. This is the explicit,
	// per-category operation retention actually drives (see DESIGN.md Open
	// Question decisions); DeleteBefore remains the bulk, no-filter form.
	DeleteBeforeCategory(ctx context.Context, category events.Category, t time.Time) (int64, error)

	// DeleteBySession removes every event carrying the given session id,
	// across all time, and returns the number removed. This is the
	// session-id-indexed delete the retention engine's compliance
	// processor drives for session-scoped requests.
	DeleteBySession(ctx context.Context, session ids.SessionID) (int64, error)

	// DeleteByFilter removes every event matching f, across all time, and
	// returns the number removed. This is the criteria delete the
	// retention engine's compliance processor drives for filter-scoped
	// requests.
	DeleteByFilter(ctx context.Context, f DeleteFilter) (int64, error)

	// Stats returns the engine's current summary.
	Stats(ctx context.Context) (Stats, error)

	// Compact reclaims space after bulk deletion.
	Compact(ctx context.Context) error

	// Close releases any held resources.
	Close() error
}
