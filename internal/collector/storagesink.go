package collector

import (
	"context"
	"fmt"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/storage"
)

// StorageSink is the durable EventSink: every flushed batch is written to
// the configured AnalyticsStorage backend (spec.md §4.4). This is the sink
// every pipeline runs; Flush is a no-op since Store is synchronous per call.
type StorageSink struct {
	storage storage.AnalyticsStorage
}

// NewStorageSink wraps s as an EventSink.
func NewStorageSink(s storage.AnalyticsStorage) *StorageSink {
	return &StorageSink{storage: s}
}

func (s *StorageSink) Name() string { return "storage" }

func (s *StorageSink) Process(ctx context.Context, batch events.Batch) error {
	if err := s.storage.Store(ctx, batch); err != nil {
		return fmt.Errorf("store batch %d: %w", batch.Sequence(), err)
	}
	return nil
}

func (s *StorageSink) Flush(_ context.Context) error { return nil }
