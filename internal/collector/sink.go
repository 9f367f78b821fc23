package collector

import (
	"context"

	"github.com/abramin/eventpipe/internal/events"
)

// EventSink is the capability-based abstraction for batch consumers
// (spec.md §9: "trait-object sinks" maps to a Go interface). In-memory,
// console, file-backed, or network sinks all implement this without the
// collector knowing which.
type EventSink interface {
	// Name identifies the sink for registration and error logging.
	Name() string
	// Process handles one flushed batch. A returned error is logged and
	// counted against flush_errors; it never aborts fan-out to other sinks
	// and the batch is not re-enqueued (at-most-once per sink).
	Process(ctx context.Context, batch events.Batch) error
	// Flush gives the sink a chance to drain any internal buffering of its
	// own; called during collector shutdown.
	Flush(ctx context.Context) error
}
