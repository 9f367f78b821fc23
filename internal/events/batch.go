package events

import (
	"time"

	"github.com/abramin/eventpipe/pkg/ids"
)

// Batch is a finite ordered sequence of events produced by one buffer flush
// (spec.md §3). Sequence is monotonically increasing for one collector
// lifetime; events preserve enqueue order within the batch.
type Batch struct {
	id        ids.BatchID
	sequence  uint64
	createdAt time.Time
	events    []Event
}

// NewBatch constructs a batch from an ordered event slice. The caller-owned
// slice is copied so later mutation of it cannot affect the batch.
func NewBatch(sequence uint64, evts []Event) Batch {
	owned := make([]Event, len(evts))
	copy(owned, evts)
	return Batch{
		id:        ids.NewBatchID(),
		sequence:  sequence,
		createdAt: time.Now().UTC(),
		events:    owned,
	}
}

func (b Batch) ID() ids.BatchID      { return b.id }
func (b Batch) Sequence() uint64     { return b.sequence }
func (b Batch) CreatedAt() time.Time { return b.createdAt }

// Events returns a copy of the batch's event vector; callers cannot mutate
// the batch through it.
func (b Batch) Events() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

func (b Batch) Len() int { return len(b.events) }

func (b Batch) IsEmpty() bool { return len(b.events) == 0 }
