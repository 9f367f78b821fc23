package events

import (
	"time"

	"github.com/abramin/eventpipe/pkg/ids"
)

// Builder constructs an Event. Id and timestamp are assigned at Build();
// category is always derived from the type and cannot be overridden.
type Builder struct {
	eventType   Type
	timestamp   time.Time
	sessionID   ids.SessionID
	hasSession  bool
	priority    Priority
	data        Data
	metadata    Metadata
	hasMetadata bool
}

// NewBuilder starts construction of an event of the given type.
func NewBuilder(t Type) *Builder {
	return &Builder{
		eventType: t,
		priority:  DefaultPriority,
	}
}

// WithTimestamp overrides the event's timestamp; Build() uses time.Now()
// (UTC) if this is never called.
func (b *Builder) WithTimestamp(ts time.Time) *Builder {
	b.timestamp = ts
	return b
}

// WithSessionID attaches a session id at construction time; if omitted, the
// collector enriches it later via Event.EnrichSessionID.
func (b *Builder) WithSessionID(session ids.SessionID) *Builder {
	b.sessionID = session
	b.hasSession = true
	return b
}

// WithPriority overrides the default priority (Normal).
func (b *Builder) WithPriority(p Priority) *Builder {
	b.priority = p
	return b
}

// WithData attaches the event's payload.
func (b *Builder) WithData(d Data) *Builder {
	b.data = d
	return b
}

// WithMetadata overrides the default process-environment metadata snapshot.
func (b *Builder) WithMetadata(m Metadata) *Builder {
	b.metadata = m
	b.hasMetadata = true
	return b
}

// WithCustom merges one custom key/value pair into the event's metadata.
func (b *Builder) WithCustom(key, value string) *Builder {
	if !b.hasMetadata {
		b.metadata = defaultMetadata()
		b.hasMetadata = true
	}
	if b.metadata.Custom == nil {
		b.metadata.Custom = make(map[string]string)
	}
	b.metadata.Custom[key] = value
	return b
}

// Build assigns id and timestamp and returns the finished, immutable event.
// Data defaults to EmptyData and metadata to the current process snapshot if
// never set.
func (b *Builder) Build() Event {
	ts := b.timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	data := b.data
	if data == nil {
		data = EmptyData{}
	}
	metadata := b.metadata
	if !b.hasMetadata {
		metadata = defaultMetadata()
	}
	e := Event{
		id:        ids.NewEventID(),
		eventType: b.eventType,
		category:  b.eventType.Category(),
		timestamp: ts,
		priority:  b.priority,
		data:      data,
		metadata:  metadata.clone(),
	}
	if b.hasSession {
		e.sessionID = b.sessionID
		e.hasSession = true
	}
	return e
}
