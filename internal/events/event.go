package events

import (
	"encoding/json"
	"time"

	"github.com/abramin/eventpipe/pkg/ids"
)

// Event is one typed, timestamped observation produced by the host
// (spec.md §3). It is immutable after construction, with the single
// exception of the collector's one-time session-id enrichment
// (EnrichSessionID).
//
// Invariants: Category is always type.Category() — nothing else may set it;
// Timestamp is monotonic-or-equal relative to the collector's wall clock at
// ingest time, not globally ordered across collectors.
type Event struct {
	id         ids.EventID
	eventType  Type
	category   Category
	timestamp  time.Time
	sessionID  ids.SessionID
	hasSession bool
	priority   Priority
	data       Data
	metadata   Metadata
}

func (e Event) ID() ids.EventID      { return e.id }
func (e Event) Type() Type           { return e.eventType }
func (e Event) Category() Category   { return e.category }
func (e Event) Timestamp() time.Time { return e.timestamp }
func (e Event) Priority() Priority   { return e.priority }
func (e Event) Data() Data           { return e.data }
func (e Event) Metadata() Metadata   { return e.metadata }

// SessionID returns the event's session id and whether one has been set.
func (e Event) SessionID() (ids.SessionID, bool) {
	return e.sessionID, e.hasSession
}

// EnrichSessionID sets the event's session id if one is not already present,
// returning a copy. This is the single exception to Event's immutability
// contract: the collector calls it once, at ingest time, when an event
// arrives without a session id (spec.md §4.3 step 3).
func (e Event) EnrichSessionID(session ids.SessionID) Event {
	if e.hasSession {
		return e
	}
	out := e
	out.sessionID = session
	out.hasSession = true
	return out
}

// eventWire is the external exchange format (spec.md §6): field names
// `{id, category, event_type, timestamp, session_id, priority, data,
// metadata}`.
type eventWire struct {
	ID        string          `json:"id"`
	Category  Category        `json:"category"`
	EventType Type            `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Priority  Priority        `json:"priority"`
	Data      json.RawMessage `json:"data,omitempty"`
	Metadata  Metadata        `json:"metadata"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	dataJSON, err := marshalData(e.data)
	if err != nil {
		return nil, err
	}
	wire := eventWire{
		ID:        e.id.String(),
		Category:  e.category,
		EventType: e.eventType,
		Timestamp: e.timestamp,
		Priority:  e.priority,
		Data:      dataJSON,
		Metadata:  e.metadata,
	}
	if e.hasSession {
		wire.SessionID = e.sessionID.String()
	}
	return json.Marshal(wire)
}

// MarshalData encodes a Data variant as storage would persist it (the
// `data_blob` column, spec.md §4.4 schema). Exposed so storage backends can
// persist/reload Data without round-tripping the full Event wire format.
func MarshalData(d Data) (json.RawMessage, error) {
	return marshalData(d)
}

// UnmarshalData decodes a `data_blob` column back into a Data variant.
func UnmarshalData(raw json.RawMessage) (Data, error) {
	return unmarshalData(raw)
}

// StorageFields is the set of column values a storage backend needs to
// reconstruct an Event read back from `events` (spec.md §4.4 schema),
// including the id, type, and category it stores as separate indexed
// columns.
type StorageFields struct {
	ID         ids.EventID
	Type       Type
	Category   Category
	Timestamp  time.Time
	SessionID  ids.SessionID
	HasSession bool
	Priority   Priority
	Data       Data
	Metadata   Metadata
}

// FromStorage reconstructs an Event from columns a storage backend scanned
// out of its `events` table. It does not re-derive Category from Type —
// the stored category is trusted as-is, since it was derived correctly at
// write time and the schema indexes on it directly.
func FromStorage(f StorageFields) Event {
	e := Event{
		id:        f.ID,
		eventType: f.Type,
		category:  f.Category,
		timestamp: f.Timestamp,
		priority:  f.Priority,
		data:      f.Data,
		metadata:  f.Metadata,
	}
	if f.HasSession {
		e.sessionID = f.SessionID
		e.hasSession = true
	}
	return e
}

func (e *Event) UnmarshalJSON(raw []byte) error {
	var wire eventWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	id, err := ids.ParseEventID(wire.ID)
	if err != nil {
		return err
	}
	data, err := unmarshalData(wire.Data)
	if err != nil {
		return err
	}
	out := Event{
		id:        id,
		eventType: wire.EventType,
		category:  wire.Category,
		timestamp: wire.Timestamp,
		priority:  wire.Priority,
		data:      data,
		metadata:  wire.Metadata,
	}
	if wire.SessionID != "" {
		sid, err := ids.ParseSessionID(wire.SessionID)
		if err != nil {
			return err
		}
		out.sessionID = sid
		out.hasSession = true
	}
	*e = out
	return nil
}
