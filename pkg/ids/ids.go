// Package ids provides the 128-bit typed identifiers used across the
// pipeline (event, batch, session, policy, compliance request). Each type is
// a distinct named type over uuid.UUID so the compiler rejects mixing them
// up at call sites, even though they share a representation.
package ids

import (
	"github.com/google/uuid"

	"github.com/abramin/eventpipe/pkg/perrors"
)

type (
	EventID     uuid.UUID
	BatchID     uuid.UUID
	SessionID   uuid.UUID
	PolicyID    uuid.UUID
	RequestID   uuid.UUID
	CollectorID uuid.UUID
)

// NewEventID generates a fresh, random event identifier.
func NewEventID() EventID { return EventID(uuid.New()) }

// NewBatchID generates a fresh, random batch identifier.
func NewBatchID() BatchID { return BatchID(uuid.New()) }

// NewSessionID generates a fresh, random session identifier.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewPolicyID generates a fresh, random retention-policy identifier.
func NewPolicyID() PolicyID { return PolicyID(uuid.New()) }

// NewRequestID generates a fresh, random compliance-request identifier.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

func (id EventID) String() string     { return uuid.UUID(id).String() }
func (id BatchID) String() string     { return uuid.UUID(id).String() }
func (id SessionID) String() string   { return uuid.UUID(id).String() }
func (id PolicyID) String() string    { return uuid.UUID(id).String() }
func (id RequestID) String() string   { return uuid.UUID(id).String() }
func (id CollectorID) String() string { return uuid.UUID(id).String() }

func (id SessionID) IsNil() bool { return id == SessionID{} }
func (id EventID) IsNil() bool   { return id == EventID{} }

// ParseSessionID parses a string UUID into a SessionID, rejecting empty,
// malformed, and nil-UUID input.
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return SessionID{}, perrors.New(perrors.CodeInvalidInput, "session id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, perrors.Wrap(err, perrors.CodeInvalidInput, "invalid session id")
	}
	if u == uuid.Nil {
		return SessionID{}, perrors.New(perrors.CodeInvalidInput, "session id must not be nil")
	}
	return SessionID(u), nil
}

// ParseEventID parses a string UUID into an EventID, rejecting empty,
// malformed, and nil-UUID input.
func ParseEventID(s string) (EventID, error) {
	if s == "" {
		return EventID{}, perrors.New(perrors.CodeInvalidInput, "event id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return EventID{}, perrors.Wrap(err, perrors.CodeInvalidInput, "invalid event id")
	}
	if u == uuid.Nil {
		return EventID{}, perrors.New(perrors.CodeInvalidInput, "event id must not be nil")
	}
	return EventID(u), nil
}
