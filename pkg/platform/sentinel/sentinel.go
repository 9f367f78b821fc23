// Package sentinel holds sentinel errors for infrastructure facts, so
// callers can branch with errors.Is instead of matching messages. In this
// module only the collector returns any of them (ErrQueueFull, wrapped, and
// ErrShutdown); the others are declared but not returned by any package.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: entity does not exist in store
//   - ErrQueueFull: the collector's ingest queue is at capacity
//   - ErrShutdown: the collector is shutting down or has shut down
//   - ErrCorrupt: the storage engine found the on-disk state unreadable
//   - ErrLegalHold: a retention policy's legal hold suppressed the operation
//   - ErrUnavailable: a dependency (storage, cache, broker) is unreachable
//
// For validation errors (bad input, missing fields), use pkg/perrors instead.
package sentinel

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrQueueFull   = errors.New("ingest queue full")
	ErrShutdown    = errors.New("collector is shut down")
	ErrCorrupt     = errors.New("storage corrupt")
	ErrLegalHold   = errors.New("blocked by legal hold")
	ErrUnavailable = errors.New("unavailable")
)
