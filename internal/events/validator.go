package events

import (
	"fmt"
	"time"
)

const staleAfter = 7 * 24 * time.Hour

// ValidationResult carries the diagnostics Validate produces. Errors reject
// the event (a future timestamp, or a category that does not match the
// type's category); warnings are informational and never cause rejection.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether the event has no validation errors.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Validate checks an event against spec.md §4.1's invariants: it is an error
// if the timestamp is in the future (relative to now) or if the event's
// category differs from its type's category; it is a warning if the event
// is stale (>7 days old) or if its Data variant doesn't match what its Type
// expects. Validate never mutates the event.
func Validate(e Event) ValidationResult {
	var result ValidationResult
	now := time.Now().UTC()

	if e.timestamp.After(now) {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"event timestamp %s is in the future", e.timestamp.Format(time.RFC3339)))
	} else if now.Sub(e.timestamp) > staleAfter {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"event timestamp %s is stale (older than 7 days)", e.timestamp.Format(time.RFC3339)))
	}

	if expected, ok := e.eventType.ExpectedDataKind(); ok {
		if e.data == nil || e.data.Kind() != expected {
			got := DataKind("none")
			if e.data != nil {
				got = e.data.Kind()
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"event type %q expects data kind %q, got %q", e.eventType, expected, got))
		}
	}

	if e.category != e.eventType.Category() {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"event category %q does not match type %q's category %q",
			e.category, e.eventType, e.eventType.Category()))
	}

	return result
}
