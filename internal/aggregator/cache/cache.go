// Package cache provides the aggregator's second-tier result cache
// (spec.md §4.5): results are cached per AggregationSpec name, bypassed by
// an explicit single-window aggregate and populated only by a full
// aggregate-all sweep. An in-process implementation is always available;
// a Redis-backed one is selected at construction time when a Redis client
// is configured (SPEC_FULL.md §9).
package cache

import "context"

// Cache stores one set of computed metrics per spec name.
type Cache interface {
	// Get returns the cached metrics for name, and whether an entry was
	// present (and not expired).
	Get(ctx context.Context, name string) ([]byte, bool, error)

	// Set stores the encoded metrics for name.
	Set(ctx context.Context, name string, encoded []byte) error

	// Clear resets every cached entry (clear_cache() in spec.md §4.5).
	Clear(ctx context.Context) error
}
