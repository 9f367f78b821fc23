package aggregator

import (
	"strings"

	pstrings "github.com/abramin/eventpipe/pkg/platform/strings"

	"github.com/abramin/eventpipe/internal/events"
)

// fixedDimensions are the Event fields (besides metadata.Custom) an
// AggregationSpec's Dimensions may name (spec.md §4.5 step 3).
const (
	DimensionCategory  = "category"
	DimensionEventType = "event_type"
	DimensionSessionID = "session_id"
	DimensionPriority  = "priority"
)

// AggregationSpec is a named aggregation definition (spec.md §3 glossary):
// granularity, event-type and category filters, the functions to compute,
// dimension names to group by, and an optional value-field selector.
type AggregationSpec struct {
	Name        string
	Granularity Granularity
	EventTypes  []events.Type
	Categories  []events.Category
	Functions   []Function
	Dimensions  []string
	ValueField  string
}

// normalizedDimensions dedupes and trims the spec's dimension names,
// grounded on the teacher's pkg/platform/strings.DedupeAndTrim, reused here
// so a caller-supplied dimension list with accidental duplicates or
// whitespace doesn't fragment buckets.
func (s AggregationSpec) normalizedDimensions() []string {
	return pstrings.DedupeAndTrim(s.Dimensions)
}

// matches reports whether e passes the spec's event-type and category
// filters (spec.md §4.5 step 2: an empty list means any).
func (s AggregationSpec) matches(e events.Event) bool {
	if len(s.EventTypes) > 0 && !containsType(s.EventTypes, e.Type()) {
		return false
	}
	if len(s.Categories) > 0 && !containsCategory(s.Categories, e.Category()) {
		return false
	}
	return true
}

func containsType(list []events.Type, t events.Type) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func containsCategory(list []events.Category, c events.Category) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}

// dimensionKey extracts the spec's requested dimension values from an
// event, falling back to the empty string for a fixed field or custom-map
// key the event doesn't carry. The result is serialized to a stable string
// so it can be used as part of a bucket map key.
func dimensionKey(dims []string, e events.Event) string {
	if len(dims) == 0 {
		return ""
	}
	var b strings.Builder
	for i, d := range dims {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(dimensionValue(d, e))
	}
	return b.String()
}

func dimensionValue(name string, e events.Event) string {
	switch name {
	case DimensionCategory:
		return string(e.Category())
	case DimensionEventType:
		return string(e.Type())
	case DimensionSessionID:
		if sid, ok := e.SessionID(); ok {
			return sid.String()
		}
		return ""
	case DimensionPriority:
		return e.Priority().String()
	default:
		return e.Metadata().Custom[name]
	}
}

// dimensionMap builds the emitted AggregatedMetric's dimension map from the
// same extraction dimensionKey uses, so a metric's Dimensions field reflects
// exactly the values its bucket was grouped by.
func dimensionMap(dims []string, e events.Event) map[string]string {
	if len(dims) == 0 {
		return nil
	}
	out := make(map[string]string, len(dims))
	for _, d := range dims {
		out[d] = dimensionValue(d, e)
	}
	return out
}

// valueOf extracts the numeric value an event contributes to its bucket's
// accumulator (spec.md §4.5 step 4): the spec's named value field, read off
// the concrete Data variant, defaulting to 1.0 for plain counting when no
// field is configured or the event's Data doesn't carry one.
func valueOf(field string, e events.Event) float64 {
	if field == "" {
		return 1.0
	}
	switch d := e.Data().(type) {
	case events.PerformanceData:
		if field == "value" {
			return d.Value
		}
	case events.BusinessData:
		if field == "value" {
			return d.Value
		}
	case events.UsageData:
		if field == "duration_ms" {
			return d.DurationMs
		}
	}
	return 1.0
}
