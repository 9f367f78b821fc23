package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/abramin/eventpipe/internal/aggregator/cache"
	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/storage"
)

// Aggregator computes windowed aggregates over an AnalyticsStorage backend
// on demand, with a per-spec result cache (spec.md §4.5).
type Aggregator struct {
	storage storage.AnalyticsStorage
	cache   cache.Cache
	tracer  trace.Tracer
}

// New constructs an Aggregator. c must not be nil; callers that don't want
// a cache should pass cache.NewInProcess().
func New(s storage.AnalyticsStorage, c cache.Cache) *Aggregator {
	return &Aggregator{
		storage: s,
		cache:   c,
		tracer:  otel.Tracer("eventpipe/aggregator"),
	}
}

// Aggregate computes spec over [start, end] directly against storage,
// bypassing the cache (spec.md §4.5: "Cache is bypassed by
// aggregate(spec, start, end)").
func (a *Aggregator) Aggregate(ctx context.Context, spec AggregationSpec, start, end time.Time) ([]AggregatedMetric, error) {
	ctx, span := a.tracer.Start(ctx, "Aggregator.Aggregate",
		trace.WithAttributes(
			attribute.String("aggregator.spec", spec.Name),
			attribute.String("aggregator.granularity", string(spec.Granularity)),
		),
	)
	defer span.End()

	if !spec.Granularity.valid() {
		return nil, fmt.Errorf("invalid granularity %q", spec.Granularity)
	}

	evts, err := a.storage.QueryByTime(ctx, start, end, 0)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	filtered := make([]events.Event, 0, len(evts))
	for _, e := range evts {
		if spec.matches(e) {
			filtered = append(filtered, e)
		}
	}

	return runBuckets(spec, filtered), nil
}

// AggregateAll runs Aggregate for every spec, and populates the cache with
// each spec's result keyed by spec name (spec.md §4.5: "populated by
// aggregate_all").
func (a *Aggregator) AggregateAll(ctx context.Context, specs []AggregationSpec, start, end time.Time) (map[string][]AggregatedMetric, error) {
	ctx, span := a.tracer.Start(ctx, "Aggregator.AggregateAll",
		trace.WithAttributes(attribute.Int("aggregator.spec_count", len(specs))),
	)
	defer span.End()

	out := make(map[string][]AggregatedMetric, len(specs))
	for _, spec := range specs {
		metrics, err := a.Aggregate(ctx, spec, start, end)
		if err != nil {
			return nil, fmt.Errorf("spec %q: %w", spec.Name, err)
		}
		out[spec.Name] = metrics

		encoded, err := json.Marshal(metrics)
		if err != nil {
			return nil, fmt.Errorf("encode spec %q result: %w", spec.Name, err)
		}
		if err := a.cache.Set(ctx, spec.Name, encoded); err != nil {
			return nil, fmt.Errorf("cache spec %q result: %w", spec.Name, err)
		}
	}
	return out, nil
}

// Cached returns the most recently cached result for a spec name, as
// populated by the last AggregateAll call.
func (a *Aggregator) Cached(ctx context.Context, specName string) ([]AggregatedMetric, bool, error) {
	encoded, ok, err := a.cache.Get(ctx, specName)
	if err != nil || !ok {
		return nil, ok, err
	}
	var metrics []AggregatedMetric
	if err := json.Unmarshal(encoded, &metrics); err != nil {
		return nil, false, fmt.Errorf("decode cached spec %q result: %w", specName, err)
	}
	return metrics, true, nil
}

// ClearCache resets every cached result (spec.md §4.5 clear_cache()).
func (a *Aggregator) ClearCache(ctx context.Context) error {
	return a.cache.Clear(ctx)
}
