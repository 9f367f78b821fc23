package aggregator

import (
	"sort"
	"time"

	"github.com/abramin/eventpipe/internal/events"
)

// bucketKey identifies one (truncated timestamp, dimension combination)
// group within a single spec's run (spec.md §4.5 step 3).
type bucketKey struct {
	periodStart time.Time
	dimKey      string
}

// bucket pairs a key's accumulator with the dimension map to emit alongside
// it. Every requested function is computed from the same accumulator.
type bucket struct {
	key  bucketKey
	dims map[string]string
	acc  *accumulator
}

// AggregatedMetric is one (bucket, function) result row (spec.md §4.5
// step 6).
type AggregatedMetric struct {
	Name        string
	Function    Function
	Value       float64
	Count       int64
	PeriodStart time.Time
	PeriodEnd   time.Time
	Dimensions  map[string]string
}

// runBuckets implements spec.md §4.5 steps 3-6 over an already-fetched,
// already-filtered slice of events: compute each event's bucket key, fold
// its value into the bucket's accumulator, then emit one AggregatedMetric
// per bucket per requested function.
func runBuckets(spec AggregationSpec, evts []events.Event) []AggregatedMetric {
	dims := spec.normalizedDimensions()
	buckets := make(map[bucketKey]*bucket)
	order := make([]bucketKey, 0)

	for _, e := range evts {
		periodStart := Truncate(spec.Granularity, e.Timestamp())
		key := bucketKey{periodStart: periodStart, dimKey: dimensionKey(dims, e)}

		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				key:  key,
				dims: dimensionMap(dims, e),
				acc:  newAccumulator(),
			}
			buckets[key] = b
			order = append(order, key)
		}

		b.acc.add(valueOf(spec.ValueField, e))
	}

	metrics := make([]AggregatedMetric, 0, len(order)*len(spec.Functions))
	for _, key := range order {
		b := buckets[key]
		periodEnd := PeriodEnd(spec.Granularity, key.periodStart)
		for _, fn := range spec.Functions {
			metrics = append(metrics, AggregatedMetric{
				Name:        spec.Name,
				Function:    fn,
				Value:       b.acc.compute(fn),
				Count:       int64(b.acc.count),
				PeriodStart: key.periodStart,
				PeriodEnd:   periodEnd,
				Dimensions:  b.dims,
			})
		}
	}

	// spec.md §4.5 step 7: sort by period_start. Ties (same bucket, several
	// functions) keep their within-bucket function order for determinism.
	sort.SliceStable(metrics, func(i, j int) bool {
		return metrics[i].PeriodStart.Before(metrics[j].PeriodStart)
	})
	return metrics
}
