package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abramin/eventpipe/internal/events"
)

func perfEvent(value float64, ts time.Time) events.Event {
	return events.NewBuilder(events.TypeLatencyRecorded).
		WithTimestamp(ts).
		WithData(events.PerformanceData{Metric: "latency", Value: value}).
		Build()
}

func TestRunBuckets_GroupsByTruncatedHour(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	evts := []events.Event{
		perfEvent(10, base.Add(5*time.Minute)),
		perfEvent(20, base.Add(40*time.Minute)),
		perfEvent(30, base.Add(time.Hour+5*time.Minute)),
	}
	spec := AggregationSpec{
		Name:        "latency",
		Granularity: GranularityHour,
		Functions:   []Function{FunctionCount, FunctionAvg},
		ValueField:  "value",
	}

	metrics := runBuckets(spec, evts)
	// Two buckets (hour 10 and hour 11) x two functions = 4 metrics.
	require.Len(t, metrics, 4)

	var hour10Count, hour10Avg float64
	for _, m := range metrics {
		if m.PeriodStart.Equal(base) {
			switch m.Function {
			case FunctionCount:
				hour10Count = m.Value
			case FunctionAvg:
				hour10Avg = m.Value
			}
		}
	}
	assert.Equal(t, float64(2), hour10Count)
	assert.Equal(t, float64(15), hour10Avg)
}

func TestRunBuckets_SortedByPeriodStart(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	evts := []events.Event{
		perfEvent(1, base.Add(3*time.Hour)),
		perfEvent(1, base),
		perfEvent(1, base.Add(time.Hour)),
	}
	spec := AggregationSpec{Granularity: GranularityHour, Functions: []Function{FunctionCount}, ValueField: "value"}

	metrics := runBuckets(spec, evts)
	require.Len(t, metrics, 3)
	for i := 1; i < len(metrics); i++ {
		assert.True(t, !metrics[i].PeriodStart.Before(metrics[i-1].PeriodStart))
	}
}

func TestRunBuckets_GroupsByDimension(t *testing.T) {
	now := time.Now().UTC()
	evts := []events.Event{
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(now).WithPriority(events.PriorityHigh).Build(),
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(now).WithPriority(events.PriorityLow).Build(),
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(now).WithPriority(events.PriorityHigh).Build(),
	}
	spec := AggregationSpec{
		Granularity: GranularityDay,
		Functions:   []Function{FunctionCount},
		Dimensions:  []string{DimensionPriority},
	}

	metrics := runBuckets(spec, evts)
	require.Len(t, metrics, 2)
	counts := map[string]float64{}
	for _, m := range metrics {
		counts[m.Dimensions[DimensionPriority]] = m.Value
	}
	assert.Equal(t, float64(2), counts["high"])
	assert.Equal(t, float64(1), counts["low"])
}

func TestRunBuckets_DefaultValueIsOneForCounting(t *testing.T) {
	now := time.Now().UTC()
	evts := []events.Event{
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(now).Build(),
		events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(now).Build(),
	}
	spec := AggregationSpec{Granularity: GranularityDay, Functions: []Function{FunctionSum}}

	metrics := runBuckets(spec, evts)
	require.Len(t, metrics, 1)
	assert.Equal(t, float64(2), metrics[0].Value)
}

func TestRunBuckets_IsDeterministic(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	evts := []events.Event{
		perfEvent(5, base),
		perfEvent(10, base.Add(time.Minute)),
		perfEvent(15, base.Add(2*time.Minute)),
	}
	spec := AggregationSpec{Granularity: GranularityHour, Functions: []Function{FunctionP50, FunctionAvg}, ValueField: "value"}

	first := runBuckets(spec, evts)
	second := runBuckets(spec, evts)
	assert.Equal(t, first, second)
}

func TestAggregationSpec_EmptyFilterListsMatchAny(t *testing.T) {
	spec := AggregationSpec{}
	e := events.NewBuilder(events.TypeErrorOccurred).Build()
	assert.True(t, spec.matches(e))
}

func TestAggregationSpec_FiltersByCategoryAndType(t *testing.T) {
	spec := AggregationSpec{Categories: []events.Category{events.CategoryUsage}}
	assert.False(t, spec.matches(events.NewBuilder(events.TypeErrorOccurred).Build()))
	assert.True(t, spec.matches(events.NewBuilder(events.TypeFeatureUsed).Build()))
}
