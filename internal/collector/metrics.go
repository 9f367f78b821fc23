package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collector's Prometheus instrumentation, grounded on the
// teacher's publishers/ops.Metrics shape.
type Metrics struct {
	Received       prometheus.Counter
	SampledOut     prometheus.Counter
	Processed      prometheus.Counter
	Dropped        prometheus.Counter
	BatchesFlushed prometheus.Counter
	FlushErrors    prometheus.Counter
	QueueDepth     prometheus.Gauge
}

// NewMetrics registers the collector's counters and gauge. Pass a non-nil
// registerer (e.g. prometheus.NewRegistry()) in tests to avoid colliding
// with the global default registry across test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Received: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventpipe_collector_received_total",
			Help: "Total events accepted by collect() before policy/sampling.",
		}),
		SampledOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventpipe_collector_sampled_out_total",
			Help: "Total events excluded by sampling.",
		}),
		Processed: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventpipe_collector_processed_total",
			Help: "Total events enqueued onto the ingest queue.",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventpipe_collector_dropped_total",
			Help: "Total events dropped because the ingest queue was full.",
		}),
		BatchesFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventpipe_collector_batches_flushed_total",
			Help: "Total batches flushed to sinks.",
		}),
		FlushErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventpipe_collector_flush_errors_total",
			Help: "Total sink Process errors across all flushes.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eventpipe_collector_queue_depth",
			Help: "Current depth of the ingest queue.",
		}),
	}
}
