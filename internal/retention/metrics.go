package retention

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the retention engine's Prometheus instrumentation,
// grounded on the collector's equivalent (internal/collector.Metrics).
type Metrics struct {
	EventsDeleted  prometheus.Counter
	EventsArchived prometheus.Counter
	EnforceErrors  prometheus.Counter
}

// NewMetrics registers the retention engine's counters. Pass a non-nil
// registerer (e.g. prometheus.NewRegistry()) in tests to avoid colliding
// with the global default registry across test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventpipe_retention_events_deleted_total",
			Help: "Total events removed by retention policy enforcement.",
		}),
		EventsArchived: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventpipe_retention_events_archived_total",
			Help: "Total events written to an archive file before deletion.",
		}),
		EnforceErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventpipe_retention_enforce_errors_total",
			Help: "Total policy-enforcement passes that failed to archive or delete.",
		}),
	}
}
