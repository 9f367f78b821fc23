// Package metrics holds the process-wide Prometheus metrics shared across
// pipeline components. Component-specific counters live alongside their
// owning package (see internal/collector, internal/retention); this package is for the handful of cross-cutting
// gauges that don't belong to any one of them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds pipeline-wide Prometheus metrics.
type Metrics struct {
	Up               prometheus.Gauge
	ConfigReloads    prometheus.Counter
	ConfigRejections prometheus.Counter
}

// New creates and registers the cross-cutting metrics.
func New() *Metrics {
	return &Metrics{
		Up: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "eventpipe_up",
			Help: "1 while the pipeline process is running",
		}),
		ConfigReloads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eventpipe_config_reloads_total",
			Help: "Total number of accepted runtime configuration replacements",
		}),
		ConfigRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eventpipe_config_rejections_total",
			Help: "Total number of runtime configuration replacements rejected by validation",
		}),
	}
}

func (m *Metrics) MarkUp() { m.Up.Set(1) }

func (m *Metrics) MarkDown() { m.Up.Set(0) }

func (m *Metrics) IncConfigReloads() { m.ConfigReloads.Inc() }

func (m *Metrics) IncConfigRejections() { m.ConfigRejections.Inc() }
