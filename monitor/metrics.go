package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/infergate/metric"
)

// monitorMetrics holds Prometheus metrics for the fanout path.
type monitorMetrics struct {
	subscribers prometheus.Gauge
	snapshots   prometheus.Counter
	drops       prometheus.Counter
}

func newMonitorMetrics(registry *metric.MetricsRegistry) (*monitorMetrics, error) {
	m := &monitorMetrics{
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "infergate",
			Subsystem: "monitor",
			Name:      "subscribers",
			Help:      "Current number of attached state subscribers",
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "infergate",
			Subsystem: "monitor",
			Name:      "snapshots_total",
			Help:      "Total occupancy snapshots published by the bridge",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "infergate",
			Subsystem: "monitor",
			Name:      "fanout_drops_total",
			Help:      "Snapshots dropped because a subscriber channel was full",
		}),
	}

	registrations := []error{
		registry.RegisterGauge("monitor", "subscribers", m.subscribers),
		registry.RegisterCounter("monitor", "snapshots", m.snapshots),
		registry.RegisterCounter("monitor", "fanout_drops", m.drops),
	}
	for _, err := range registrations {
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}
