package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/infergate/metric"
)

// bufferMetrics holds Prometheus metrics for buffer operations.
type bufferMetrics struct {
	writes    prometheus.Counter
	reads     prometheus.Counter
	peeks     prometheus.Counter
	overflows prometheus.Counter
	drops     prometheus.Counter

	size        prometheus.Gauge
	utilization prometheus.Gauge
}

// newBufferMetrics creates and registers buffer metrics with the registry.
// The prefix names the owning component ("monitor", etc.) so two buffers can
// coexist on one registry.
func newBufferMetrics(registry *metric.MetricsRegistry, prefix string) (*bufferMetrics, error) {
	labels := prometheus.Labels{"component": prefix}

	m := &bufferMetrics{
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "infergate",
			Subsystem:   "buffer",
			Name:        "writes_total",
			ConstLabels: labels,
			Help:        "Total number of buffer write operations",
		}),
		reads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "infergate",
			Subsystem:   "buffer",
			Name:        "reads_total",
			ConstLabels: labels,
			Help:        "Total number of buffer read operations",
		}),
		peeks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "infergate",
			Subsystem:   "buffer",
			Name:        "peeks_total",
			ConstLabels: labels,
			Help:        "Total number of buffer peek operations",
		}),
		overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "infergate",
			Subsystem:   "buffer",
			Name:        "overflows_total",
			ConstLabels: labels,
			Help:        "Total number of writes that found the buffer full",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "infergate",
			Subsystem:   "buffer",
			Name:        "drops_total",
			ConstLabels: labels,
			Help:        "Total number of items dropped by the overflow policy",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "infergate",
			Subsystem:   "buffer",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of items in the buffer",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "infergate",
			Subsystem:   "buffer",
			Name:        "utilization",
			ConstLabels: labels,
			Help:        "Buffer utilization as a fraction (0.0 to 1.0)",
		}),
	}

	registrations := []struct {
		name string
		err  error
	}{
		{"buffer_writes", registry.RegisterCounter(prefix, "buffer_writes", m.writes)},
		{"buffer_reads", registry.RegisterCounter(prefix, "buffer_reads", m.reads)},
		{"buffer_peeks", registry.RegisterCounter(prefix, "buffer_peeks", m.peeks)},
		{"buffer_overflows", registry.RegisterCounter(prefix, "buffer_overflows", m.overflows)},
		{"buffer_drops", registry.RegisterCounter(prefix, "buffer_drops", m.drops)},
		{"buffer_size", registry.RegisterGauge(prefix, "buffer_size", m.size)},
		{"buffer_utilization", registry.RegisterGauge(prefix, "buffer_utilization", m.utilization)},
	}
	for _, reg := range registrations {
		if reg.err != nil {
			return nil, reg.err
		}
	}

	return m, nil
}

func (m *bufferMetrics) recordWrite(size, capacity int) {
	m.writes.Inc()
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}

func (m *bufferMetrics) recordRead(size, capacity int) {
	m.reads.Inc()
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}

func (m *bufferMetrics) recordPeek() {
	m.peeks.Inc()
}

func (m *bufferMetrics) recordOverflow() {
	m.overflows.Inc()
}

func (m *bufferMetrics) recordDrop() {
	m.drops.Inc()
}

func (m *bufferMetrics) updateSize(size, capacity int) {
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}
