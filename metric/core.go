package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not handler-specific)
type Metrics struct {
	// Service metrics
	ServiceStatus     *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec

	// Gateway metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	StreamChunks    *prometheus.CounterVec

	// Bridge metrics
	BridgeQueueDepth   prometheus.Gauge
	BridgeInFlight     prometheus.Gauge
	BridgeOutcomes     *prometheus.CounterVec
	BridgeTaskDuration *prometheus.HistogramVec
	BridgeLateOutcomes prometheus.Counter
	BridgeSweeps       prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "infergate",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "infergate",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by service and class",
			},
			[]string{"service", "class"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "infergate",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"service"},
		),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "infergate",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "infergate",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		StreamChunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "infergate",
				Subsystem: "gateway",
				Name:      "stream_chunks_total",
				Help:      "Total number of streamed response chunks by route",
			},
			[]string{"route"},
		),

		BridgeQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "infergate",
				Subsystem: "bridge",
				Name:      "queue_depth",
				Help:      "Number of requests admitted and not yet terminal",
			},
		),

		BridgeInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "infergate",
				Subsystem: "bridge",
				Name:      "in_flight",
				Help:      "Tasks currently executing on the backend domain (0 or 1)",
			},
		),

		BridgeOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "infergate",
				Subsystem: "bridge",
				Name:      "outcomes_total",
				Help:      "Terminal outcomes by kind (complete, stream, failed, cancelled, timeout, saturated, unavailable)",
			},
			[]string{"kind"},
		),

		BridgeTaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "infergate",
				Subsystem: "bridge",
				Name:      "task_duration_seconds",
				Help:      "Backend task execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		BridgeLateOutcomes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "infergate",
				Subsystem: "bridge",
				Name:      "late_outcomes_total",
				Help:      "Backend outcomes discarded because the correlation entry was already resolved",
			},
		),

		BridgeSweeps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "infergate",
				Subsystem: "bridge",
				Name:      "sweeps_total",
				Help:      "Correlation table sweeps after run loop termination",
			},
		),
	}
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordError increments error counter
func (c *Metrics) RecordError(service, class string) {
	c.ErrorsTotal.WithLabelValues(service, class).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(service).Set(value)
}

// RecordRequest increments the gateway request counter
func (c *Metrics) RecordRequest(route, status string) {
	c.RequestsTotal.WithLabelValues(route, status).Inc()
}

// RecordRequestDuration records gateway request latency
func (c *Metrics) RecordRequestDuration(route string, duration time.Duration) {
	c.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordStreamChunk increments the streamed chunk counter
func (c *Metrics) RecordStreamChunk(route string) {
	c.StreamChunks.WithLabelValues(route).Inc()
}

// RecordBridgeOccupancy updates bridge queue depth and in-flight gauges
func (c *Metrics) RecordBridgeOccupancy(queueDepth, inFlight int) {
	c.BridgeQueueDepth.Set(float64(queueDepth))
	c.BridgeInFlight.Set(float64(inFlight))
}

// RecordBridgeOutcome increments the terminal outcome counter
func (c *Metrics) RecordBridgeOutcome(kind string) {
	c.BridgeOutcomes.WithLabelValues(kind).Inc()
}

// RecordBridgeTaskDuration records backend task execution time
func (c *Metrics) RecordBridgeTaskDuration(route string, duration time.Duration) {
	c.BridgeTaskDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordBridgeLateOutcome increments the discarded late outcome counter
func (c *Metrics) RecordBridgeLateOutcome() {
	c.BridgeLateOutcomes.Inc()
}

// RecordBridgeSweep increments the crash sweep counter
func (c *Metrics) RecordBridgeSweep() {
	c.BridgeSweeps.Inc()
}
