// Package metric provides Prometheus-based metrics collection and an HTTP
// server for inference gateway observability.
//
// The package offers a centralized metrics registry managing both core
// gateway metrics (service status, HTTP traffic, bridge occupancy and
// outcomes) and custom service-specific metrics. It includes an HTTP server
// exposing metrics in Prometheus format for monitoring system integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: gateway-level metrics automatically registered (Metrics type)
//  2. Service Registry: extensible registration for service-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: metrics endpoint with health checks (Server type)
//
// Core metrics live under the "infergate" namespace. The request-facing
// series (requests, durations, stream chunks) are labeled by route name so
// that transcription and chat traffic can be told apart, and the bridge
// series expose what operators actually page on: queue depth, in-flight
// count, outcome kinds (complete, stream, failed, cancelled, timeout,
// saturated, unavailable), late-outcome discards, and crash sweeps.
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil && err != http.ErrServerClosed {
//	        log.Fatal(err)
//	    }
//	}()
//	defer server.Stop()
//
// Recording core metrics:
//
//	core := registry.CoreMetrics()
//	core.RecordRequest("audio.transcriptions", "200")
//	core.RecordRequestDuration("audio.transcriptions", elapsed)
//	core.RecordBridgeOccupancy(queueDepth, inFlight)
//	core.RecordBridgeOutcome("complete")
//
// # Service-Specific Metrics
//
// Services register their own collectors through the MetricsRegistrar
// interface. Metric names are scoped per service, so two services can
// register a metric called "queue_depth" without colliding in the registry's
// bookkeeping (the Prometheus names themselves must still be unique):
//
//	func (s *MyService) RegisterMetrics(registrar metric.MetricsRegistrar) error {
//	    s.processed = prometheus.NewCounter(prometheus.CounterOpts{
//	        Namespace: "infergate",
//	        Subsystem: "my_service",
//	        Name:      "items_processed_total",
//	        Help:      "Total items processed",
//	    })
//	    return registrar.RegisterCounter(s.Name(), "items_processed_total", s.processed)
//	}
//
// Registration failures are classified: a duplicate registration is an
// invalid error (programmer mistake), not a transient one.
//
// # HTTP Endpoints
//
// The metrics server exposes:
//
//   - GET {path}  - Prometheus exposition (default /metrics)
//   - GET /health - liveness probe for the metrics server itself
//   - GET /       - HTML index linking the above
//
// The server binds only the metrics surface; gateway traffic is served
// elsewhere. Keeping the two apart means a saturated gateway cannot starve
// scrapes, and the metrics port can stay unexposed to clients.
package metric
