// Package health provides health monitoring functionality for infergate components.
//
// # Overview
//
// Health in an inference gateway has one question behind it: is the process
// merely accepting connections, or is the cooperative backend domain actually
// making progress? The package models three levels to answer it:
//
//   - healthy: component operating normally
//   - degraded: transient trouble (saturation, deadline pressure), still serving
//   - unhealthy: the component cannot do its job (run loop dead, config broken)
//
// # Status Values
//
// Status is a JSON-serializable snapshot with component name, level, message,
// timestamp, optional sub-statuses and metrics:
//
//	status := health.NewHealthy("bridge", "run loop active")
//	status = status.WithMetrics(&health.Metrics{Uptime: uptime, RequestsProcessed: n})
//
// FromError maps an error to a level using the errors package classification:
// transient errors degrade, everything else marks unhealthy. Messages are
// sanitized (URLs, paths, IPs, ports, credentials are redacted) before they
// reach the health surface.
//
// # Aggregation
//
// Aggregate folds sub-statuses into a single status: any unhealthy child makes
// the parent unhealthy, otherwise any degraded child makes it degraded. The
// aggregate message names the first offending component.
//
//	system := health.Aggregate("infergate", []health.Status{bridgeStatus, gatewayStatus})
//
// # Monitor
//
// Monitor keeps the last-known status per component for the health endpoint:
//
//	monitor := health.NewMonitor()
//	monitor.Update("bridge", bridge.Health())
//	monitor.UpdateFromError("backend", lastErr)
//	system := monitor.AggregateHealth("infergate")
//
// All operations are safe for concurrent use.
package health
