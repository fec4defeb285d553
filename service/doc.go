// Package service defines the lifecycle contract shared by the gateway's
// long-running pieces: the HTTP front end, the bridge, the state monitor,
// and the metrics server.
//
// # Service Contract
//
// Everything that runs for the life of the process implements Service:
// named, startable with a context, stoppable with a timeout, and able to
// report status, health, and runtime info. The process entry point starts
// services in dependency order and stops them in reverse; it needs no
// knowledge of what each service does beyond this contract.
//
// # BaseService
//
// BaseService carries the boilerplate so concrete services only implement
// their actual work: atomic status transitions (stopped, starting, running,
// stopping, failed), a periodic health check loop driven by a pluggable
// HealthCheckFunc, graceful shutdown on context cancellation, and activity
// counters surfaced through GetStatus. Concrete services embed it and
// override Start, Stop, and Health:
//
//	type Worker struct {
//	    *service.BaseService
//	}
//
//	func NewWorker(opts ...service.Option) *Worker {
//	    return &Worker{BaseService: service.NewBaseService("worker", opts...)}
//	}
//
// The failed status is terminal and deliberate: when a service's core loop
// dies (the bridge's run loop, for instance), restarting in place would hide
// the crash from operators and orchestrators. MarkFailed pins the service
// unhealthy until the process restarts.
//
// # HTTP Exposure
//
// Services that expose HTTP endpoints without owning a listener implement
// HTTPHandler; the gateway mounts them onto its mux at startup.
package service
