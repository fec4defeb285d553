// Package backend holds the adapters that sit on the cooperative side of
// the bridge, plus the payload contract the gateway and adapters share:
// route names, request payload types (the openai package's request
// structs) and the result types adapters hand back.
//
// The adapters here exercise the bridge contract rather than perform
// inference: Loopback echoes deterministic transformations of its input
// and Scripted plays back caller-provided behavior for failure-mode
// tests. A real inference backend implements bridge.Adapter the same way
// and dispatches on the task route.
package backend
