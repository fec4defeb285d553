// Package infergate provides an OpenAI-compatible HTTP gateway in front
// of a single-threaded inference runtime.
//
// # Philosophy: One Loop, Many Callers
//
// Inference runtimes tend to be single-threaded event loops: one
// goroutine owns the model, steps it cooperatively, and must never
// block. HTTP servers are the opposite: every request gets its own
// goroutine and blocks until a response exists. InferGate is the
// asynchronous bridge between those two worlds.
//
//	┌─────────────────────────────────────┐
//	│          HTTP Gateway               │  One goroutine per request
//	│  (auth, limits, OpenAI wire shapes) │  Blocks awaiting results
//	└─────────────────────────────────────┘
//	           ↓ submits, awaits
//	┌─────────────────────────────────────┐
//	│            Bridge                   │  Correlation table,
//	│  (queue, correlate, cancel, sweep)  │  bounded admission queue
//	└─────────────────────────────────────┘
//	           ↓ steps cooperatively
//	┌─────────────────────────────────────┐
//	│         Backend Adapter             │  Single run-loop goroutine
//	│     (owns the model runtime)        │  Must never block
//	└─────────────────────────────────────┘
//
// The bridge guarantees the run loop sees work one task at a time, in
// admission order, while front-end goroutines park on channels keyed
// by correlation ID. Nothing in the front end ever touches the model;
// nothing in the run loop ever blocks on a client.
//
// # Task Lifecycle
//
// Every request becomes a task with a unique correlation ID:
//
//	submit ──► queued ──► running ──► completed
//	              │          │
//	              │          ├──► failed (backend error)
//	              │          │
//	              ▼          ▼
//	          cancelled   cancelled (advisory, checked at step
//	       (before start)  boundaries by the run loop)
//
// Admission is bounded: when in-flight plus queued work reaches the
// configured ceiling, new submissions are rejected immediately with a
// saturation error rather than queued without limit. Cancellation is
// advisory - the gateway flips a flag when the client disconnects, and
// the run loop observes it at its next step boundary. A sweeper
// goroutine enforces hard deadlines on tasks whose backend has stopped
// making progress, so a wedged runtime cannot strand callers forever.
//
// # Streaming
//
// Streaming responses flow through per-task sinks. The run loop pushes
// chunks as the model produces them; the gateway goroutine drains the
// sink and relays each chunk as a server-sent event. Chat streams
// terminate with the OpenAI [DONE] marker, transcription streams with
// a transcript.text.done event. A slow client stalls only its own
// sink; the stall window bounds how long the run loop will wait before
// abandoning the task.
//
// # Packages
//
// Core:
//   - bridge: correlation table, admission queue, sweeper, run loop host
//   - backend: adapter contract plus the loopback reference adapter
//   - gateway: HTTP front end, middleware, OpenAI route handlers
//   - openai: wire types for chat, transcription, models, errors
//
// Infrastructure:
//   - config: layered configuration (defaults, JSON/YAML, env)
//   - registry: sealed route table and OpenAPI document rendering
//   - monitor: occupancy snapshots, history ring, WebSocket feed
//   - metric: Prometheus registry and metrics server
//   - health: component health statuses with sub-status aggregation
//   - errors: structured error wrapping with severity classes
//
// Utilities:
//   - pkg/buffer: ring buffer backing the monitor history
//
// # Binary
//
// Build and run InferGate:
//
//	# Run on compiled defaults (loopback backend, :8080)
//	./bin/infergate
//
//	# Run with a config file and environment overrides
//	INFERGATE_AUTH_TOKEN=secret ./bin/infergate -config configs/local.yaml
//
//	# Validate configuration without starting
//	./bin/infergate -config configs/local.yaml -validate
//
// The gateway serves the OpenAI-compatible API under /api/v1, health
// probes at /health, /healthz and /readyz, the OpenAPI document at
// /openapi.json, and - when the monitor is enabled - live occupancy at
// /state and /state/ws.
package infergate
