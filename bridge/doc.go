// Package bridge moves inference requests between two scheduling domains:
// the multi-goroutine HTTP front end, where any number of connection
// goroutines run in parallel, and a single cooperative run-loop goroutine,
// which is the only caller of the backend adapter and runs exactly one task
// at a time.
//
// # Crossing the boundary
//
// A request crosses as an Envelope: correlation id, route label, opaque
// payload, optional deadline, and an advisory cancellation flag. Submit
// registers the id in the correlation table, arms the hard-timeout timer,
// and enqueues the entry on a bounded admission channel. A full channel is
// the backpressure signal: Submit fails fast with ErrBackendSaturated
// instead of buffering without limit.
//
//	env := bridge.NewEnvelope("chat", payload)
//	pending, err := br.Submit(env)
//	if err != nil { ... }
//	out, err := pending.Await(ctx)
//
// The outcome comes back over a buffered channel, so resolution never blocks
// the run loop on a caller that stopped listening.
//
// # Exactly-once resolution
//
// Three paths race to resolve a correlation id: the run loop delivering the
// adapter's result, the hard-timeout timer, and the crash sweep. All of them
// claim the entry by removing it from the table under its lock, so exactly
// one wins; the others find nothing and discard their outcome as a counted
// no-op. A caller that abandons Await detaches without disturbing this: the
// entry still resolves once, into a channel nobody reads.
//
// # Cancellation
//
// Cancellation is advisory, never preemptive. Cancel trips an atomic flag on
// the envelope; the adapter polls task.Cancelled() between units of work and
// winds down at its next yield point. Cancelling may lose the race: the
// outcome can still be Complete if the adapter finished first.
//
// # Streaming
//
// SubmitStream resolves its outcome with a *ChunkSource the moment the run
// loop starts the task, before the adapter produces anything. Chunks flow
// through a bounded channel; a consumer that stops pulling stalls the
// adapter's Push, which gives up after the stall window so the cooperative
// domain is never parked forever on a slow client. A consumer closing the
// source (or its context expiring) trips the cancellation flag.
//
// # Crash handling
//
// An adapter panic is a backend crash. The run loop's recover marks the
// bridge failed, and the sweep resolves every pending entry to
// ErrBackendUnavailable; a periodic sweeper catches entries that raced into
// the queue around the crash, bounding how long any caller can hang.
package bridge
