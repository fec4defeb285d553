// Package buffer provides thread-safe circular buffers with drop-based
// overflow policies, built-in statistics, and optional Prometheus export.
//
// # Overview
//
// The buffers here back latest-value state in the gateway: occupancy
// snapshots, recent-history windows, anything where a slow consumer must
// never stall a producer. Writes therefore never block; when a buffer is
// full, the overflow policy picks a victim and the write completes.
//
// For flows that need real backpressure (the bridge's streaming chunk path),
// a bounded channel is the right tool, not this package.
//
// # Quick Start
//
//	buf, err := buffer.NewCircularBuffer[Snapshot](16)
//	if err != nil {
//		return err
//	}
//	_ = buf.Write(snap)          // full buffer drops the oldest snapshot
//	latest, ok := buf.PeekLatest()
//
// With an explicit policy and Prometheus export:
//
//	buf, err := buffer.NewCircularBuffer[Snapshot](1,
//		buffer.WithOverflowPolicy[Snapshot](buffer.DropOldest),
//		buffer.WithMetrics[Snapshot](registry, "monitor"),
//	)
//
// A capacity-one DropOldest buffer is a latest-value cell: every write
// replaces the previous value and PeekLatest always sees the freshest one.
//
// # Overflow Policies
//
//   - DropOldest: remove the oldest item to make room (default)
//   - DropNewest: reject incoming items while full
//
// WithDropCallback observes dropped items either way, which is how fanout
// code can count lost updates without trusting consumers to report them.
//
// # Observability
//
// Statistics (writes, reads, peeks, overflows, drops, size high-water mark)
// are always collected and available via Stats(). WithMetrics additionally
// exports them under the infergate_buffer_* Prometheus series, labeled by
// component.
package buffer
