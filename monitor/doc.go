// Package monitor fans bridge occupancy snapshots out to observers. The
// bridge publishes a snapshot on every admission and completion
// transition into a bounded drop-oldest buffer; subscribers attach over
// SSE or WebSocket and receive a short replay followed by live updates.
//
// The write path never blocks: a stalled subscriber loses intermediate
// snapshots, not the bridge's time.
package monitor
