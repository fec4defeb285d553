package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/infergate/errors"
)

// pendingEntry is one live correlation: the envelope, its hard-timeout
// timer, and the channel the outcome is delivered on. The outcome channel
// is buffered so delivery never blocks the run loop on a detached caller.
// The timer is armed after the entry is inserted, so the pointer is atomic:
// a resolve racing the arm sees either nil or the live timer, and a timer
// armed after resolution fires into an empty table, which is harmless.
type pendingEntry struct {
	env      *Envelope
	timer    atomic.Pointer[time.Timer]
	enqueued time.Time
	stream   bool
	outcome  chan Outcome
}

func newPendingEntry(env *Envelope, stream bool) *pendingEntry {
	return &pendingEntry{
		env:      env,
		enqueued: time.Now(),
		stream:   stream,
		outcome:  make(chan Outcome, 1),
	}
}

// arm starts the hard-timeout timer.
func (e *pendingEntry) arm(d time.Duration, fn func()) {
	e.timer.Store(time.AfterFunc(d, fn))
}

func (e *pendingEntry) stopTimer() {
	if t := e.timer.Load(); t != nil {
		t.Stop()
	}
}

// deliver hands the outcome to the waiting caller. The correlation table's
// removal-under-lock guarantees at most one deliver per entry, so the send
// on the buffered channel never blocks.
func (e *pendingEntry) deliver(out Outcome) {
	e.stopTimer()
	e.outcome <- out
}

// correlationTable tracks every live correlation id. Resolution claims the
// entry by removing it under the lock, so whichever path gets there first
// (run loop, timeout timer, crash sweep) owns the delivery and every later
// attempt finds nothing.
type correlationTable struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

func newCorrelationTable() *correlationTable {
	return &correlationTable{entries: make(map[string]*pendingEntry)}
}

// insert registers a live correlation id. A duplicate id means two live
// requests would share an identity, which can misroute outcomes, so it is
// rejected as fatal rather than overwritten.
func (t *correlationTable) insert(e *pendingEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := e.env.CorrelationID()
	if _, exists := t.entries[id]; exists {
		return errors.WrapFatal(errors.ErrCorrelationCollision, "CorrelationTable", "insert", "entry registration")
	}
	t.entries[id] = e
	return nil
}

// lookup returns the live entry for id without removing it.
func (t *correlationTable) lookup(id string) (*pendingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return e, ok
}

// remove claims the entry for id, deleting it under the lock. The claimant
// owns delivery; a miss means another path resolved the id first.
func (t *correlationTable) remove(id string) (*pendingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return e, ok
}

// drain removes and returns every live entry. Used by the crash sweep to
// resolve everything the dead loop will never pick up.
func (t *correlationTable) drain() []*pendingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	drained := make([]*pendingEntry, 0, len(t.entries))
	for _, e := range t.entries {
		drained = append(drained, e)
	}
	clear(t.entries)
	return drained
}

// snapshot copies the live entries without removing them. Used at shutdown
// to request cancellation across the board.
func (t *correlationTable) snapshot() []*pendingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	live := make([]*pendingEntry, 0, len(t.entries))
	for _, e := range t.entries {
		live = append(live, e)
	}
	return live
}

func (t *correlationTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
