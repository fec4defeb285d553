package bridge

import (
	"context"

	"github.com/c360/infergate/errors"
)

// Pending is the caller's handle on a submitted envelope. Await blocks for
// the outcome; abandoning the wait requests cooperative cancellation but
// never interrupts the task.
type Pending struct {
	id      string
	bridge  *Bridge
	outcome chan Outcome
}

// CorrelationID returns the correlation id of the submitted envelope.
func (p *Pending) CorrelationID() string {
	return p.id
}

// Await blocks until the task resolves or ctx is done. When the caller
// gives up first, Await requests cancellation on its way out; the task
// still runs to its next yield point and its outcome is delivered to the
// buffered channel, where it is simply never read.
func (p *Pending) Await(ctx context.Context) (Outcome, error) {
	select {
	case out := <-p.outcome:
		return out, nil
	case <-ctx.Done():
		p.bridge.Cancel(p.id)
		return Outcome{}, errors.WrapCancelled(ctx.Err(), "Pending", "Await", "outcome wait")
	}
}
