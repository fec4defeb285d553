package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// cancelFlag is the advisory cancellation signal shared between the native
// side and the cooperative domain. Tripping it never preempts anything: the
// running task sees it at its next yield point. The done channel lets a
// blocked chunk push observe cancellation without polling.
type cancelFlag struct {
	set    atomic.Bool
	reason atomic.Value // string
	once   sync.Once
	done   chan struct{}
}

func newCancelFlag() *cancelFlag {
	return &cancelFlag{done: make(chan struct{})}
}

// Set trips the flag. Only the first reason sticks; later calls are no-ops.
func (f *cancelFlag) Set(reason string) bool {
	won := false
	f.once.Do(func() {
		f.reason.Store(reason)
		f.set.Store(true)
		close(f.done)
		won = true
	})
	return won
}

// IsSet reports whether the flag has been tripped.
func (f *cancelFlag) IsSet() bool {
	return f.set.Load()
}

// Reason returns the reason recorded by the winning Set call.
func (f *cancelFlag) Reason() string {
	if r, ok := f.reason.Load().(string); ok {
		return r
	}
	return ""
}

// Envelope is one unit of work crossing from the HTTP front end into the
// cooperative backend domain: a correlation id, a route label, an opaque
// payload, and an optional deadline.
type Envelope struct {
	id       string
	route    string
	payload  any
	deadline time.Time
	flag     *cancelFlag
}

// EnvelopeOption configures an Envelope at construction.
type EnvelopeOption func(*Envelope)

// WithDeadline sets an absolute deadline for the request. The earlier of the
// deadline and the bridge's default timeout wins.
func WithDeadline(t time.Time) EnvelopeOption {
	return func(e *Envelope) {
		e.deadline = t
	}
}

// WithCorrelationID overrides the generated correlation id. Production
// envelopes keep the UUID; this exists for collision and replay tests.
func WithCorrelationID(id string) EnvelopeOption {
	return func(e *Envelope) {
		e.id = id
	}
}

// NewEnvelope creates an envelope for the given route and payload with a
// fresh correlation id and an untripped cancellation flag.
func NewEnvelope(route string, payload any, opts ...EnvelopeOption) *Envelope {
	e := &Envelope{
		id:      uuid.NewString(),
		route:   route,
		payload: payload,
		flag:    newCancelFlag(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CorrelationID returns the envelope's correlation id.
func (e *Envelope) CorrelationID() string {
	return e.id
}

// Route returns the route label the envelope was submitted under.
func (e *Envelope) Route() string {
	return e.route
}

// Payload returns the opaque request payload.
func (e *Envelope) Payload() any {
	return e.payload
}

// Deadline returns the absolute deadline, zero if none was set.
func (e *Envelope) Deadline() time.Time {
	return e.deadline
}

// Cancel trips the advisory cancellation flag. The running task observes it
// at its next yield point; nothing is preempted. Returns true on the first
// trip, false if the flag was already set.
func (e *Envelope) Cancel(reason string) bool {
	return e.flag.Set(reason)
}

// Cancelled reports whether the cancellation flag has been tripped.
func (e *Envelope) Cancelled() bool {
	return e.flag.IsSet()
}

// CancelReason returns the reason recorded by the first Cancel call.
func (e *Envelope) CancelReason() string {
	return e.flag.Reason()
}
