package bridge

import "time"

// Adapter is the cooperative backend the bridge drives. The bridge's run
// loop is the only caller: Run and RunStream are never invoked concurrently,
// so adapters may keep loop-local state without locking.
//
// Adapters must honor the cooperative contract: poll task.Cancelled()
// between units of work and return an errors.IsCancelled error when it
// trips. The bridge classifies that as a Cancelled outcome rather than a
// failure. A panic inside either method kills the run loop; the bridge
// resolves every pending task as unavailable and marks itself failed.
type Adapter interface {
	// Run executes a request-response task and returns its result.
	Run(task *Task) (any, error)

	// RunStream executes a streaming task, pushing chunks into sink. The
	// bridge has already resolved the caller's outcome with the chunk
	// source by the time RunStream starts; the error return only
	// terminates the stream.
	RunStream(task *Task, sink *Sink) error
}

// Task is the adapter's view of one envelope: the payload plus the
// cooperative cancellation surface.
type Task struct {
	env *Envelope
}

// NewTask wraps an envelope for direct adapter invocation. The bridge
// builds its own tasks; this exists so adapters can be driven in tests
// without standing up a run loop.
func NewTask(env *Envelope) *Task {
	return &Task{env: env}
}

// CorrelationID returns the task's correlation id, for adapter-side logging.
func (t *Task) CorrelationID() string {
	return t.env.CorrelationID()
}

// Route returns the route label the task was submitted under.
func (t *Task) Route() string {
	return t.env.Route()
}

// Payload returns the request payload.
func (t *Task) Payload() any {
	return t.env.Payload()
}

// Cancelled reports whether the task's cancellation flag has been tripped.
// Adapters poll this between units of work.
func (t *Task) Cancelled() bool {
	return t.env.Cancelled()
}

// Deadline returns the effective absolute deadline for the task.
func (t *Task) Deadline() time.Time {
	return t.env.Deadline()
}
