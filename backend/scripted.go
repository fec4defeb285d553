package backend

import (
	"github.com/c360/infergate/bridge"
)

// Scripted plays back caller-provided behavior, one failure mode per
// test: slow responses for saturation tests, panics for crash-sweep
// tests, mid-stream errors, and so on. The zero value echoes the task
// payload and closes streams immediately.
type Scripted struct {
	// OnRun handles single-shot tasks when set.
	OnRun func(task *bridge.Task) (any, error)

	// OnStream handles streaming tasks when set.
	OnStream func(task *bridge.Task, sink *bridge.Sink) error
}

// Run executes OnRun, or echoes the payload back when unset.
func (s *Scripted) Run(task *bridge.Task) (any, error) {
	if s.OnRun == nil {
		return task.Payload(), nil
	}
	return s.OnRun(task)
}

// RunStream executes OnStream, or produces an empty stream when unset.
func (s *Scripted) RunStream(task *bridge.Task, sink *bridge.Sink) error {
	if s.OnStream == nil {
		return nil
	}
	return s.OnStream(task, sink)
}
