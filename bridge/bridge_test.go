package bridge

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/infergate/errors"
	"github.com/c360/infergate/service"
)

// testAdapter is a scriptable in-package adapter. The run counter tracks how
// many times the backend was actually invoked.
type testAdapter struct {
	runFunc       func(task *Task) (any, error)
	runStreamFunc func(task *Task, sink *Sink) error
	runs          atomic.Int32
}

func (a *testAdapter) Run(task *Task) (any, error) {
	a.runs.Add(1)
	if a.runFunc != nil {
		return a.runFunc(task)
	}
	return task.Payload(), nil
}

func (a *testAdapter) RunStream(task *Task, sink *Sink) error {
	a.runs.Add(1)
	if a.runStreamFunc != nil {
		return a.runStreamFunc(task, sink)
	}
	return nil
}

// awaitCancellation polls the task flag the way a cooperative backend would.
func awaitCancellation(task *Task) (any, error) {
	for !task.Cancelled() {
		time.Sleep(2 * time.Millisecond)
	}
	return nil, errors.WrapCancelled(errors.ErrCancelled, "testAdapter", "Run", "cancellation observed")
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.QueueBound = 4
	cfg.ChunkCapacity = 2
	cfg.DefaultTimeout = 2 * time.Second
	cfg.SweepInterval = 20 * time.Millisecond
	cfg.StallWindow = 100 * time.Millisecond
	return cfg
}

func newTestBridge(t *testing.T, cfg Config, adapter Adapter, opts ...Option) *Bridge {
	t.Helper()
	b, err := New(cfg, adapter, opts...)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop(time.Second) })
	return b
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, &testAdapter{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = New(testConfig(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "adapter")
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"queue bound", func(c *Config) { c.QueueBound = 0 }, "queue_bound"},
		{"chunk capacity", func(c *Config) { c.ChunkCapacity = -1 }, "chunk_capacity"},
		{"default timeout", func(c *Config) { c.DefaultTimeout = 0 }, "default_timeout"},
		{"sweep interval", func(c *Config) { c.SweepInterval = 0 }, "sweep_interval"},
		{"stall window", func(c *Config) { c.StallWindow = 0 }, "stall_window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBridge_SubmitComplete(t *testing.T) {
	adapter := &testAdapter{runFunc: func(task *Task) (any, error) {
		m := task.Payload().(map[string]string)
		return map[string]string{"text": strings.ToUpper(m["text"])}, nil
	}}
	b := newTestBridge(t, testConfig(), adapter)

	pending, err := b.Submit(NewEnvelope("chat", map[string]string{"text": "hi"}))
	require.NoError(t, err)
	require.NotEmpty(t, pending.CorrelationID())

	out, err := pending.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeComplete, out.Kind)
	assert.Equal(t, map[string]string{"text": "HI"}, out.Result)
	assert.NoError(t, out.Err)

	st := b.Stats()
	assert.EqualValues(t, 1, st.Completed)
	assert.Equal(t, 1, st.MaxInFlight)
	assert.Equal(t, 4, st.QueueBound)
}

func TestBridge_FailedOutcomeSurfacesAdapterError(t *testing.T) {
	adapter := &testAdapter{runFunc: func(*Task) (any, error) {
		return nil, errors.WrapTransient(errors.ErrInvalidData, "testAdapter", "Run", "decode")
	}}
	b := newTestBridge(t, testConfig(), adapter)

	pending, err := b.Submit(NewEnvelope("chat", "x"))
	require.NoError(t, err)
	out, err := pending.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, errors.ErrInvalidData)
	assert.EqualValues(t, 1, b.Stats().Failed)
}

func TestBridge_SaturationRejectsExcess(t *testing.T) {
	cfg := testConfig()
	cfg.QueueBound = 1

	gate := make(chan struct{})
	started := make(chan struct{}, 4)
	adapter := &testAdapter{runFunc: func(task *Task) (any, error) {
		started <- struct{}{}
		<-gate
		m := task.Payload().(map[string]string)
		return map[string]string{"text": strings.ToUpper(m["text"])}, nil
	}}
	b := newTestBridge(t, cfg, adapter)

	first, err := b.Submit(NewEnvelope("chat", map[string]string{"text": "hi"}))
	require.NoError(t, err)
	<-started // first is in flight, the queue slot is free

	second, err := b.Submit(NewEnvelope("chat", map[string]string{"text": "ho"}))
	require.NoError(t, err)

	third, err := b.Submit(NewEnvelope("chat", map[string]string{"text": "no"}))
	require.Error(t, err)
	require.Nil(t, third)
	assert.ErrorIs(t, err, errors.ErrBackendSaturated)
	assert.True(t, errors.IsTransient(err))

	close(gate)
	out, err := first.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"text": "HI"}, out.Result)

	out, err = second.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"text": "HO"}, out.Result)

	assert.EqualValues(t, 1, b.Stats().Saturated)
}

func TestBridge_CancelBeforeStartSkipsAdapter(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 4)
	adapter := &testAdapter{runFunc: func(task *Task) (any, error) {
		started <- struct{}{}
		<-gate
		return task.Payload(), nil
	}}
	b := newTestBridge(t, testConfig(), adapter)

	first, err := b.Submit(NewEnvelope("chat", "busy"))
	require.NoError(t, err)
	<-started

	second, err := b.Submit(NewEnvelope("chat", "doomed"))
	require.NoError(t, err)
	require.True(t, b.Cancel(second.CorrelationID()))

	close(gate)
	out, err := second.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, out.Kind)
	assert.True(t, errors.IsCancelled(out.Err))

	// only the first request ever reached the backend
	assert.EqualValues(t, 1, adapter.runs.Load())

	_, err = first.Await(context.Background())
	require.NoError(t, err)
}

func TestBridge_CancelUnknownIDIsNoOp(t *testing.T) {
	b := newTestBridge(t, testConfig(), &testAdapter{})
	assert.False(t, b.Cancel("no-such-id"))
}

func TestBridge_HardTimeoutAndLateDiscard(t *testing.T) {
	gate := make(chan struct{})
	adapter := &testAdapter{runFunc: func(*Task) (any, error) {
		<-gate
		return "late result", nil
	}}
	b := newTestBridge(t, testConfig(), adapter)

	env := NewEnvelope("chat", "slow", WithDeadline(time.Now().Add(50*time.Millisecond)))
	pending, err := b.Submit(env)
	require.NoError(t, err)

	out, err := pending.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, errors.ErrDeadlineExceeded)
	assert.True(t, errors.IsTransient(out.Err))
	assert.EqualValues(t, 1, b.Stats().TimedOut)
	assert.True(t, env.Cancelled())

	// the backend eventually finishes; its result has nowhere to go and is
	// discarded as a counted no-op
	close(gate)
	require.Eventually(t, func() bool {
		return b.Stats().LateOutcomes == 1
	}, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 0, b.Stats().Completed)
}

func TestBridge_EnvelopeDeadlineBeatsDefaultTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultTimeout = 50 * time.Millisecond

	gate := make(chan struct{})
	defer close(gate)
	adapter := &testAdapter{runFunc: func(*Task) (any, error) {
		<-gate
		return nil, nil
	}}
	b := newTestBridge(t, cfg, adapter)

	// a later envelope deadline does not extend the default timeout
	env := NewEnvelope("chat", "x", WithDeadline(time.Now().Add(time.Hour)))
	pending, err := b.Submit(env)
	require.NoError(t, err)

	startedAt := time.Now()
	out, err := pending.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, errors.ErrDeadlineExceeded)
	assert.Less(t, time.Since(startedAt), 5*time.Second)
}

func TestBridge_CrashSweepResolvesAllPending(t *testing.T) {
	ready := make(chan struct{})
	adapter := &testAdapter{runFunc: func(*Task) (any, error) {
		<-ready
		panic("backend died")
	}}
	b := newTestBridge(t, testConfig(), adapter)

	var pendings []*Pending
	for range 3 {
		p, err := b.Submit(NewEnvelope("chat", "x"))
		require.NoError(t, err)
		pendings = append(pendings, p)
	}
	close(ready)

	for _, p := range pendings {
		out, err := p.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeFailed, out.Kind)
		assert.ErrorIs(t, out.Err, errors.ErrBackendUnavailable)
		assert.True(t, errors.IsFatal(out.Err))
	}

	// the bridge is terminally failed and refuses new work
	assert.Equal(t, service.StatusFailed, b.Status())
	assert.True(t, b.Health().IsUnhealthy())

	_, err := b.Submit(NewEnvelope("chat", "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBackendUnavailable)
	assert.True(t, errors.IsFatal(err))

	st := b.Stats()
	assert.EqualValues(t, 3, st.Unavailable)
	assert.GreaterOrEqual(t, st.Sweeps, int64(1))
}

func TestBridge_AwaitDetachRequestsCancellation(t *testing.T) {
	adapter := &testAdapter{runFunc: awaitCancellation}
	b := newTestBridge(t, testConfig(), adapter)

	pending, err := b.Submit(NewEnvelope("chat", "x"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out, err := pending.Await(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Outcome{}, out)

	// the detached entry still resolves exactly once, unread
	require.Eventually(t, func() bool {
		return b.Stats().Cancelled == 1
	}, time.Second, 10*time.Millisecond)
}

func TestBridge_CorrelationCollisionIsFatal(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 4)
	adapter := &testAdapter{runFunc: func(task *Task) (any, error) {
		started <- struct{}{}
		<-gate
		return task.Payload(), nil
	}}
	b := newTestBridge(t, testConfig(), adapter)

	first, err := b.Submit(NewEnvelope("chat", "x", WithCorrelationID("dup")))
	require.NoError(t, err)
	<-started

	_, err = b.Submit(NewEnvelope("chat", "y", WithCorrelationID("dup")))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCorrelationCollision)
	assert.True(t, errors.IsFatal(err))

	close(gate)
	_, err = first.Await(context.Background())
	require.NoError(t, err)
}

func TestBridge_LifecycleGates(t *testing.T) {
	b, err := New(testConfig(), &testAdapter{})
	require.NoError(t, err)

	_, err = b.Submit(NewEnvelope("chat", "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotStarted)

	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, b.Start(context.Background())) // idempotent

	require.NoError(t, b.Stop(time.Second))
	_, err = b.Submit(NewEnvelope("chat", "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrShuttingDown)

	err = b.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyStopped)
}

func TestBridge_GracefulStopResolvesPending(t *testing.T) {
	started := make(chan struct{}, 4)
	adapter := &testAdapter{runFunc: func(task *Task) (any, error) {
		started <- struct{}{}
		return awaitCancellation(task)
	}}
	b := newTestBridge(t, testConfig(), adapter)

	first, err := b.Submit(NewEnvelope("chat", "running"))
	require.NoError(t, err)
	<-started

	second, err := b.Submit(NewEnvelope("chat", "queued"))
	require.NoError(t, err)

	require.NoError(t, b.Stop(2*time.Second))
	assert.Equal(t, service.StatusStopped, b.Status())

	out, err := first.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, out.Kind)

	// the queued request resolves as cancelled or as a shutdown failure,
	// depending on which branch the run loop saw first
	out, err = second.Await(context.Background())
	require.NoError(t, err)
	assert.Contains(t, []OutcomeKind{OutcomeCancelled, OutcomeFailed}, out.Kind)
}

func TestBridge_HealthReflectsQueuePressure(t *testing.T) {
	cfg := testConfig()
	cfg.QueueBound = 1

	gate := make(chan struct{})
	defer close(gate)
	started := make(chan struct{}, 4)
	adapter := &testAdapter{runFunc: func(task *Task) (any, error) {
		started <- struct{}{}
		<-gate
		return task.Payload(), nil
	}}
	b := newTestBridge(t, cfg, adapter)

	assert.True(t, b.Health().IsHealthy())

	_, err := b.Submit(NewEnvelope("chat", "a"))
	require.NoError(t, err)
	<-started
	_, err = b.Submit(NewEnvelope("chat", "b"))
	require.NoError(t, err)

	st := b.Health()
	assert.True(t, st.IsDegraded())
	require.NotNil(t, st.Metrics)
}

func TestBridge_StatsListener(t *testing.T) {
	var mu sync.Mutex
	var seen []Stats
	listener := func(s Stats) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}
	b := newTestBridge(t, testConfig(), &testAdapter{}, WithStatsListener(listener))

	pending, err := b.Submit(NewEnvelope("chat", "x"))
	require.NoError(t, err)
	_, err = pending.Await(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	completed := false
	for _, s := range seen {
		if s.Completed == 1 {
			completed = true
		}
	}
	assert.True(t, completed, "no snapshot recorded the completion")
}
