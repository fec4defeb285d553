package bridge

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/infergate/errors"
	"github.com/c360/infergate/health"
	"github.com/c360/infergate/metric"
	"github.com/c360/infergate/service"
)

// Config sets the bridge's admission and timeout behavior.
type Config struct {
	// QueueBound caps the admission queue. A full queue rejects new
	// submissions with ErrBackendSaturated instead of buffering without
	// limit.
	QueueBound int `json:"queue_bound" yaml:"queue_bound"`

	// ChunkCapacity sizes the bounded channel behind each stream.
	ChunkCapacity int `json:"chunk_capacity" yaml:"chunk_capacity"`

	// DefaultTimeout is the hard per-request timeout applied when the
	// envelope carries no deadline. The earlier of the two wins.
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout"`

	// SweepInterval bounds how long a pending request can linger after the
	// run loop dies before the sweeper resolves it as unavailable.
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval"`

	// StallWindow is how long a stream push waits on a full channel before
	// reporting the consumer as stalled.
	StallWindow time.Duration `json:"stall_window" yaml:"stall_window"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		QueueBound:     32,
		ChunkCapacity:  16,
		DefaultTimeout: 120 * time.Second,
		SweepInterval:  250 * time.Millisecond,
		StallWindow:    30 * time.Second,
	}
}

// Validate checks that every knob is positive.
func (c Config) Validate() error {
	if c.QueueBound <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Bridge", "Validate", "queue_bound must be positive")
	}
	if c.ChunkCapacity <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Bridge", "Validate", "chunk_capacity must be positive")
	}
	if c.DefaultTimeout <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Bridge", "Validate", "default_timeout must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Bridge", "Validate", "sweep_interval must be positive")
	}
	if c.StallWindow <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Bridge", "Validate", "stall_window must be positive")
	}
	return nil
}

// Stats is a point-in-time view of bridge occupancy and terminal outcome
// counters, consumed by the engine monitor and mirrored to Prometheus.
type Stats struct {
	InFlight     int   `json:"in_flight"`
	InQueue      int   `json:"in_queue"`
	MaxInFlight  int   `json:"max_in_flight"`
	QueueBound   int   `json:"queue_bound"`
	Completed    int64 `json:"completed"`
	Streams      int64 `json:"streams"`
	Failed       int64 `json:"failed"`
	Cancelled    int64 `json:"cancelled"`
	TimedOut     int64 `json:"timed_out"`
	Saturated    int64 `json:"saturated"`
	Unavailable  int64 `json:"unavailable"`
	LateOutcomes int64 `json:"late_outcomes"`
	Sweeps       int64 `json:"sweeps"`
}

// Bridge moves envelopes from the multi-goroutine HTTP domain into the single
// cooperative run-loop goroutine and moves outcomes back. Submissions from
// any number of goroutines funnel through one bounded channel with exactly
// one consumer; only the run loop ever calls the adapter, so the backend
// sees strictly serial execution.
type Bridge struct {
	*service.BaseService

	cfg     Config
	adapter Adapter
	table   *correlationTable
	queue   chan *pendingEntry

	started  atomic.Bool
	stopping atomic.Bool
	loopDead atomic.Bool
	inFlight atomic.Int32

	shutdown chan struct{}
	loopDone chan struct{}
	wg       sync.WaitGroup

	logger         *slog.Logger
	registry       *metric.MetricsRegistry
	metrics        *metric.Metrics
	onStats        func(Stats)
	healthInterval time.Duration

	completed   atomic.Int64
	streams     atomic.Int64
	failed      atomic.Int64
	cancelled   atomic.Int64
	timedOut    atomic.Int64
	saturated   atomic.Int64
	unavailable atomic.Int64
	late        atomic.Int64
	sweeps      atomic.Int64
}

// Option configures a Bridge at construction.
type Option func(*Bridge)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics wires the bridge's occupancy gauges and outcome counters into
// the given registry's core metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(b *Bridge) {
		b.registry = registry
	}
}

// WithStatsListener registers a callback invoked with a fresh Stats snapshot
// whenever occupancy or a counter changes. The callback runs on whichever
// goroutine caused the change and must be safe for concurrent use and must
// not block.
func WithStatsListener(fn func(Stats)) Option {
	return func(b *Bridge) {
		b.onStats = fn
	}
}

// WithHealthInterval overrides the periodic health check interval.
func WithHealthInterval(d time.Duration) Option {
	return func(b *Bridge) {
		b.healthInterval = d
	}
}

// New creates a Bridge driving the given adapter. The bridge owns the
// adapter's execution: after Start, the run loop goroutine is the only
// caller of adapter.Run and adapter.RunStream.
func New(cfg Config, adapter Adapter, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if adapter == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Bridge", "New", "adapter is required")
	}

	b := &Bridge{
		cfg:      cfg,
		adapter:  adapter,
		table:    newCorrelationTable(),
		queue:    make(chan *pendingEntry, cfg.QueueBound),
		shutdown: make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	svcOpts := []service.Option{service.WithHealthCheck(b.healthCheck)}
	if b.logger != nil {
		svcOpts = append(svcOpts, service.WithLogger(b.logger))
	}
	if b.registry != nil {
		svcOpts = append(svcOpts, service.WithMetrics(b.registry))
		b.metrics = b.registry.CoreMetrics()
	}
	if b.healthInterval > 0 {
		svcOpts = append(svcOpts, service.WithHealthInterval(b.healthInterval))
	}
	b.BaseService = service.NewBaseService("bridge", svcOpts...)
	if b.logger == nil {
		b.logger = b.Logger()
	}
	return b, nil
}

// Start launches the run loop and the crash sweeper. A bridge is not
// restartable: once stopped or crashed it stays down.
func (b *Bridge) Start(ctx context.Context) error {
	if b.stopping.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Bridge", "Start", "restart attempt")
	}
	if !b.started.CompareAndSwap(false, true) {
		return nil
	}
	if err := b.BaseService.Start(ctx); err != nil {
		return errors.Wrap(err, "Bridge", "Start", "base service startup")
	}
	b.wg.Add(2)
	go b.run()
	go b.sweeper()
	b.logger.Info("bridge started",
		"queue_bound", b.cfg.QueueBound,
		"chunk_capacity", b.cfg.ChunkCapacity,
		"default_timeout", b.cfg.DefaultTimeout.String(),
		"sweep_interval", b.cfg.SweepInterval.String(),
	)
	return nil
}

// Stop requests cooperative cancellation of everything live, drains the
// admission queue, and waits up to timeout for the run loop to finish its
// current task.
func (b *Bridge) Stop(timeout time.Duration) error {
	if !b.stopping.CompareAndSwap(false, true) {
		return b.BaseService.Stop(timeout)
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	for _, entry := range b.table.snapshot() {
		entry.env.Cancel("shutting down")
	}
	close(b.shutdown)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		b.logger.Warn("run loop still busy at shutdown deadline", "in_flight", b.inFlight.Load())
	}
	return b.BaseService.Stop(timeout)
}

// Submit admits a single-shot envelope. It never blocks: a full admission
// queue fails immediately with ErrBackendSaturated, a dead run loop with
// ErrBackendUnavailable.
func (b *Bridge) Submit(env *Envelope) (*Pending, error) {
	return b.submit(env, false, "Submit")
}

// SubmitStream admits a streaming envelope. The resolved outcome carries a
// *ChunkSource delivering the chunks as the adapter produces them.
func (b *Bridge) SubmitStream(env *Envelope) (*Pending, error) {
	return b.submit(env, true, "SubmitStream")
}

func (b *Bridge) submit(env *Envelope, stream bool, op string) (*Pending, error) {
	if env == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Bridge", op, "nil envelope")
	}
	switch {
	case b.loopDead.Load():
		return nil, errors.WrapFatal(errors.ErrBackendUnavailable, "Bridge", op, "admission")
	case b.stopping.Load():
		return nil, errors.WrapTransient(errors.ErrShuttingDown, "Bridge", op, "admission")
	case b.Status() != service.StatusRunning:
		return nil, errors.WrapInvalid(errors.ErrNotStarted, "Bridge", op, "admission")
	}

	entry := newPendingEntry(env, stream)
	if err := b.table.insert(entry); err != nil {
		return nil, err
	}
	id := env.CorrelationID()

	deadline := time.Now().Add(b.cfg.DefaultTimeout)
	if d := env.Deadline(); !d.IsZero() && d.Before(deadline) {
		deadline = d
	}
	entry.arm(time.Until(deadline), func() { b.expire(id) })

	select {
	case b.queue <- entry:
	default:
		if e, ok := b.table.remove(id); ok {
			e.stopTimer()
		}
		b.recordOutcome("saturated")
		b.publish()
		b.logger.Warn("admission queue full",
			"route", env.Route(),
			"queue_bound", b.cfg.QueueBound,
		)
		return nil, errors.WrapTransient(errors.ErrBackendSaturated, "Bridge", op, "admission")
	}
	b.publish()
	b.logger.Debug("request admitted",
		"correlation_id", id,
		"route", env.Route(),
		"stream", stream,
	)
	return &Pending{id: id, bridge: b, outcome: entry.outcome}, nil
}

// Cancel trips the cancellation flag for a live correlation id. Advisory
// only: the running task stops at its next yield point, and the outcome may
// still be Complete or Stream if cancellation lost the race. The table entry
// stays until outcome delivery. Returns false when the id is not live.
func (b *Bridge) Cancel(correlationID string) bool {
	entry, ok := b.table.lookup(correlationID)
	if !ok {
		return false
	}
	if entry.env.Cancel("cancel requested") {
		b.logger.Debug("cancellation requested", "correlation_id", correlationID)
	}
	return true
}

// Stats returns a snapshot of occupancy and outcome counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		InFlight:     int(b.inFlight.Load()),
		InQueue:      len(b.queue),
		MaxInFlight:  1,
		QueueBound:   b.cfg.QueueBound,
		Completed:    b.completed.Load(),
		Streams:      b.streams.Load(),
		Failed:       b.failed.Load(),
		Cancelled:    b.cancelled.Load(),
		TimedOut:     b.timedOut.Load(),
		Saturated:    b.saturated.Load(),
		Unavailable:  b.unavailable.Load(),
		LateOutcomes: b.late.Load(),
		Sweeps:       b.sweeps.Load(),
	}
}

// Health distinguishes a live bridge from one whose run loop has died, and
// reports a saturated admission queue as degraded rather than unhealthy.
func (b *Bridge) Health() health.Status {
	var st health.Status
	switch {
	case b.loopDead.Load():
		st = health.NewUnhealthy(b.Name(), "Run loop terminated; backend unavailable")
	case len(b.queue) >= b.cfg.QueueBound:
		st = health.NewDegraded(b.Name(), "Admission queue saturated")
	default:
		st = b.BaseService.Health()
	}
	info := b.GetStatus()
	return st.WithMetrics(&health.Metrics{
		Uptime:            info.Uptime,
		ErrorCount:        int(b.failed.Load() + b.timedOut.Load() + b.unavailable.Load()),
		RequestsProcessed: b.completed.Load() + b.streams.Load() + b.cancelled.Load(),
		LastActivity:      info.LastActivity,
	})
}

func (b *Bridge) healthCheck() error {
	if b.loopDead.Load() {
		return errors.WrapFatal(errors.ErrBackendUnavailable, "Bridge", "healthCheck", "run loop liveness")
	}
	return nil
}

// run is the cooperative domain: one goroutine, FIFO over the admission
// queue, at most one task in flight. An adapter panic is a backend crash;
// the recover path marks the bridge failed and sweeps everything pending.
func (b *Bridge) run() {
	defer b.wg.Done()
	defer close(b.loopDone)
	defer func() {
		if r := recover(); r != nil {
			b.crash(r)
		}
	}()
	for {
		select {
		case <-b.shutdown:
			b.drainForShutdown()
			return
		case entry := <-b.queue:
			b.execute(entry)
		}
	}
}

func (b *Bridge) execute(entry *pendingEntry) {
	id := entry.env.CorrelationID()
	if _, live := b.table.lookup(id); !live {
		// the hard timeout already resolved it; nothing to run for
		b.logger.Debug("skipping already-resolved request", "correlation_id", id)
		return
	}

	b.inFlight.Store(1)
	b.publish()
	defer func() {
		b.inFlight.Store(0)
		b.publish()
	}()

	if entry.env.Cancelled() {
		err := errors.WrapCancelled(errors.ErrCancelled, "Bridge", "execute", "cancelled before start")
		b.finish(entry, cancelledOutcome(err))
		return
	}
	if entry.stream {
		b.executeStream(entry)
	} else {
		b.executeSingle(entry)
	}
}

func (b *Bridge) executeSingle(entry *pendingEntry) {
	task := &Task{env: entry.env}
	result, err := b.adapter.Run(task)

	var out Outcome
	switch {
	case err == nil:
		out = completeOutcome(result)
	case errors.IsCancelled(err):
		out = cancelledOutcome(err)
	default:
		out = failedOutcome(err)
	}
	b.finish(entry, out)
}

func (b *Bridge) executeStream(entry *pendingEntry) {
	id := entry.env.CorrelationID()
	src := newChunkSource(b.cfg.ChunkCapacity, entry.env.flag)

	// Resolve the caller with the chunk source before the adapter runs, so
	// chunks flow while production is still under way. From here on the
	// stream itself is the delivery surface; RunStream's error only
	// terminates it.
	e, ok := b.table.remove(id)
	if !ok {
		b.discardLate(id, OutcomeStream)
		return
	}
	b.recordOutcome("stream")
	b.RecordActivity()
	b.publish()
	e.deliver(streamOutcome(src))

	// Ends the stream as unavailable if RunStream panics; a no-op on the
	// normal path because the stream is already terminated below.
	defer src.terminate(errors.WrapFatal(errors.ErrBackendUnavailable, "Bridge", "executeStream", "stream producer"))

	task := &Task{env: entry.env}
	sink := &Sink{src: src, stall: b.cfg.StallWindow}
	err := b.adapter.RunStream(task, sink)
	switch {
	case err == nil:
		src.terminate(nil)
	case errors.IsCancelled(err):
		b.logger.Debug("stream cancelled", "correlation_id", id)
		src.terminate(err)
	default:
		b.logger.Warn("stream failed", "correlation_id", id, "error", err)
		src.terminate(err)
	}
	if b.metrics != nil {
		b.metrics.RecordBridgeTaskDuration(entry.env.Route(), time.Since(entry.enqueued))
	}
}

// finish resolves a single-shot outcome. A miss means the hard timeout got
// there first; the outcome is discarded as a counted no-op. Counters move
// before delivery so a caller waking from Await sees them settled.
func (b *Bridge) finish(entry *pendingEntry, out Outcome) {
	id := entry.env.CorrelationID()
	e, ok := b.table.remove(id)
	if !ok {
		b.discardLate(id, out.Kind)
		return
	}
	b.recordOutcome(out.Kind.String())
	if b.metrics != nil {
		b.metrics.RecordBridgeTaskDuration(entry.env.Route(), time.Since(entry.enqueued))
	}
	b.RecordActivity()
	b.publish()
	e.deliver(out)
}

func (b *Bridge) discardLate(id string, kind OutcomeKind) {
	b.late.Add(1)
	if b.metrics != nil {
		b.metrics.RecordBridgeLateOutcome()
	}
	b.logger.Debug("late outcome discarded", "correlation_id", id, "kind", kind.String())
}

// expire is the hard-timeout path, fired from the entry's timer goroutine.
// Removal under the table lock makes it race-safe against the run loop: one
// side wins, the other discards.
func (b *Bridge) expire(id string) {
	entry, ok := b.table.remove(id)
	if !ok {
		return
	}
	entry.env.Cancel("deadline exceeded")
	b.recordOutcome("timeout")
	b.logger.Warn("hard timeout resolved pending request",
		"correlation_id", id,
		"route", entry.env.Route(),
		"waited", time.Since(entry.enqueued).String(),
	)
	b.publish()
	err := errors.WrapTransient(errors.ErrDeadlineExceeded, "Bridge", "expire", "hard timeout")
	entry.deliver(failedOutcome(err))
}

// drainForShutdown resolves everything still parked in the admission queue
// when a graceful stop begins.
func (b *Bridge) drainForShutdown() {
	for {
		select {
		case entry := <-b.queue:
			id := entry.env.CorrelationID()
			if e, ok := b.table.remove(id); ok {
				b.recordOutcome("unavailable")
				err := errors.WrapTransient(errors.ErrShuttingDown, "Bridge", "Stop", "pending request")
				e.deliver(failedOutcome(err))
			}
		default:
			return
		}
	}
}

func (b *Bridge) crash(r any) {
	b.loopDead.Store(true)
	b.logger.Error("run loop terminated by adapter panic",
		"panic", r,
		"stack", string(debug.Stack()),
	)
	b.MarkFailed()
	swept := b.sweep()
	b.logger.Error("pending requests resolved as unavailable", "count", swept)
}

// sweeper resolves requests that race into the admission queue after a
// crash, bounding how long any caller can hang on a dead loop.
func (b *Bridge) sweeper() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.shutdown:
			return
		case <-ticker.C:
			if !b.loopDead.Load() {
				continue
			}
			if b.table.size() == 0 && len(b.queue) == 0 {
				continue
			}
			if swept := b.sweep(); swept > 0 {
				b.logger.Warn("swept stranded requests", "count", swept)
			}
		}
	}
}

// sweep drains the admission queue and resolves every live table entry as
// unavailable. Every queued entry is also a table entry (insertion precedes
// enqueue), so draining the channel only unparks entries the table drain
// then resolves.
func (b *Bridge) sweep() int {
	for {
		select {
		case <-b.queue:
			continue
		default:
		}
		break
	}
	drained := b.table.drain()
	for _, entry := range drained {
		entry.env.Cancel("backend unavailable")
		b.recordOutcome("unavailable")
		err := errors.WrapFatal(errors.ErrBackendUnavailable, "Bridge", "sweep", "pending request")
		entry.deliver(failedOutcome(err))
	}
	b.sweeps.Add(1)
	if b.metrics != nil {
		b.metrics.RecordBridgeSweep()
	}
	b.publish()
	return len(drained)
}

func (b *Bridge) recordOutcome(kind string) {
	switch kind {
	case "complete":
		b.completed.Add(1)
	case "stream":
		b.streams.Add(1)
	case "failed":
		b.failed.Add(1)
	case "cancelled":
		b.cancelled.Add(1)
	case "timeout":
		b.timedOut.Add(1)
	case "saturated":
		b.saturated.Add(1)
	case "unavailable":
		b.unavailable.Add(1)
	}
	if b.metrics != nil {
		b.metrics.RecordBridgeOutcome(kind)
	}
}

func (b *Bridge) publish() {
	if b.metrics != nil {
		b.metrics.RecordBridgeOccupancy(len(b.queue), int(b.inFlight.Load()))
	}
	if b.onStats != nil {
		b.onStats(b.Stats())
	}
}
