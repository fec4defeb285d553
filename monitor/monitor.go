package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/infergate/errors"
	"github.com/c360/infergate/metric"
	"github.com/c360/infergate/pkg/buffer"
	"github.com/c360/infergate/service"
)

// Snapshot is one occupancy observation: how much work the bridge holds
// at an instant. TS is unix milliseconds.
type Snapshot struct {
	InFlight    int   `json:"in_flight"`
	InQueue     int   `json:"in_queue"`
	MaxInFlight int   `json:"max_in_flight"`
	TS          int64 `json:"ts"`
}

// Config controls snapshot retention and subscriber keepalive.
type Config struct {
	// History is how many snapshots are retained and replayed to a new
	// subscriber. 1 gives pure latest-value behavior.
	History int `json:"history" yaml:"history"`

	// HeartbeatInterval is how often idle subscriber connections receive
	// a keepalive (SSE comment or WebSocket ping).
	HeartbeatInterval time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		History:           16,
		HeartbeatInterval: 15 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.History < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Monitor", "Validate",
			"history must be at least 1")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Monitor", "Validate",
			"heartbeat_interval must be positive")
	}
	return nil
}

// Monitor receives occupancy snapshots and fans them out. Publish is safe
// from any goroutine and never blocks, which is the property the bridge's
// stats listener contract demands.
type Monitor struct {
	*service.BaseService

	cfg       Config
	snapshots buffer.Buffer[Snapshot]

	mu   sync.RWMutex
	subs map[chan Snapshot]struct{}

	upgrader websocket.Upgrader
	stopping atomic.Bool
	shutdown chan struct{}
	wg       sync.WaitGroup

	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *monitorMetrics
}

// Option configures a Monitor at construction.
type Option func(*Monitor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics exports subscriber and fanout counters to the registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(m *Monitor) {
		m.registry = registry
	}
}

// New creates a Monitor.
func New(cfg Config, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Monitor{
		cfg:      cfg,
		subs:     make(map[chan Snapshot]struct{}),
		shutdown: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// State snapshots are not sensitive and the dashboard may be
			// served from another origin.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(m)
	}

	bufOpts := []buffer.Option[Snapshot]{
		buffer.WithOverflowPolicy[Snapshot](buffer.DropOldest),
	}
	if m.registry != nil {
		bufOpts = append(bufOpts, buffer.WithMetrics[Snapshot](m.registry, "monitor"))
	}
	snapshots, err := buffer.NewCircularBuffer[Snapshot](cfg.History, bufOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Monitor", "New", "snapshot buffer creation")
	}
	m.snapshots = snapshots

	if m.registry != nil {
		m.metrics, err = newMonitorMetrics(m.registry)
		if err != nil {
			return nil, errors.Wrap(err, "Monitor", "New", "metrics registration")
		}
	}

	var svcOpts []service.Option
	if m.logger != nil {
		svcOpts = append(svcOpts, service.WithLogger(m.logger))
	}
	if m.registry != nil {
		svcOpts = append(svcOpts, service.WithMetrics(m.registry))
	}
	m.BaseService = service.NewBaseService("monitor", svcOpts...)
	if m.logger == nil {
		m.logger = m.Logger()
	}
	return m, nil
}

// Start marks the monitor running. Fanout itself is passive; connections
// drive their own goroutines.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.BaseService.Start(ctx); err != nil {
		return errors.Wrap(err, "Monitor", "Start", "base service startup")
	}
	m.logger.Info("monitor started",
		"history", m.cfg.History,
		"heartbeat_interval", m.cfg.HeartbeatInterval.String(),
	)
	return nil
}

// Stop detaches every subscriber and waits for connection goroutines.
func (m *Monitor) Stop(timeout time.Duration) error {
	if m.stopping.CompareAndSwap(false, true) {
		close(m.shutdown)

		m.mu.Lock()
		for ch := range m.subs {
			delete(m.subs, ch)
			close(ch)
		}
		m.mu.Unlock()

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		select {
		case <-done:
		case <-time.After(timeout):
			m.logger.Warn("subscriber connections still open at shutdown deadline")
		}
	}
	return m.BaseService.Stop(timeout)
}

// Publish records a snapshot and fans it out. A zero TS is stamped with
// the current time. Subscribers whose channel is full miss this snapshot
// and pick up again at the next one.
func (m *Monitor) Publish(snap Snapshot) {
	if snap.TS == 0 {
		snap.TS = time.Now().UnixMilli()
	}
	_ = m.snapshots.Write(snap)

	m.mu.RLock()
	subscribers := len(m.subs)
	for ch := range m.subs {
		select {
		case ch <- snap:
		default:
			if m.metrics != nil {
				m.metrics.drops.Inc()
			}
		}
	}
	m.mu.RUnlock()

	if m.metrics != nil {
		m.metrics.snapshots.Inc()
		m.metrics.subscribers.Set(float64(subscribers))
	}
	m.RecordActivity()
}

// Latest returns the freshest snapshot, if any has been published.
func (m *Monitor) Latest() (Snapshot, bool) {
	return m.snapshots.PeekLatest()
}

// Subscribe registers a fanout channel primed with the retained history.
// The returned cancel is idempotent and closes the channel.
func (m *Monitor) Subscribe() (<-chan Snapshot, func()) {
	replay := m.snapshots.PeekBatch(m.cfg.History)
	ch := make(chan Snapshot, m.cfg.History+1)
	for _, snap := range replay {
		ch <- snap
	}

	m.mu.Lock()
	if m.stopping.Load() {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subs[ch]; ok {
			delete(m.subs, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers returns the current fanout count.
func (m *Monitor) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *Monitor) String() string {
	return fmt.Sprintf("Monitor(history=%d)", m.cfg.History)
}
