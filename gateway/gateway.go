package gateway

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/c360/infergate/bridge"
	"github.com/c360/infergate/errors"
	"github.com/c360/infergate/health"
	"github.com/c360/infergate/metric"
	"github.com/c360/infergate/monitor"
	"github.com/c360/infergate/registry"
	"github.com/c360/infergate/service"
)

// Gateway is the OpenAI-compatible HTTP front end over the bridge.
type Gateway struct {
	*service.BaseService

	cfg     Config
	engine  *bridge.Bridge
	monitor *monitor.Monitor

	limiter  *hostLimiter
	registry *registry.Registry
	handler  http.Handler
	created  int64

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener

	logger     *slog.Logger
	metricsReg *metric.MetricsRegistry
}

// Option configures a Gateway at construction.
type Option func(*Gateway)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics exports request counters and latencies to the registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(g *Gateway) {
		g.metricsReg = registry
	}
}

// WithMonitor attaches the occupancy monitor: its routes join the route
// table and its health joins the /health aggregate.
func WithMonitor(m *monitor.Monitor) Option {
	return func(g *Gateway) {
		g.monitor = m
	}
}

// New builds the gateway: route table, OpenAPI document and middleware
// chain are all fixed here; Start only binds the listener.
func New(cfg Config, engine *bridge.Bridge, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, errors.WrapFatal(errors.ErrMissingField, "Gateway", "New", "bridge engine is required")
	}

	g := &Gateway{
		cfg:     cfg,
		engine:  engine,
		created: time.Now().Unix(),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.limiter = newHostLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	svcOpts := []service.Option{service.WithHealthCheck(g.listenerCheck)}
	if g.logger != nil {
		svcOpts = append(svcOpts, service.WithLogger(g.logger))
	}
	if g.metricsReg != nil {
		svcOpts = append(svcOpts, service.WithMetrics(g.metricsReg))
	}
	g.BaseService = service.NewBaseService("gateway", svcOpts...)
	if g.logger == nil {
		g.logger = g.Logger()
	}

	builder := registry.NewBuilder(registry.InfoSpec{
		Title:       "Infergate API",
		Description: "OpenAI-compatible inference gateway over a single-threaded backend engine.",
		Version:     cfg.Version,
	})
	builder.AddServer("/", "This gateway")
	builder.AddTag("inference", "Model inference endpoints")
	builder.AddTag("ops", "Operational endpoints")
	for _, ep := range g.endpoints() {
		builder.Add(ep)
	}
	if g.monitor != nil {
		builder.AddTag("monitor", "Engine occupancy monitoring")
		for _, ep := range g.monitor.Endpoints() {
			builder.Add(ep)
		}
	}
	reg, err := builder.Build()
	if err != nil {
		return nil, errors.Wrap(err, "Gateway", "New", "route registration")
	}
	g.registry = reg

	mux := http.NewServeMux()
	reg.Apply(mux)

	mw := []func(http.Handler) http.Handler{
		g.recovery,
		g.requestID,
		g.accessLog,
		g.securityHeaders,
	}
	if cfg.EnableCORS {
		mw = append(mw, g.cors)
	}
	mw = append(mw, g.auth, g.rateLimit, g.bodyLimit)
	g.handler = chain(mux, mw...)

	return g, nil
}

// Handler returns the fully wrapped handler, for tests and for mounting
// the gateway inside another server.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Registry returns the sealed route table.
func (g *Gateway) Registry() *registry.Registry {
	return g.registry
}

// Start binds the listener and serves until Stop. A serve loop failure
// after startup marks the gateway failed rather than crashing the
// process.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.ln != nil {
		g.mu.Unlock()
		return nil
	}

	ln, err := net.Listen("tcp", g.cfg.Addr)
	if err != nil {
		g.mu.Unlock()
		return errors.WrapTransient(err, "Gateway", "Start", "listen on "+g.cfg.Addr)
	}
	g.ln = ln
	g.srv = &http.Server{
		Handler:      g.handler,
		ReadTimeout:  g.cfg.ReadTimeout,
		WriteTimeout: g.cfg.WriteTimeout,
		IdleTimeout:  g.cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn),
	}
	srv := g.srv
	g.mu.Unlock()

	if err := g.BaseService.Start(ctx); err != nil {
		_ = ln.Close()
		return errors.Wrap(err, "Gateway", "Start", "base service startup")
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			g.logger.Error("http server terminated", "error", err)
			g.MarkFailed()
		}
	}()

	g.logger.Info("gateway started",
		"addr", ln.Addr().String(),
		"auth", g.cfg.AuthToken != "",
		"rate_limit_rps", g.cfg.RateLimitRPS,
		"cors", g.cfg.EnableCORS,
	)
	return nil
}

// Addr returns the bound address, which differs from the configured one
// when it asked for port 0.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ln == nil {
		return ""
	}
	return g.ln.Addr().String()
}

// Stop drains in-flight requests up to the timeout, then closes whatever
// remains. Streams interrupted by the close see write failures and bail.
func (g *Gateway) Stop(timeout time.Duration) error {
	g.mu.Lock()
	srv := g.srv
	g.srv = nil
	g.ln = nil
	g.mu.Unlock()

	if srv != nil {
		if timeout <= 0 {
			timeout = g.cfg.ShutdownTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			g.logger.Warn("graceful shutdown expired, closing connections", "error", err)
			_ = srv.Close()
		}
	}

	return g.BaseService.Stop(timeout)
}

// Health aggregates the gateway with the bridge and monitor beneath it,
// naming the first unhealthy component.
func (g *Gateway) Health() health.Status {
	subs := []health.Status{g.BaseService.Health(), g.engine.Health()}
	if g.monitor != nil {
		subs = append(subs, g.monitor.Health())
	}
	return health.Aggregate("infergate", subs)
}

// listenerCheck is the periodic health probe: unhealthy until Start has
// bound the listener and again after Stop releases it.
func (g *Gateway) listenerCheck() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ln == nil {
		return errors.WrapTransient(errors.ErrNotStarted, "Gateway", "listenerCheck", "listener probe")
	}
	return nil
}
