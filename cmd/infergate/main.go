// Package main implements the entry point for the InferGate server.
// InferGate is an OpenAI-compatible HTTP gateway that funnels concurrent
// API traffic through a single-threaded inference engine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/infergate/backend"
	"github.com/c360/infergate/bridge"
	"github.com/c360/infergate/config"
	"github.com/c360/infergate/gateway"
	"github.com/c360/infergate/metric"
	"github.com/c360/infergate/monitor"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "infergate"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	// Rebuild the logger from the merged configuration; the bootstrap
	// logger only covered flag parsing and config load.
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	slog.Info("Effective configuration",
		"platform", cfg.Platform.ID,
		"environment", cfg.Platform.Environment,
		"listen", cfg.Server.Addr,
		"backend", cfg.Backend.Kind,
		"monitor", cfg.Monitor.Enabled,
		"metrics", cfg.Metrics.Enabled)

	return runServices(cfg, logger, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up the bootstrap logger
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}

	bootLevel := cliCfg.LogLevel
	if bootLevel == "" {
		bootLevel = "info"
	}
	bootFormat := cliCfg.LogFormat
	if bootFormat == "" {
		bootFormat = "text"
	}
	slog.SetDefault(setupLogger(bootLevel, bootFormat))

	slog.Info("Starting InferGate (OpenAI-compatible inference gateway)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, false, nil
}

// initializeConfiguration loads layered configuration and applies flag
// overrides on top. Flags win over environment, environment over files.
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyFlagOverrides(cfg, cliCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyFlagOverrides copies explicitly set flags into the config.
func applyFlagOverrides(cfg *config.Config, cliCfg *CLIConfig) {
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}
	if cliCfg.Listen != "" {
		cfg.Server.Addr = cliCfg.Listen
	}
	if cliCfg.MetricsPort > 0 {
		cfg.Metrics.Port = cliCfg.MetricsPort
	}
}

// runServices builds the service graph and runs it until a shutdown
// signal arrives.
func runServices(cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	metricsRegistry := metric.NewMetricsRegistry()

	if cfg.Metrics.Enabled {
		metricsServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() { _ = metricsServer.Stop() }()
		slog.Info("Metrics server listening", "address", metricsServer.Address())
	}

	adapter, err := buildAdapter(cfg.Backend)
	if err != nil {
		return err
	}

	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		mon, err = monitor.New(cfg.Monitor.Settings(),
			monitor.WithLogger(logger),
			monitor.WithMetrics(metricsRegistry))
		if err != nil {
			return fmt.Errorf("create monitor: %w", err)
		}
	}

	bridgeOpts := []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithMetrics(metricsRegistry),
	}
	if mon != nil {
		bridgeOpts = append(bridgeOpts, bridge.WithStatsListener(func(s bridge.Stats) {
			mon.Publish(monitor.Snapshot{
				InFlight:    s.InFlight,
				InQueue:     s.InQueue,
				MaxInFlight: s.MaxInFlight,
			})
		}))
	}
	engine, err := bridge.New(cfg.Bridge, adapter, bridgeOpts...)
	if err != nil {
		return fmt.Errorf("create engine bridge: %w", err)
	}

	gatewayOpts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithMetrics(metricsRegistry),
	}
	if mon != nil {
		gatewayOpts = append(gatewayOpts, gateway.WithMonitor(mon))
	}
	gw, err := gateway.New(cfg.Server, engine, gatewayOpts...)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return runWithSignalHandling(mon, engine, gw, shutdownTimeout)
}

// buildAdapter constructs the inference adapter named in the config.
func buildAdapter(cfg config.BackendConfig) (bridge.Adapter, error) {
	switch cfg.Kind {
	case "loopback":
		var opts []backend.LoopbackOption
		if cfg.Latency > 0 {
			opts = append(opts, backend.WithSimulatedLatency(cfg.Latency))
		}
		return backend.NewLoopback(opts...), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

// runnable is one lifecycle-managed service in start order.
type runnable struct {
	name  string
	start func(context.Context) error
	stop  func(time.Duration) error
}

// runWithSignalHandling starts services in dependency order and stops
// them in reverse on SIGINT/SIGTERM.
func runWithSignalHandling(mon *monitor.Monitor, engine *bridge.Bridge, gw *gateway.Gateway, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	var services []runnable
	if mon != nil {
		services = append(services, runnable{"monitor", mon.Start, mon.Stop})
	}
	services = append(services,
		runnable{"engine", engine.Start, engine.Stop},
		runnable{"gateway", gw.Start, gw.Stop},
	)

	for i, svc := range services {
		if err := svc.start(signalCtx); err != nil {
			stopServices(services[:i], shutdownTimeout)
			return fmt.Errorf("start %s: %w", svc.name, err)
		}
		slog.Debug("Service started", "name", svc.name)
	}

	slog.Info("InferGate started", "listen", gw.Addr())

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	stopServices(services, shutdownTimeout)

	slog.Info("InferGate shutdown complete")
	return nil
}

// stopServices stops services in reverse start order, giving each the
// remaining share of the shutdown budget.
func stopServices(services []runnable, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for i := len(services) - 1; i >= 0; i-- {
		remaining := time.Until(deadline)
		if remaining < time.Second {
			remaining = time.Second
		}
		if err := services[i].stop(remaining); err != nil {
			slog.Error("Service stop failed", "name", services[i].name, "error", err)
		} else {
			slog.Debug("Service stopped", "name", services[i].name)
		}
	}
}
