package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/infergate/bridge"
	"github.com/c360/infergate/errors"
	"github.com/c360/infergate/gateway"
	"github.com/c360/infergate/monitor"
)

// Log levels and formats accepted by the logging section.
var (
	logLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	logFormats = map[string]bool{"text": true, "json": true}
)

// backendKinds names the adapters the process can run. Loopback is the
// reference adapter; real inference engines register here as they land.
var backendKinds = map[string]bool{"loopback": true}

// Config is the complete platform configuration.
type Config struct {
	// Version is the config file's semantic version, logged at startup so
	// deployed files can be told apart.
	Version string `json:"version" yaml:"version"`

	Platform PlatformConfig `json:"platform" yaml:"platform"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Server   gateway.Config `json:"server" yaml:"server"`
	Bridge   bridge.Config  `json:"bridge" yaml:"bridge"`
	Backend  BackendConfig  `json:"backend" yaml:"backend"`
	Monitor  MonitorConfig  `json:"monitor" yaml:"monitor"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

// PlatformConfig identifies the deployment.
type PlatformConfig struct {
	// Org is the owning organization namespace, free-form.
	Org string `json:"org,omitempty" yaml:"org,omitempty"`

	// ID names this instance in logs and health reports.
	ID string `json:"id" yaml:"id"`

	// Environment is the deployment tier: "prod", "dev", "test".
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"`
}

// LoggingConfig controls the process-wide structured logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// BackendConfig selects and tunes the inference adapter.
type BackendConfig struct {
	// Kind names the adapter implementation.
	Kind string `json:"kind" yaml:"kind"`

	// Latency is the loopback adapter's simulated inference time.
	Latency time.Duration `json:"latency,omitempty" yaml:"latency,omitempty"`
}

// MonitorConfig controls the occupancy monitor endpoint.
type MonitorConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled"`
	History           int           `json:"history" yaml:"history"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`
}

// Settings converts the section into the monitor package's config.
func (m MonitorConfig) Settings() monitor.Config {
	return monitor.Config{
		History:           m.History,
		HeartbeatInterval: m.HeartbeatInterval,
	}
}

// MetricsConfig controls the Prometheus exposition server.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// Default returns the compiled-in configuration: a loopback backend
// behind the standard listen addresses, monitor and metrics on.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Platform: PlatformConfig{
			ID:          "infergate-local",
			Environment: "dev",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server:  gateway.DefaultConfig(),
		Bridge:  bridge.DefaultConfig(),
		Backend: BackendConfig{Kind: "loopback"},
		Monitor: MonitorConfig{
			Enabled:           true,
			History:           16,
			HeartbeatInterval: 15 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Validate checks every section, naming the config path of the first
// offending field.
func (c *Config) Validate() error {
	if c.Platform.ID == "" {
		return errors.WrapInvalid(errors.ErrMissingField, "Config", "Validate",
			"platform.id is required")
	}
	if !logLevels[c.Logging.Level] {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if !logFormats[c.Logging.Format] {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("logging.format %q is not one of text, json", c.Logging.Format))
	}

	if err := c.Server.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "server section")
	}
	if err := c.Bridge.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "bridge section")
	}

	if !backendKinds[c.Backend.Kind] {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("backend.kind %q is not a known adapter", c.Backend.Kind))
	}
	if c.Backend.Latency < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"backend.latency must not be negative")
	}

	if c.Monitor.Enabled {
		if err := c.Monitor.Settings().Validate(); err != nil {
			return errors.WrapInvalid(err, "Config", "Validate", "monitor section")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("metrics.port %d is outside (0, 65535]", c.Metrics.Port))
		}
	}

	return nil
}

// Clone deep-copies the configuration through a JSON round trip.
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// SaveToFile writes the configuration as indented JSON.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "config marshal")
	}
	return safeWriteFile(path, data)
}

// String renders the config as indented JSON for startup logging. The
// auth token is masked; everything else in the config is operational.
func (c *Config) String() string {
	masked := c.Clone()
	if masked.Server.AuthToken != "" {
		masked.Server.AuthToken = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}
