package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/infergate/errors"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "infergate-local", cfg.Platform.ID)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 32, cfg.Bridge.QueueBound)
	assert.Equal(t, 120*time.Second, cfg.Bridge.DefaultTimeout)
	assert.Equal(t, "loopback", cfg.Backend.Kind)
	assert.True(t, cfg.Monitor.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError string
	}{
		{
			name:      "missing platform id",
			mutate:    func(c *Config) { c.Platform.ID = "" },
			wantError: "platform.id is required",
		},
		{
			name:      "unknown log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantError: `logging.level "verbose"`,
		},
		{
			name:      "unknown log format",
			mutate:    func(c *Config) { c.Logging.Format = "xml" },
			wantError: `logging.format "xml"`,
		},
		{
			name:      "bad server section",
			mutate:    func(c *Config) { c.Server.Addr = "" },
			wantError: "server section",
		},
		{
			name:      "bad bridge section",
			mutate:    func(c *Config) { c.Bridge.QueueBound = 0 },
			wantError: "bridge section",
		},
		{
			name:      "unknown backend",
			mutate:    func(c *Config) { c.Backend.Kind = "gpu-farm" },
			wantError: `backend.kind "gpu-farm"`,
		},
		{
			name:      "negative backend latency",
			mutate:    func(c *Config) { c.Backend.Latency = -time.Second },
			wantError: "backend.latency",
		},
		{
			name:      "bad monitor section",
			mutate:    func(c *Config) { c.Monitor.History = 0 },
			wantError: "monitor section",
		},
		{
			name:      "metrics port out of range",
			mutate:    func(c *Config) { c.Metrics.Port = 70000 },
			wantError: "metrics.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantError)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

// Disabled sections skip their own validation so a config that never
// starts the monitor or metrics server can carry junk in those sections.
func TestConfig_Validate_SkipsDisabledSections(t *testing.T) {
	cfg := Default()
	cfg.Monitor.Enabled = false
	cfg.Monitor.History = 0
	cfg.Metrics.Enabled = false
	cfg.Metrics.Port = 0

	assert.NoError(t, cfg.Validate())
}

func TestConfig_Clone(t *testing.T) {
	original := Default()
	original.Platform.ID = "clone-source"
	original.Server.CORSOrigins = []string{"https://a.example"}

	clone := original.Clone()
	clone.Platform.ID = "mutated"
	clone.Server.CORSOrigins[0] = "https://b.example"
	clone.Bridge.QueueBound = 1

	assert.Equal(t, "clone-source", original.Platform.ID)
	assert.Equal(t, []string{"https://a.example"}, original.Server.CORSOrigins)
	assert.Equal(t, 32, original.Bridge.QueueBound)
}

func TestConfig_Clone_NilReceiver(t *testing.T) {
	var cfg *Config
	clone := cfg.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, Default(), clone)
}

func TestConfig_String_MasksAuthToken(t *testing.T) {
	cfg := Default()
	cfg.Server.AuthToken = "super-secret-token"

	rendered := cfg.String()
	assert.NotContains(t, rendered, "super-secret-token")
	assert.Contains(t, rendered, `"auth_token": "***"`)

	// String must not mutate the config it renders.
	assert.Equal(t, "super-secret-token", cfg.Server.AuthToken)
}

func TestConfig_SaveToFileRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Platform.ID = "save-test"
	cfg.Server.Addr = "127.0.0.1:9999"
	cfg.Bridge.DefaultTimeout = 45 * time.Second

	path := filepath.Join(t.TempDir(), "saved.json")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "save-test", loaded.Platform.ID)
	assert.Equal(t, "127.0.0.1:9999", loaded.Server.Addr)
	assert.Equal(t, 45*time.Second, loaded.Bridge.DefaultTimeout)
}

func TestMonitorConfig_Settings(t *testing.T) {
	m := MonitorConfig{Enabled: true, History: 64, HeartbeatInterval: 5 * time.Second}

	settings := m.Settings()
	assert.Equal(t, 64, settings.History)
	assert.Equal(t, 5*time.Second, settings.HeartbeatInterval)
}
