package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLayer(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_LoadJSON(t *testing.T) {
	path := writeLayer(t, "config.json", `{
		"platform": {
			"org": "c360",
			"id": "edge-gateway-1",
			"environment": "prod"
		},
		"logging": {"level": "debug", "format": "json"},
		"server": {
			"addr": "0.0.0.0:9000",
			"read_timeout": "90s",
			"auth_token": "tok-123",
			"rate_limit_rps": 10,
			"rate_limit_burst": 20
		},
		"bridge": {
			"queue_bound": 64,
			"default_timeout": "2m"
		},
		"backend": {"kind": "loopback", "latency": "50ms"},
		"monitor": {"heartbeat_interval": "30s"}
	}`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "c360", cfg.Platform.Org)
	assert.Equal(t, "edge-gateway-1", cfg.Platform.ID)
	assert.Equal(t, "prod", cfg.Platform.Environment)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, 90*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "tok-123", cfg.Server.AuthToken)
	assert.Equal(t, 10.0, cfg.Server.RateLimitRPS)
	assert.Equal(t, 64, cfg.Bridge.QueueBound)
	assert.Equal(t, 2*time.Minute, cfg.Bridge.DefaultTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Backend.Latency)
	assert.Equal(t, 30*time.Second, cfg.Monitor.HeartbeatInterval)
}

func TestLoader_LoadYAML(t *testing.T) {
	path := writeLayer(t, "config.yaml", `
platform:
  id: yaml-gateway
logging:
  level: warn
  format: json
server:
  addr: ":8888"
  write_timeout: 5m
bridge:
  chunk_capacity: 8
  stall_window: 10s
monitor:
  enabled: false
`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml-gateway", cfg.Platform.ID)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, ":8888", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 8, cfg.Bridge.ChunkCapacity)
	assert.Equal(t, 10*time.Second, cfg.Bridge.StallWindow)
	assert.False(t, cfg.Monitor.Enabled)
}

// A minimal file only overrides what it names; everything else keeps
// the compiled defaults.
func TestLoader_Defaults(t *testing.T) {
	path := writeLayer(t, "config.json", `{
		"platform": {"id": "minimal"}
	}`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", cfg.Platform.ID)
	assert.Equal(t, "dev", cfg.Platform.Environment)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(200<<20), cfg.Server.BodyLimit)
	assert.Equal(t, 32, cfg.Bridge.QueueBound)
	assert.Equal(t, 250*time.Millisecond, cfg.Bridge.SweepInterval)
	assert.Equal(t, "loopback", cfg.Backend.Kind)
	assert.True(t, cfg.Monitor.Enabled)
	assert.Equal(t, 16, cfg.Monitor.History)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoader_LayeredMerge(t *testing.T) {
	base := writeLayer(t, "base.json", `{
		"platform": {"id": "layered", "environment": "prod"},
		"server": {"addr": ":9000", "model_id": "whisper-large"},
		"bridge": {"queue_bound": 128}
	}`)
	override := writeLayer(t, "override.yaml", `
server:
  addr: ":9001"
bridge:
  default_timeout: 30s
`)

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)

	cfg, err := loader.Load()
	require.NoError(t, err)

	// Later layer wins where both set a value.
	assert.Equal(t, ":9001", cfg.Server.Addr)
	// Earlier layer persists where the later one is silent.
	assert.Equal(t, "layered", cfg.Platform.ID)
	assert.Equal(t, "prod", cfg.Platform.Environment)
	assert.Equal(t, "whisper-large", cfg.Server.ModelID)
	assert.Equal(t, 128, cfg.Bridge.QueueBound)
	assert.Equal(t, 30*time.Second, cfg.Bridge.DefaultTimeout)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("INFERGATE_PLATFORM_ID", "env-gateway")
	t.Setenv("INFERGATE_LISTEN", "127.0.0.1:7777")
	t.Setenv("INFERGATE_AUTH_TOKEN", "env-token")
	t.Setenv("INFERGATE_LOG_LEVEL", "error")

	path := writeLayer(t, "config.json", `{
		"platform": {"id": "file-gateway"},
		"server": {"addr": ":8080"}
	}`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	// Environment wins over every file layer.
	assert.Equal(t, "env-gateway", cfg.Platform.ID)
	assert.Equal(t, "127.0.0.1:7777", cfg.Server.Addr)
	assert.Equal(t, "env-token", cfg.Server.AuthToken)
	assert.Equal(t, "error", cfg.Logging.Level)

	// File values remain when no env override exists.
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoader_EnvOverrideIgnoresInvalidValue(t *testing.T) {
	t.Setenv("INFERGATE_PLATFORM_ID", "bad\x00value")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "infergate-local", cfg.Platform.ID)
}

func TestLoader_ValidationFailure(t *testing.T) {
	path := writeLayer(t, "config.json", `{
		"platform": {"id": "broken"},
		"logging": {"level": "shout"}
	}`)

	loader := NewLoader()
	_, err := loader.LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `logging.level "shout"`)

	loader.EnableValidation(false)
	cfg, err := loader.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "shout", cfg.Logging.Level)
}

func TestLoader_RejectsUnknownExtension(t *testing.T) {
	path := writeLayer(t, "config.toml", `id = "nope"`)

	_, err := NewLoader().LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON or YAML")
}

func TestLoader_RejectsPathTraversal(t *testing.T) {
	_, err := NewLoader().LoadFile("../../../etc/shadow.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal not allowed")
}

func TestLoader_RejectsMalformedJSON(t *testing.T) {
	path := writeLayer(t, "config.json", `{"platform": {"id": "x"`)

	_, err := NewLoader().LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unclosed brackets")
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader().LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot stat config file")
}

func TestParseDurationWithDays(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "14d", want: 14 * 24 * time.Hour},
		{in: "90s", want: 90 * time.Second},
		{in: "1h30m", want: 90 * time.Minute},
		{in: "xd", wantErr: true},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDurationWithDays(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
