package gateway

import (
	"fmt"
	"time"

	"github.com/c360/infergate/errors"
)

// Config holds the HTTP front end settings. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout, WriteTimeout and IdleTimeout configure the underlying
	// http.Server. Streaming handlers lift the write deadline per request,
	// so WriteTimeout only bounds buffered responses.
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful drain on Stop before open
	// connections are closed forcibly.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	// BodyLimit caps request body size in bytes. Audio uploads dominate,
	// so the default is generous.
	BodyLimit int64 `json:"body_limit" yaml:"body_limit"`

	// EnableCORS turns on origin handling using CORSOrigins ("*" allows
	// any origin).
	EnableCORS  bool     `json:"enable_cors" yaml:"enable_cors"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`

	// AuthToken, when set, requires Authorization: Bearer <token> on every
	// route except the health probes.
	AuthToken string `json:"auth_token" yaml:"auth_token"`

	// RateLimitRPS and RateLimitBurst apply a token bucket per client
	// host. Zero RPS disables limiting.
	RateLimitRPS   float64 `json:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int     `json:"rate_limit_burst" yaml:"rate_limit_burst"`

	// ModelID is the identity served by /api/v1/models and stamped on
	// completion objects when the client omits a model.
	ModelID string `json:"model_id" yaml:"model_id"`

	// Version is reported in the OpenAPI document.
	Version string `json:"version" yaml:"version"`
}

// DefaultConfig returns the gateway defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		BodyLimit:       200 << 20, // 200 MiB
		EnableCORS:      false,
		CORSOrigins:     []string{"*"},
		RateLimitRPS:    0,
		RateLimitBurst:  0,
		ModelID:         "loopback-v1",
		Version:         "0.1.0",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "Validate",
			"addr must not be empty")
	}
	if c.BodyLimit <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "Validate",
			"body_limit must be positive")
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 || c.ShutdownTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "Validate",
			"timeouts must not be negative")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "Validate",
			"rate limit settings must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "Validate",
			fmt.Sprintf("rate_limit_burst must be positive when rate_limit_rps is %g", c.RateLimitRPS))
	}
	if c.ModelID == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "Validate",
			"model_id must not be empty")
	}
	return nil
}
