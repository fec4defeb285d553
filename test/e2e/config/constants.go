// Package config provides configuration for InferGate E2E tests
package config

import "time"

// DefaultEndpoints provides default InferGate service endpoints
var DefaultEndpoints = struct {
	HTTP    string
	Metrics string
}{
	HTTP:    "http://localhost:8080",
	Metrics: "http://localhost:9090",
}

// APIPaths defines the inference API paths
var APIPaths = struct {
	Chat           string
	Transcriptions string
	Models         string
}{
	Chat:           "/api/v1/chat/completions",
	Transcriptions: "/api/v1/audio/transcriptions",
	Models:         "/api/v1/models",
}

// ServicePaths defines API paths for operational endpoints
var ServicePaths = struct {
	Health  string
	Healthz string
	Readyz  string
	OpenAPI string
	State   string
}{
	Health:  "/health",
	Healthz: "/healthz",
	Readyz:  "/readyz",
	OpenAPI: "/openapi.json",
	State:   "/state",
}

// DefaultTestConfig provides default test configuration values
var DefaultTestConfig = struct {
	// Test execution
	Timeout       time.Duration
	RetryInterval time.Duration
	MaxRetries    int

	// Saturation test config
	BurstSize     int
	MinAccepted   int
	RecoveryDelay time.Duration
}{
	// Test execution
	Timeout:       30 * time.Second,
	RetryInterval: 500 * time.Millisecond,
	MaxRetries:    20,

	// Saturation testing
	BurstSize:     32,
	MinAccepted:   1,
	RecoveryDelay: 2 * time.Second,
}
