package scenarios

import (
	"context"
	"fmt"
	"time"

	"github.com/c360/infergate/test/e2e/client"
	"github.com/c360/infergate/test/e2e/config"
)

// GatewayHealthScenario validates the gateway's operational surface:
// aggregate health, readiness and the served model list.
type GatewayHealthScenario struct {
	name        string
	description string
	client      *client.GatewayClient
	config      *GatewayHealthConfig
}

// GatewayHealthConfig contains configuration for the health check
type GatewayHealthConfig struct {
	// Components that must appear healthy in the /health aggregate.
	RequiredComponents []string `json:"required_components"`

	// MaxStartupTime bounds how long readiness may take after launch.
	MaxStartupTime time.Duration `json:"max_startup_time"`

	// MinModels is the least number of served model identities.
	MinModels int `json:"min_models"`
}

// DefaultGatewayHealthConfig returns defaults matching a stock deployment
func DefaultGatewayHealthConfig() *GatewayHealthConfig {
	return &GatewayHealthConfig{
		RequiredComponents: []string{"gateway", "bridge"},
		MaxStartupTime:     10 * time.Second,
		MinModels:          1,
	}
}

// NewGatewayHealthScenario creates a new gateway health check scenario
func NewGatewayHealthScenario(gwClient *client.GatewayClient, cfg *GatewayHealthConfig) *GatewayHealthScenario {
	if cfg == nil {
		cfg = DefaultGatewayHealthConfig()
	}

	return &GatewayHealthScenario{
		name:        "gateway-health",
		description: "Validates InferGate health aggregation, engine readiness and the model list",
		client:      gwClient,
		config:      cfg,
	}
}

// Name returns the scenario name
func (s *GatewayHealthScenario) Name() string {
	return s.name
}

// Description returns the scenario description
func (s *GatewayHealthScenario) Description() string {
	return s.description
}

// Setup prepares the scenario (no-op for health check)
func (s *GatewayHealthScenario) Setup(_ context.Context) error {
	return nil
}

// Execute runs the health check scenario
func (s *GatewayHealthScenario) Execute(ctx context.Context) (*Result, error) {
	result := &Result{
		ScenarioName: s.name,
		StartTime:    time.Now(),
		Success:      false,
		Metrics:      make(map[string]any),
		Details:      make(map[string]any),
		Errors:       []string{},
		Warnings:     []string{},
	}

	stages := []struct {
		name string
		fn   func(context.Context, *Result) error
	}{
		{"readiness", s.executeReadiness},
		{"platform-health", s.executePlatformHealth},
		{"model-list", s.executeModelList},
	}

	for _, stage := range stages {
		stageStart := time.Now()

		if err := stage.fn(ctx, result); err != nil {
			result.Success = false
			result.Error = fmt.Sprintf("%s failed: %v", stage.name, err)
			result.EndTime = time.Now()
			result.Duration = result.EndTime.Sub(result.StartTime)
			return result, nil // Return result even on failure
		}

		result.Metrics[fmt.Sprintf("%s_duration_ms", stage.name)] = time.Since(stageStart).Milliseconds()
	}

	result.Success = true
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	return result, nil
}

// Teardown cleans up after the scenario (no-op for health check)
func (s *GatewayHealthScenario) Teardown(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

// executeReadiness polls /readyz until the engine reports ready or the
// startup budget runs out.
func (s *GatewayHealthScenario) executeReadiness(ctx context.Context, result *Result) error {
	deadline := time.Now().Add(s.config.MaxStartupTime)

	for {
		ready, err := s.client.GetReadiness(ctx)
		if err == nil && ready {
			result.Metrics["ready"] = true
			return nil
		}

		if time.Now().After(deadline) {
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Readiness probe failed: %v", err))
				return fmt.Errorf("readiness probe failed: %w", err)
			}
			result.Errors = append(result.Errors, "Engine never became ready")
			return fmt.Errorf("engine not ready after %s", s.config.MaxStartupTime)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(config.DefaultTestConfig.RetryInterval):
		}
	}
}

// executePlatformHealth checks the /health aggregate and its components
func (s *GatewayHealthScenario) executePlatformHealth(ctx context.Context, result *Result) error {
	health, err := s.client.GetHealth(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to get platform health: %v", err))
		return fmt.Errorf("platform health check failed: %w", err)
	}

	result.Details["platform_health"] = health
	result.Metrics["platform_healthy"] = health.Healthy
	result.Metrics["total_components"] = len(health.SubStatuses)

	if !health.Healthy {
		result.Errors = append(result.Errors, fmt.Sprintf("Platform is not healthy: %s", health.Message))
		return fmt.Errorf("platform is not healthy: %s", health.Status)
	}

	// Verify required components appear and are healthy
	found := make(map[string]bool)
	for _, sub := range health.SubStatuses {
		found[sub.Component] = sub.Healthy
	}

	for _, required := range s.config.RequiredComponents {
		healthy, ok := found[required]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("Missing component in aggregate: %s", required))
			return fmt.Errorf("missing required component: %s", required)
		}
		if !healthy {
			result.Errors = append(result.Errors, fmt.Sprintf("Component unhealthy: %s", required))
			return fmt.Errorf("required component unhealthy: %s", required)
		}
	}

	return nil
}

// executeModelList verifies the models endpoint serves identities
func (s *GatewayHealthScenario) executeModelList(ctx context.Context, result *Result) error {
	models, err := s.client.ListModels(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to list models: %v", err))
		return fmt.Errorf("model list failed: %w", err)
	}

	result.Metrics["model_count"] = len(models)
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	result.Details["models"] = ids

	if len(models) < s.config.MinModels {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Only %d models served (minimum: %d)", len(models), s.config.MinModels))
		return fmt.Errorf("insufficient models: %d < %d", len(models), s.config.MinModels)
	}

	return nil
}
