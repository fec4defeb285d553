package scenarios

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/infergate/openai"
	"github.com/c360/infergate/test/e2e/client"
	"github.com/c360/infergate/test/e2e/config"
)

// SaturationScenario validates backpressure behavior under a concurrent
// burst: the queue admits what it can, sheds the rest with 503s, and
// the gateway recovers once the burst drains.
type SaturationScenario struct {
	name        string
	description string
	client      *client.GatewayClient
	config      *SaturationConfig
}

// SaturationConfig contains configuration for the saturation test
type SaturationConfig struct {
	Model string `json:"model"`

	// BurstSize is how many completions are fired concurrently. Must
	// exceed the deployment's bridge queue_bound to trigger shedding.
	BurstSize int `json:"burst_size"`

	// MinAccepted is the least number of burst requests that must
	// complete successfully.
	MinAccepted int `json:"min_accepted"`

	// RequireShedding fails the scenario if no request was rejected as
	// saturated. Disable when the deployment's queue exceeds the burst.
	RequireShedding bool `json:"require_shedding"`

	// RecoveryDelay is how long to wait after the burst before checking
	// that a single request succeeds again.
	RecoveryDelay time.Duration `json:"recovery_delay"`
}

// DefaultSaturationConfig returns defaults sized for the stock bridge
// queue bound of 32
func DefaultSaturationConfig() *SaturationConfig {
	return &SaturationConfig{
		Model:           "loopback-v1",
		BurstSize:       config.DefaultTestConfig.BurstSize * 4,
		MinAccepted:     config.DefaultTestConfig.MinAccepted,
		RequireShedding: false,
		RecoveryDelay:   config.DefaultTestConfig.RecoveryDelay,
	}
}

// NewSaturationScenario creates a new saturation test scenario
func NewSaturationScenario(gwClient *client.GatewayClient, cfg *SaturationConfig) *SaturationScenario {
	if cfg == nil {
		cfg = DefaultSaturationConfig()
	}

	return &SaturationScenario{
		name:        "saturation",
		description: "Tests queue admission, load shedding and recovery under a concurrent burst",
		client:      gwClient,
		config:      cfg,
	}
}

// Name returns the scenario name
func (s *SaturationScenario) Name() string {
	return s.name
}

// Description returns the scenario description
func (s *SaturationScenario) Description() string {
	return s.description
}

// Setup verifies the gateway answers a single request before the burst
func (s *SaturationScenario) Setup(ctx context.Context) error {
	if _, err := s.client.CreateChatCompletion(ctx, s.request("warmup")); err != nil {
		return fmt.Errorf("gateway not answering before burst: %w", err)
	}
	return nil
}

// Execute fires the burst and validates shedding and recovery
func (s *SaturationScenario) Execute(ctx context.Context) (*Result, error) {
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
		{"burst", s.executeBurst},
		{"recovery", s.executeRecovery},
	}

	for _, stage := range stages {
		stageStart := time.Now()

		if err := stage.fn(ctx, result); err != nil {
			result.Success = false
			result.Error = fmt.Sprintf("%s failed: %v", stage.name, err)
			result.EndTime = time.Now()
			result.Duration = result.EndTime.Sub(result.StartTime)
			return result, nil
		}

		result.Metrics[fmt.Sprintf("%s_duration_ms", stage.name)] = time.Since(stageStart).Milliseconds()
	}

	result.Success = true
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	return result, nil
}

// Teardown cleans up after the scenario (no-op)
func (s *SaturationScenario) Teardown(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

func (s *SaturationScenario) request(text string) openai.ChatRequest {
	return openai.ChatRequest{
		Model: s.config.Model,
		Messages: []openai.ChatMessage{
			{Role: "user", Content: text},
		},
	}
}

// executeBurst fires BurstSize completions at once and buckets the
// outcomes
func (s *SaturationScenario) executeBurst(ctx context.Context, result *Result) error {
	var (
		accepted  atomic.Int64
		saturated atomic.Int64
		failed    atomic.Int64
		wg        sync.WaitGroup
	)

	start := time.Now()
	for i := range s.config.BurstSize {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := s.client.CreateChatCompletion(ctx, s.request(fmt.Sprintf("burst message %d", n)))
			switch {
			case err == nil:
				accepted.Add(1)
			case strings.Contains(err.Error(), "backend_saturated"):
				saturated.Add(1)
			default:
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	result.Metrics["burst_size"] = s.config.BurstSize
	result.Metrics["accepted"] = accepted.Load()
	result.Metrics["saturated"] = saturated.Load()
	result.Metrics["failed"] = failed.Load()
	result.Metrics["burst_duration_ms"] = elapsed.Milliseconds()

	if failed.Load() > 0 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("%d burst requests failed with non-saturation errors", failed.Load()))
		return fmt.Errorf("%d requests failed outside the saturation contract", failed.Load())
	}
	if accepted.Load() < int64(s.config.MinAccepted) {
		return fmt.Errorf("only %d requests accepted (minimum: %d)", accepted.Load(), s.config.MinAccepted)
	}
	if s.config.RequireShedding && saturated.Load() == 0 {
		result.Warnings = append(result.Warnings,
			"No request was shed; burst may not have exceeded the queue bound")
		return fmt.Errorf("burst of %d never saturated the queue", s.config.BurstSize)
	}

	return nil
}

// executeRecovery verifies the gateway serves again after the burst
// drains and still reports healthy
func (s *SaturationScenario) executeRecovery(ctx context.Context, result *Result) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.config.RecoveryDelay):
	}

	completion, err := s.client.CreateChatCompletion(ctx, s.request("post-burst probe"))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Post-burst request failed: %v", err))
		return fmt.Errorf("gateway did not recover: %w", err)
	}
	result.Details["recovery_completion_id"] = completion.ID

	health, err := s.client.GetHealth(ctx)
	if err != nil {
		return fmt.Errorf("post-burst health check failed: %w", err)
	}
	result.Metrics["healthy_after_burst"] = health.Healthy

	if !health.Healthy {
		result.Errors = append(result.Errors, fmt.Sprintf("Platform unhealthy after burst: %s", health.Message))
		return fmt.Errorf("platform unhealthy after burst: %s", health.Status)
	}

	return nil
}
