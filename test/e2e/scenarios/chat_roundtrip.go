package scenarios

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/c360/infergate/openai"
	"github.com/c360/infergate/test/e2e/client"
)

// ChatRoundtripScenario exercises the chat completion endpoint in both
// buffered and streaming modes against a live gateway.
type ChatRoundtripScenario struct {
	name        string
	description string
	client      *client.GatewayClient
	config      *ChatRoundtripConfig
}

// ChatRoundtripConfig contains configuration for the chat roundtrip
type ChatRoundtripConfig struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`

	// ExpectContent, when set, is the exact completion text both modes
	// must produce. Leave empty against non-deterministic backends.
	ExpectContent string `json:"expect_content,omitempty"`

	// MaxLatency bounds a single buffered completion.
	MaxLatency time.Duration `json:"max_latency"`
}

// DefaultChatRoundtripConfig returns defaults matching the loopback
// backend, which answers with the last user message uppercased.
func DefaultChatRoundtripConfig() *ChatRoundtripConfig {
	return &ChatRoundtripConfig{
		Model:         "loopback-v1",
		Prompt:        "hello inference gateway",
		ExpectContent: "HELLO INFERENCE GATEWAY",
		MaxLatency:    10 * time.Second,
	}
}

// NewChatRoundtripScenario creates a new chat roundtrip scenario
func NewChatRoundtripScenario(gwClient *client.GatewayClient, cfg *ChatRoundtripConfig) *ChatRoundtripScenario {
	if cfg == nil {
		cfg = DefaultChatRoundtripConfig()
	}

	return &ChatRoundtripScenario{
		name:        "chat-roundtrip",
		description: "Tests buffered and streaming chat completions end to end",
		client:      gwClient,
		config:      cfg,
	}
}

// Name returns the scenario name
func (s *ChatRoundtripScenario) Name() string {
	return s.name
}

// Description returns the scenario description
func (s *ChatRoundtripScenario) Description() string {
	return s.description
}

// Setup prepares the scenario (no-op, the gateway is stateless)
func (s *ChatRoundtripScenario) Setup(_ context.Context) error {
	return nil
}

// Execute runs buffered then streaming completions
func (s *ChatRoundtripScenario) Execute(ctx context.Context) (*Result, error) {
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
		{"buffered-completion", s.executeBuffered},
		{"streaming-completion", s.executeStreaming},
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
func (s *ChatRoundtripScenario) Teardown(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

func (s *ChatRoundtripScenario) request() openai.ChatRequest {
	return openai.ChatRequest{
		Model: s.config.Model,
		Messages: []openai.ChatMessage{
			{Role: "user", Content: s.config.Prompt},
		},
	}
}

// executeBuffered checks the request-response path
func (s *ChatRoundtripScenario) executeBuffered(ctx context.Context, result *Result) error {
	start := time.Now()
	completion, err := s.client.CreateChatCompletion(ctx, s.request())
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Chat completion failed: %v", err))
		return fmt.Errorf("chat completion failed: %w", err)
	}
	latency := time.Since(start)

	result.Metrics["buffered_latency_ms"] = latency.Milliseconds()
	result.Details["completion_id"] = completion.ID

	if completion.Object != "chat.completion" {
		return fmt.Errorf("unexpected object %q", completion.Object)
	}
	if !strings.HasPrefix(completion.ID, "chatcmpl-") {
		return fmt.Errorf("unexpected completion id %q", completion.ID)
	}
	if len(completion.Choices) != 1 {
		return fmt.Errorf("expected 1 choice, got %d", len(completion.Choices))
	}

	content := completion.Choices[0].Message.Content
	result.Details["buffered_content"] = content

	if content == "" {
		return fmt.Errorf("empty completion content")
	}
	if s.config.ExpectContent != "" && content != s.config.ExpectContent {
		return fmt.Errorf("content mismatch: got %q, want %q", content, s.config.ExpectContent)
	}
	if completion.Usage.TotalTokens != completion.Usage.PromptTokens+completion.Usage.CompletionTokens {
		return fmt.Errorf("inconsistent usage accounting: %+v", completion.Usage)
	}
	if latency > s.config.MaxLatency {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Completion latency %s exceeds budget %s", latency, s.config.MaxLatency))
	}

	return nil
}

// executeStreaming checks the SSE path produces the same text
func (s *ChatRoundtripScenario) executeStreaming(ctx context.Context, result *Result) error {
	chunks, err := s.client.StreamChatCompletion(ctx, s.request())
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Chat stream failed: %v", err))
		return fmt.Errorf("chat stream failed: %w", err)
	}

	result.Metrics["stream_chunks"] = len(chunks)

	if len(chunks) < 2 {
		return fmt.Errorf("expected content and terminal chunks, got %d", len(chunks))
	}

	var assembled strings.Builder
	id := chunks[0].ID
	for i, chunk := range chunks {
		if chunk.Object != "chat.completion.chunk" {
			return fmt.Errorf("chunk %d has object %q", i, chunk.Object)
		}
		if chunk.ID != id {
			return fmt.Errorf("chunk %d changed id from %q to %q", i, id, chunk.ID)
		}
		for _, choice := range chunk.Choices {
			assembled.WriteString(choice.Delta.Content)
		}
	}

	last := chunks[len(chunks)-1]
	if len(last.Choices) == 0 || last.Choices[0].FinishReason == nil {
		return fmt.Errorf("terminal chunk carries no finish_reason")
	}

	content := assembled.String()
	result.Details["streamed_content"] = content

	if content == "" {
		return fmt.Errorf("empty streamed content")
	}
	if s.config.ExpectContent != "" && content != s.config.ExpectContent {
		return fmt.Errorf("streamed content mismatch: got %q, want %q", content, s.config.ExpectContent)
	}

	return nil
}
