package scenarios

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/c360/infergate/test/e2e/client"
)

// TranscriptionRoundtripScenario exercises the audio transcription
// endpoint: buffered responses in every format plus the delta stream.
type TranscriptionRoundtripScenario struct {
	name        string
	description string
	client      *client.GatewayClient
	config      *TranscriptionRoundtripConfig
}

// TranscriptionRoundtripConfig contains configuration for the roundtrip
type TranscriptionRoundtripConfig struct {
	Model    string `json:"model"`
	Filename string `json:"filename"`

	// Audio is the upload payload. The loopback backend transcribes the
	// file's own text, so plain words make the output predictable.
	Audio []byte `json:"-"`

	// ExpectText, when set, is the exact transcript both modes must
	// produce. Leave empty against real speech models.
	ExpectText string `json:"expect_text,omitempty"`
}

// DefaultTranscriptionRoundtripConfig returns defaults matching the
// loopback backend
func DefaultTranscriptionRoundtripConfig() *TranscriptionRoundtripConfig {
	return &TranscriptionRoundtripConfig{
		Model:      "loopback-v1",
		Filename:   "probe.wav",
		Audio:      []byte("end to end transcription probe"),
		ExpectText: "end to end transcription probe",
	}
}

// NewTranscriptionRoundtripScenario creates a new transcription scenario
func NewTranscriptionRoundtripScenario(
	gwClient *client.GatewayClient,
	cfg *TranscriptionRoundtripConfig,
) *TranscriptionRoundtripScenario {
	if cfg == nil {
		cfg = DefaultTranscriptionRoundtripConfig()
	}

	return &TranscriptionRoundtripScenario{
		name:        "transcription-roundtrip",
		description: "Tests buffered and streaming audio transcriptions end to end",
		client:      gwClient,
		config:      cfg,
	}
}

// Name returns the scenario name
func (s *TranscriptionRoundtripScenario) Name() string {
	return s.name
}

// Description returns the scenario description
func (s *TranscriptionRoundtripScenario) Description() string {
	return s.description
}

// Setup prepares the scenario (no-op, uploads carry their own data)
func (s *TranscriptionRoundtripScenario) Setup(_ context.Context) error {
	return nil
}

// Execute runs each response format then the streaming mode
func (s *TranscriptionRoundtripScenario) Execute(ctx context.Context) (*Result, error) {
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
		{"json-format", s.executeJSONFormat},
		{"text-format", s.executeTextFormat},
		{"streaming", s.executeStreaming},
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
func (s *TranscriptionRoundtripScenario) Teardown(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

func (s *TranscriptionRoundtripScenario) checkText(text string) error {
	if text == "" {
		return fmt.Errorf("empty transcript")
	}
	if s.config.ExpectText != "" && text != s.config.ExpectText {
		return fmt.Errorf("transcript mismatch: got %q, want %q", text, s.config.ExpectText)
	}
	return nil
}

// executeJSONFormat uploads audio and expects the json envelope
func (s *TranscriptionRoundtripScenario) executeJSONFormat(ctx context.Context, result *Result) error {
	text, err := s.client.CreateTranscription(ctx, s.config.Filename, s.config.Audio, s.config.Model, "json")
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("JSON transcription failed: %v", err))
		return fmt.Errorf("json transcription failed: %w", err)
	}

	result.Details["json_text"] = text
	return s.checkText(text)
}

// executeTextFormat uploads audio and expects a plain text body
func (s *TranscriptionRoundtripScenario) executeTextFormat(ctx context.Context, result *Result) error {
	text, err := s.client.CreateTranscription(ctx, s.config.Filename, s.config.Audio, s.config.Model, "text")
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Text transcription failed: %v", err))
		return fmt.Errorf("text transcription failed: %w", err)
	}

	result.Details["plain_text"] = text
	return s.checkText(text)
}

// executeStreaming uploads audio with stream=true and reassembles the
// transcript from delta events
func (s *TranscriptionRoundtripScenario) executeStreaming(ctx context.Context, result *Result) error {
	events, err := s.client.StreamTranscription(ctx, s.config.Filename, s.config.Audio, s.config.Model)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Streaming transcription failed: %v", err))
		return fmt.Errorf("streaming transcription failed: %w", err)
	}

	result.Metrics["stream_events"] = len(events)

	var assembled strings.Builder
	for i, ev := range events[:len(events)-1] {
		if ev.Type != "transcript.text.delta" {
			return fmt.Errorf("event %d has type %q, want delta", i, ev.Type)
		}
		assembled.WriteString(ev.Delta)
	}

	done := events[len(events)-1]
	if done.Type != "transcript.text.done" {
		return fmt.Errorf("terminal event has type %q", done.Type)
	}

	// The done event's full text must equal the assembled deltas.
	if assembled.String() != done.Text {
		return fmt.Errorf("deltas assemble to %q but done event carries %q", assembled.String(), done.Text)
	}

	result.Details["streamed_text"] = done.Text
	return s.checkText(done.Text)
}
