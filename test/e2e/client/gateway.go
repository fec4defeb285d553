// Package client provides the HTTP client for InferGate E2E tests
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/c360/infergate/openai"
	"github.com/c360/infergate/test/e2e/config"
)

// streamDoneMarker terminates a chat completion stream.
const streamDoneMarker = "[DONE]"

// GatewayClient drives a running InferGate instance over HTTP.
type GatewayClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewGatewayClient creates a client for an InferGate base URL.
func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.DefaultTestConfig.Timeout,
		},
	}
}

// WithAuthToken sets the bearer token sent on API requests.
func (c *GatewayClient) WithAuthToken(token string) *GatewayClient {
	c.authToken = token
	return c
}

// PlatformHealth mirrors the /health aggregate.
type PlatformHealth struct {
	Component   string           `json:"component"`
	Healthy     bool             `json:"healthy"`
	Status      string           `json:"status"`
	Message     string           `json:"message"`
	SubStatuses []PlatformHealth `json:"sub_statuses,omitempty"`
}

// newRequest builds a request with the auth header applied.
func (c *GatewayClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return req, nil
}

// apiError extracts the error envelope from a non-2xx response.
func apiError(resp *http.Response) error {
	var body openai.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Message == "" {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return fmt.Errorf("status %d: %s (%s)", resp.StatusCode, body.Error.Message, body.Error.Code)
}

// GetHealth retrieves the aggregate platform health. The endpoint
// answers 503 with a valid body when unhealthy, so both are decoded.
func (c *GatewayClient) GetHealth(ctx context.Context) (*PlatformHealth, error) {
	req, err := c.newRequest(ctx, http.MethodGet, config.ServicePaths.Health, nil)
	if err != nil {
		return nil, err
	}
	// The health route serves plain OK unless JSON is asked for.
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var health PlatformHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &health, nil
}

// GetReadiness reports whether the engine behind the gateway is ready.
func (c *GatewayClient) GetReadiness(ctx context.Context) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, config.ServicePaths.Readyz, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body struct {
		Ready bool `json:"ready"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}

	return body.Ready, nil
}

// ListModels retrieves the served model identities.
func (c *GatewayClient) ListModels(ctx context.Context) ([]openai.Model, error) {
	req, err := c.newRequest(ctx, http.MethodGet, config.APIPaths.Models, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var list openai.ModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return list.Data, nil
}

// CreateChatCompletion posts a buffered chat completion.
func (c *GatewayClient) CreateChatCompletion(ctx context.Context, chatReq openai.ChatRequest) (*openai.ChatResponse, error) {
	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, config.APIPaths.Chat, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var completion openai.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &completion, nil
}

// StreamChatCompletion posts a streaming chat completion and collects
// every chunk until the [DONE] marker. The request's Stream field is
// forced on.
func (c *GatewayClient) StreamChatCompletion(ctx context.Context, chatReq openai.ChatRequest) ([]openai.ChatChunk, error) {
	chatReq.Stream = true
	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, config.APIPaths.Chat, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return nil, fmt.Errorf("expected event stream, got %s", ct)
	}

	var chunks []openai.ChatChunk
	done := false
	for data, err := range sseData(resp.Body) {
		if err != nil {
			return nil, fmt.Errorf("reading stream: %w", err)
		}
		if data == streamDoneMarker {
			done = true
			break
		}
		var chunk openai.ChatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("decoding chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if !done {
		return nil, fmt.Errorf("stream ended without %s marker", streamDoneMarker)
	}

	return chunks, nil
}

// CreateTranscription uploads audio and returns the decoded body for
// the requested response format ("json", "text" or "verbose_json").
func (c *GatewayClient) CreateTranscription(
	ctx context.Context,
	filename string,
	audio []byte,
	model, format string,
) (string, error) {
	body, contentType, err := transcriptionForm(filename, audio, model, format, false)
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, config.APIPaths.Transcriptions, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if format == "text" {
		return string(raw), nil
	}

	var transcript openai.Transcription
	if err := json.Unmarshal(raw, &transcript); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return transcript.Text, nil
}

// TranscriptEvent is one frame of a streaming transcription.
type TranscriptEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta,omitempty"`
	Text  string `json:"text,omitempty"`
}

// StreamTranscription uploads audio with stream=true and collects the
// delta events through the terminal done event.
func (c *GatewayClient) StreamTranscription(
	ctx context.Context,
	filename string,
	audio []byte,
	model string,
) ([]TranscriptEvent, error) {
	body, contentType, err := transcriptionForm(filename, audio, model, "", true)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, config.APIPaths.Transcriptions, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var events []TranscriptEvent
	for data, err := range sseData(resp.Body) {
		if err != nil {
			return nil, fmt.Errorf("reading stream: %w", err)
		}
		var ev TranscriptEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("decoding event: %w", err)
		}
		events = append(events, ev)
		if ev.Type == "transcript.text.done" {
			break
		}
	}
	if len(events) == 0 || events[len(events)-1].Type != "transcript.text.done" {
		return nil, fmt.Errorf("stream ended without done event")
	}

	return events, nil
}

// transcriptionForm builds the multipart upload body.
func transcriptionForm(filename string, audio []byte, model, format string, stream bool) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("writing audio: %w", err)
	}
	if err := w.WriteField("model", model); err != nil {
		return nil, "", fmt.Errorf("writing model field: %w", err)
	}
	if format != "" {
		if err := w.WriteField("response_format", format); err != nil {
			return nil, "", fmt.Errorf("writing format field: %w", err)
		}
	}
	if stream {
		if err := w.WriteField("stream", "true"); err != nil {
			return nil, "", fmt.Errorf("writing stream field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// sseData iterates the data payloads of a server-sent event stream.
func sseData(r io.Reader) func(yield func(string, error) bool) {
	return func(yield func(string, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			if !yield(data, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", err)
		}
	}
}
