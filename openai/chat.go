package openai

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360/infergate/errors"
)

// Chat message roles accepted by the completions endpoint.
var chatRoles = map[string]bool{
	"system":    true,
	"user":      true,
	"assistant": true,
	"tool":      true,
}

// ChatMessage is one turn in a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/v1/chat/completions.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// Validate checks the request the way the platform API does: required
// model and messages, known roles, sampling temperature within [0, 2].
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return errors.WrapInvalid(errors.ErrMissingField, "ChatRequest", "Validate", "model is required")
	}
	if len(r.Messages) == 0 {
		return errors.WrapInvalid(errors.ErrMissingField, "ChatRequest", "Validate", "messages must not be empty")
	}
	for i, m := range r.Messages {
		if !chatRoles[m.Role] {
			return errors.WrapInvalid(errors.ErrInvalidData, "ChatRequest", "Validate",
				fmt.Sprintf("unknown role %q in messages[%d]", m.Role, i))
		}
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return errors.WrapInvalid(errors.ErrInvalidData, "ChatRequest", "Validate",
			fmt.Sprintf("temperature %g is outside [0, 2]", r.Temperature))
	}
	if r.MaxTokens < 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "ChatRequest", "Validate", "max_tokens must not be negative")
	}
	return nil
}

// ChatChoice is a single completion alternative.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the chat.completion object.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// NewChatResponse builds a single-choice chat.completion with a fresh id.
func NewChatResponse(model, content string, usage Usage) ChatResponse {
	return ChatResponse{
		ID:      NewChatID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      ChatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: usage,
	}
}

// ChunkDelta is the incremental payload of a streaming chunk.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice is a single choice within a chat.completion.chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChatChunk is one streamed chat.completion.chunk frame.
type ChatChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// NewChatChunk builds a content-bearing chunk for an in-progress stream.
func NewChatChunk(id, model, content string) ChatChunk {
	return ChatChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChunkChoice{{Index: 0, Delta: ChunkDelta{Content: content}}},
	}
}

// NewChatChunkDone builds the terminal chunk carrying the finish reason.
func NewChatChunkDone(id, model string) ChatChunk {
	reason := "stop"
	return ChatChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChunkChoice{{Index: 0, FinishReason: &reason}},
	}
}

// NewChatID returns a chatcmpl- id with 32 hex characters of entropy.
func NewChatID() string {
	return "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
