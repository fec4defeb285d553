package backend

import (
	"fmt"
	"strings"
	"time"

	"github.com/c360/infergate/bridge"
	"github.com/c360/infergate/errors"
	"github.com/c360/infergate/openai"
)

const (
	// cancelPollInterval bounds how long a simulated inference keeps
	// running after its cancellation flag trips.
	cancelPollInterval = 2 * time.Millisecond

	// secondsPerWord drives the synthetic audio duration reported in
	// verbose transcriptions.
	secondsPerWord = 0.3
)

// Loopback is the reference adapter: it answers chat tasks with the last
// user message uppercased and transcription tasks with the uploaded bytes
// interpreted as UTF-8 text. Streaming variants emit the same answer one
// word at a time. A configurable latency simulates inference time while
// honoring the cooperative cancellation contract.
type Loopback struct {
	latency time.Duration
}

// LoopbackOption configures a Loopback.
type LoopbackOption func(*Loopback)

// WithSimulatedLatency makes every task take at least d before producing
// output, polling the cancellation flag while it waits.
func WithSimulatedLatency(d time.Duration) LoopbackOption {
	return func(l *Loopback) {
		l.latency = d
	}
}

// NewLoopback creates the reference adapter.
func NewLoopback(opts ...LoopbackOption) *Loopback {
	l := &Loopback{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run answers a single-shot task.
func (l *Loopback) Run(task *bridge.Task) (any, error) {
	if err := l.simulate(task, "Run"); err != nil {
		return nil, err
	}

	switch task.Route() {
	case RouteChat:
		req, err := chatPayload(task)
		if err != nil {
			return nil, err
		}
		return l.chatReply(req), nil
	case RouteTranscription:
		req, err := transcriptionPayload(task)
		if err != nil {
			return nil, err
		}
		return l.transcript(req), nil
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Loopback", "Run",
			fmt.Sprintf("no handler for route %q", task.Route()))
	}
}

// RunStream answers a streaming task one word at a time, checking the
// cancellation flag between pushes.
func (l *Loopback) RunStream(task *bridge.Task, sink *bridge.Sink) error {
	if err := l.simulate(task, "RunStream"); err != nil {
		return err
	}

	var text string
	switch task.Route() {
	case RouteChat:
		req, err := chatPayload(task)
		if err != nil {
			return err
		}
		text = l.chatReply(req).Content
	case RouteTranscription:
		req, err := transcriptionPayload(task)
		if err != nil {
			return err
		}
		text = l.transcript(req).Text
	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "Loopback", "RunStream",
			fmt.Sprintf("no handler for route %q", task.Route()))
	}

	for _, chunk := range wordChunks(text) {
		if task.Cancelled() {
			return errors.WrapCancelled(errors.ErrCancelled, "Loopback", "RunStream",
				"cancelled between chunks")
		}
		if err := sink.Push(chunk); err != nil {
			return err
		}
	}
	return nil
}

// simulate burns the configured latency in short slices so a cancellation
// is observed within cancelPollInterval instead of after the full wait.
func (l *Loopback) simulate(task *bridge.Task, op string) error {
	if l.latency <= 0 {
		if task.Cancelled() {
			return errors.WrapCancelled(errors.ErrCancelled, "Loopback", op,
				"cancelled before inference")
		}
		return nil
	}
	deadline := time.Now().Add(l.latency)
	for {
		if task.Cancelled() {
			return errors.WrapCancelled(errors.ErrCancelled, "Loopback", op,
				"cancelled during inference")
		}
		if !time.Now().Before(deadline) {
			return nil
		}
		time.Sleep(cancelPollInterval)
	}
}

func (l *Loopback) chatReply(req *openai.ChatRequest) *ChatReply {
	prompt := lastUserContent(req)
	reply := strings.ToUpper(prompt)

	promptWords := 0
	for _, msg := range req.Messages {
		promptWords += len(strings.Fields(msg.Content))
	}
	completionWords := len(strings.Fields(reply))

	return &ChatReply{
		Content: reply,
		Usage: openai.Usage{
			PromptTokens:     promptWords,
			CompletionTokens: completionWords,
			TotalTokens:      promptWords + completionWords,
		},
	}
}

func (l *Loopback) transcript(req *openai.TranscriptionRequest) *Transcript {
	text := strings.TrimSpace(strings.ToValidUTF8(string(req.File), "�"))
	words := strings.Fields(text)
	duration := float64(len(words)) * secondsPerWord

	tokens := make([]int, len(words))
	for i := range tokens {
		tokens[i] = i
	}

	segments := []openai.TranscriptionSegment{}
	if text != "" {
		segments = append(segments, openai.TranscriptionSegment{
			ID:          0,
			Seek:        0,
			Start:       0,
			End:         duration,
			Text:        text,
			Tokens:      tokens,
			Temperature: req.Temperature,
		})
	}

	return &Transcript{
		Text:     text,
		Duration: duration,
		Segments: segments,
	}
}

// lastUserContent picks the newest user turn; with none present the last
// message stands in so the echo still answers something.
func lastUserContent(req *openai.ChatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	if len(req.Messages) > 0 {
		return req.Messages[len(req.Messages)-1].Content
	}
	return ""
}

// wordChunks splits text into streamable deltas that concatenate back to
// the original: the first word bare, every later word with its leading
// space.
func wordChunks(text string) []string {
	words := strings.Fields(text)
	chunks := make([]string, 0, len(words))
	for i, word := range words {
		if i == 0 {
			chunks = append(chunks, word)
			continue
		}
		chunks = append(chunks, " "+word)
	}
	return chunks
}

func chatPayload(task *bridge.Task) (*openai.ChatRequest, error) {
	req, ok := task.Payload().(*openai.ChatRequest)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Loopback", "chatPayload",
			fmt.Sprintf("route %q payload is %T", task.Route(), task.Payload()))
	}
	return req, nil
}

func transcriptionPayload(task *bridge.Task) (*openai.TranscriptionRequest, error) {
	req, ok := task.Payload().(*openai.TranscriptionRequest)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Loopback", "transcriptionPayload",
			fmt.Sprintf("route %q payload is %T", task.Route(), task.Payload()))
	}
	return req, nil
}
