package backend

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/infergate/bridge"
	"github.com/c360/infergate/errors"
	"github.com/c360/infergate/openai"
)

func chatTask(t *testing.T, messages ...openai.ChatMessage) *bridge.Task {
	t.Helper()
	req := &openai.ChatRequest{Model: "loopback", Messages: messages}
	require.NoError(t, req.Validate())
	return bridge.NewTask(bridge.NewEnvelope(RouteChat, req))
}

func transcriptionTask(t *testing.T, audio []byte) *bridge.Task {
	t.Helper()
	req := &openai.TranscriptionRequest{File: audio, ContentType: "text/plain"}
	require.NoError(t, req.Validate())
	return bridge.NewTask(bridge.NewEnvelope(RouteTranscription, req))
}

func TestLoopback_ChatUppercasesLastUserMessage(t *testing.T) {
	task := chatTask(t,
		openai.ChatMessage{Role: "system", Content: "be brief"},
		openai.ChatMessage{Role: "user", Content: "first question"},
		openai.ChatMessage{Role: "assistant", Content: "FIRST QUESTION"},
		openai.ChatMessage{Role: "user", Content: "hello bridge world"},
	)

	result, err := NewLoopback().Run(task)
	require.NoError(t, err)

	reply, ok := result.(*ChatReply)
	require.True(t, ok)
	assert.Equal(t, "HELLO BRIDGE WORLD", reply.Content)
	assert.Equal(t, 9, reply.Usage.PromptTokens)
	assert.Equal(t, 3, reply.Usage.CompletionTokens)
	assert.Equal(t, 12, reply.Usage.TotalTokens)
}

func TestLoopback_ChatFallsBackToLastMessage(t *testing.T) {
	task := chatTask(t, openai.ChatMessage{Role: "system", Content: "just setup"})

	result, err := NewLoopback().Run(task)
	require.NoError(t, err)

	reply := result.(*ChatReply)
	assert.Equal(t, "JUST SETUP", reply.Content)
}

func TestLoopback_TranscribesBytesAsText(t *testing.T) {
	task := transcriptionTask(t, []byte("hello world from the bridge"))

	result, err := NewLoopback().Run(task)
	require.NoError(t, err)

	transcript, ok := result.(*Transcript)
	require.True(t, ok)
	assert.Equal(t, "hello world from the bridge", transcript.Text)
	assert.InDelta(t, 1.5, transcript.Duration, 1e-9)
	require.Len(t, transcript.Segments, 1)
	assert.Equal(t, transcript.Text, transcript.Segments[0].Text)
	assert.Len(t, transcript.Segments[0].Tokens, 5)
	assert.InDelta(t, transcript.Duration, transcript.Segments[0].End, 1e-9)
}

func TestLoopback_TranscriptScrubsInvalidUTF8(t *testing.T) {
	task := transcriptionTask(t, []byte{'h', 'i', ' ', 0xff, 0xfe})

	result, err := NewLoopback().Run(task)
	require.NoError(t, err)

	transcript := result.(*Transcript)
	assert.Contains(t, transcript.Text, "hi")
	assert.Contains(t, transcript.Text, "�")
}

func TestLoopback_BlankAudioYieldsNoSegments(t *testing.T) {
	task := transcriptionTask(t, []byte("   \n\t "))

	result, err := NewLoopback().Run(task)
	require.NoError(t, err)

	transcript := result.(*Transcript)
	assert.Empty(t, transcript.Text)
	assert.Empty(t, transcript.Segments)
	assert.Zero(t, transcript.Duration)
}

func TestLoopback_UnknownRouteRejected(t *testing.T) {
	task := bridge.NewTask(bridge.NewEnvelope("embeddings", nil))

	_, err := NewLoopback().Run(task)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "embeddings")
}

func TestLoopback_WrongPayloadRejected(t *testing.T) {
	task := bridge.NewTask(bridge.NewEnvelope(RouteChat, "not a chat request"))

	_, err := NewLoopback().Run(task)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoopback_SimulatedLatencyObservesCancellation(t *testing.T) {
	env := bridge.NewEnvelope(RouteChat, &openai.ChatRequest{
		Model:    "loopback",
		Messages: []openai.ChatMessage{{Role: "user", Content: "hi"}},
	})
	timer := time.AfterFunc(20*time.Millisecond, func() { env.Cancel("test cancel") })
	defer timer.Stop()

	start := time.Now()
	_, err := NewLoopback(WithSimulatedLatency(5 * time.Second)).Run(bridge.NewTask(env))

	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
	assert.Less(t, time.Since(start), time.Second, "cancellation must cut the simulated wait short")
}

// Streaming goes through a real bridge since the sink is run-loop
// property; this doubles as an end-to-end check of the word chunking.
func TestLoopback_StreamChunksReassemble(t *testing.T) {
	cfg := bridge.Config{
		QueueBound:     4,
		ChunkCapacity:  8,
		DefaultTimeout: 2 * time.Second,
		SweepInterval:  20 * time.Millisecond,
		StallWindow:    200 * time.Millisecond,
	}
	b, err := bridge.New(cfg, NewLoopback())
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop(time.Second) })

	req := &openai.ChatRequest{
		Model:    "loopback",
		Messages: []openai.ChatMessage{{Role: "user", Content: "hello bridge world"}},
		Stream:   true,
	}
	pending, err := b.SubmitStream(bridge.NewEnvelope(RouteChat, req))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	outcome, err := pending.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, bridge.OutcomeStream, outcome.Kind)

	var chunks []string
	for {
		chunk, err := outcome.Stream.Next(ctx)
		if err != nil {
			require.ErrorIs(t, err, errors.ErrStreamClosed)
			break
		}
		chunks = append(chunks, chunk.(string))
	}

	require.NotEmpty(t, chunks)
	assert.Equal(t, "HELLO", chunks[0], "first chunk carries no leading space")
	assert.Equal(t, "HELLO BRIDGE WORLD", strings.Join(chunks, ""))
}

func TestScripted_ZeroValueEchoes(t *testing.T) {
	adapter := &Scripted{}

	task := bridge.NewTask(bridge.NewEnvelope("anything", "payload"))
	result, err := adapter.Run(task)
	require.NoError(t, err)
	assert.Equal(t, "payload", result)

	require.NoError(t, adapter.RunStream(task, nil))
}
