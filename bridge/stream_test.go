package bridge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/infergate/errors"
)

func TestBridge_StreamDeliversChunksInOrder(t *testing.T) {
	adapter := &testAdapter{runStreamFunc: func(task *Task, sink *Sink) error {
		for _, word := range strings.Fields(task.Payload().(string)) {
			if err := sink.Push(word); err != nil {
				return err
			}
		}
		return nil
	}}
	b := newTestBridge(t, testConfig(), adapter)

	pending, err := b.SubmitStream(NewEnvelope("chat", "alpha beta gamma delta"))
	require.NoError(t, err)

	out, err := pending.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeStream, out.Kind)
	require.NotNil(t, out.Stream)

	ctx := context.Background()
	var got []string
	for {
		chunk, err := out.Stream.Next(ctx)
		if err != nil {
			assert.ErrorIs(t, err, errors.ErrStreamClosed)
			break
		}
		got = append(got, chunk.(string))
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma", "delta"}, got)
	assert.NoError(t, out.Stream.Err())
	assert.EqualValues(t, 1, b.Stats().Streams)
}

func TestBridge_StreamConsumerDisconnect(t *testing.T) {
	detached := make(chan struct{})
	pushErr := make(chan error, 1)
	adapter := &testAdapter{runStreamFunc: func(_ *Task, sink *Sink) error {
		if err := sink.Push("a"); err != nil {
			return err
		}
		<-detached
		err := sink.Push("b")
		pushErr <- err
		return err
	}}
	b := newTestBridge(t, testConfig(), adapter)

	pending, err := b.SubmitStream(NewEnvelope("chat", "a b c"))
	require.NoError(t, err)
	out, err := pending.Await(context.Background())
	require.NoError(t, err)
	src := out.Stream

	chunk, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", chunk)

	// consumer walks away after the first chunk
	src.Close()
	close(detached)

	// the producer sees the detach on its very next push
	err = <-pushErr
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
	assert.ErrorIs(t, err, errors.ErrStreamClosed)

	require.Eventually(t, src.isClosed, time.Second, 5*time.Millisecond)
	st := b.Stats()
	assert.EqualValues(t, 1, st.Streams)
	assert.EqualValues(t, 0, st.Cancelled, "mid-stream detach must not double count the outcome")
}

func TestBridge_StreamConsumerStalled(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkCapacity = 1
	cfg.StallWindow = 40 * time.Millisecond

	pushErr := make(chan error, 1)
	adapter := &testAdapter{runStreamFunc: func(_ *Task, sink *Sink) error {
		for i := 0; ; i++ {
			if err := sink.Push(i); err != nil {
				pushErr <- err
				return err
			}
		}
	}}
	b := newTestBridge(t, cfg, adapter)

	pending, err := b.SubmitStream(NewEnvelope("chat", "x"))
	require.NoError(t, err)
	out, err := pending.Await(context.Background())
	require.NoError(t, err)

	// the consumer never reads; the producer gives up after the stall window
	err = <-pushErr
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConsumerStalled)
	assert.True(t, errors.IsTransient(err))

	// buffered chunks drain, then the stall error surfaces
	chunk, err := out.Stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, chunk)
	_, err = out.Stream.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConsumerStalled)
	assert.ErrorIs(t, out.Stream.Err(), errors.ErrConsumerStalled)
}

func TestBridge_StreamCancelMidProduction(t *testing.T) {
	started := make(chan struct{})
	adapter := &testAdapter{runStreamFunc: func(task *Task, sink *Sink) error {
		if err := sink.Push("first"); err != nil {
			return err
		}
		close(started)
		for !task.Cancelled() {
			time.Sleep(2 * time.Millisecond)
		}
		return errors.WrapCancelled(errors.ErrCancelled, "testAdapter", "RunStream", "cancellation observed")
	}}
	b := newTestBridge(t, testConfig(), adapter)

	pending, err := b.SubmitStream(NewEnvelope("chat", "x"))
	require.NoError(t, err)
	out, err := pending.Await(context.Background())
	require.NoError(t, err)

	<-started
	// stream outcomes resolve at start, so the correlation entry is gone;
	// mid-stream cancellation goes through the source
	assert.False(t, b.Cancel(pending.CorrelationID()))
	out.Stream.Close()

	// the sequence is finite: it terminates and is not restartable
	require.Eventually(t, out.Stream.isClosed, time.Second, 5*time.Millisecond)
	_, err = out.Stream.Next(context.Background())
	require.Error(t, err)
}

func TestSink_PushAfterCloseFails(t *testing.T) {
	src := newChunkSource(2, newCancelFlag())
	sink := &Sink{src: src, stall: 20 * time.Millisecond}

	require.NoError(t, sink.Push("x"))
	sink.Close()

	err := sink.Push("y")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStreamClosed)

	// the buffered chunk still drains, then the stream ends cleanly
	chunk, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", chunk)
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, errors.ErrStreamClosed)
	assert.NoError(t, src.Err())
}

func TestSink_PushObservesCancellationFlag(t *testing.T) {
	flag := newCancelFlag()
	src := newChunkSource(2, flag)
	sink := &Sink{src: src, stall: 20 * time.Millisecond}

	require.NoError(t, sink.Push("x"))
	flag.Set("cancel requested")

	err := sink.Push("y")
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
	assert.ErrorIs(t, err, errors.ErrCancelled)
}

func TestChunkSource_NextContextExpiryAbandons(t *testing.T) {
	flag := newCancelFlag()
	src := newChunkSource(1, flag)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := src.Next(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// abandonment trips the task's cancellation flag
	assert.True(t, flag.IsSet())
	assert.Equal(t, "consumer detached", flag.Reason())
}

func TestChunkSource_TerminateIsIdempotent(t *testing.T) {
	src := newChunkSource(1, newCancelFlag())
	src.terminate(errors.WrapFatal(errors.ErrBackendUnavailable, "Bridge", "test", "stream producer"))
	src.terminate(nil) // later terminations must not override the first

	_, err := src.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBackendUnavailable)
	assert.ErrorIs(t, src.Err(), errors.ErrBackendUnavailable)
}
