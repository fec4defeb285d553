package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/c360/infergate/errors"
)

// ChunkSource is the consumer half of a streaming task: the HTTP handler
// pulls chunks from it and relays them to the client. It is resolved into
// the outcome the moment the run loop starts the task, so chunks flow while
// the adapter is still producing.
//
// The channel behind it is bounded. A consumer that stops pulling
// eventually stalls the producer's Push, which fails the stream rather than
// buffering without limit.
type ChunkSource struct {
	ch     chan any
	closed chan struct{}
	flag   *cancelFlag

	abandonOnce sync.Once
	closeOnce   sync.Once

	mu  sync.Mutex
	err error
}

func newChunkSource(capacity int, flag *cancelFlag) *ChunkSource {
	return &ChunkSource{
		ch:     make(chan any, capacity),
		closed: make(chan struct{}),
		flag:   flag,
	}
}

// Next blocks until a chunk is available, the stream terminates, or ctx is
// done. A terminated stream drains its buffered chunks first, then reports
// errors.ErrStreamClosed on a clean end or the terminal error otherwise.
// Context expiry abandons the stream, same as Close.
func (s *ChunkSource) Next(ctx context.Context) (any, error) {
	select {
	case chunk, ok := <-s.ch:
		if !ok {
			return nil, s.terminalError()
		}
		return chunk, nil
	case <-ctx.Done():
		s.Close()
		return nil, errors.WrapCancelled(ctx.Err(), "ChunkSource", "Next", "chunk wait")
	}
}

// Close abandons the stream from the consumer side. It trips the task's
// cancellation flag so the producer winds down at its next yield point.
// Safe to call more than once.
func (s *ChunkSource) Close() {
	s.abandonOnce.Do(func() {
		s.flag.Set("consumer detached")
	})
}

// Err returns the stream's terminal error, nil while the stream is live or
// after a clean end.
func (s *ChunkSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *ChunkSource) terminalError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return errors.ErrStreamClosed
}

// terminate ends the stream with err (nil for a clean end). Only the run
// loop goroutine calls it, so it never races a Push on the same channel.
func (s *ChunkSource) terminate(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.closed)
		close(s.ch)
	})
}

func (s *ChunkSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Sink is the producer half of a streaming task, handed to the adapter's
// RunStream. Push applies backpressure through the bounded channel and
// gives up after the stall window if the consumer is not pulling.
type Sink struct {
	src   *ChunkSource
	stall time.Duration
}

// Push delivers one chunk to the consumer. It blocks while the channel is
// full, up to the stall window, and fails once the stream is terminated,
// abandoned, or cancelled. Adapters should treat any error as terminal and
// return.
func (s *Sink) Push(chunk any) error {
	src := s.src
	if src.isClosed() {
		return errors.WrapCancelled(errors.ErrStreamClosed, "Sink", "Push", "chunk delivery")
	}
	// Checked before the send so a tripped flag fails the very next push
	// instead of racing it into the buffer.
	if src.flag.IsSet() {
		return s.cancelError()
	}
	select {
	case src.ch <- chunk:
		return nil
	default:
	}
	timer := time.NewTimer(s.stall)
	defer timer.Stop()
	select {
	case src.ch <- chunk:
		return nil
	case <-src.flag.done:
		return s.cancelError()
	case <-timer.C:
		return errors.WrapTransient(errors.ErrConsumerStalled, "Sink", "Push", "chunk delivery")
	}
}

func (s *Sink) cancelError() error {
	if s.src.flag.Reason() == "consumer detached" {
		return errors.WrapCancelled(errors.ErrStreamClosed, "Sink", "Push", "chunk delivery")
	}
	return errors.WrapCancelled(errors.ErrCancelled, "Sink", "Push", "chunk delivery")
}

// Close marks a clean end of the stream. Later pushes fail with
// ErrStreamClosed. RunStream returning nil closes the stream implicitly, so
// most adapters never need to call it.
func (s *Sink) Close() {
	s.src.terminate(nil)
}
