package buffer

// Buffer is a generic, thread-safe bounded buffer. The gateway uses it for
// latest-value fanout state (occupancy snapshots, recent history), so the
// write path never blocks: when a buffer is full, the overflow policy decides
// which item to sacrifice.
type Buffer[T any] interface {
	// Write adds an item to the buffer. When the buffer is full the overflow
	// policy decides whether the oldest or the newest item is dropped.
	Write(item T) error

	// Read retrieves and removes the oldest item.
	// Returns the zero value and false if the buffer is empty.
	Read() (T, bool)

	// ReadBatch retrieves and removes up to max items, oldest first.
	// The returned slice may be shorter than max.
	ReadBatch(max int) []T

	// Peek retrieves the oldest item without removing it.
	Peek() (T, bool)

	// PeekLatest retrieves the newest item without removing it.
	PeekLatest() (T, bool)

	// PeekBatch retrieves up to max items, oldest first, without removing
	// them. Fanout consumers replaying history to a new subscriber use
	// this so concurrent subscribers see the same items.
	PeekBatch(max int) []T

	// Size returns the current number of items in the buffer.
	Size() int

	// Capacity returns the maximum number of items the buffer can hold.
	Capacity() int

	// IsFull reports whether the buffer is at capacity.
	IsFull() bool

	// IsEmpty reports whether the buffer contains no items.
	IsEmpty() bool

	// Clear removes all items from the buffer.
	Clear()

	// Stats returns buffer statistics (always collected).
	Stats() *Statistics

	// Close shuts down the buffer. Writes after Close fail.
	Close() error
}

// OverflowPolicy defines how the buffer behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items. This is
	// the default and what latest-value state wants: a full buffer always
	// accepts the freshest data.
	DropOldest OverflowPolicy = iota

	// DropNewest drops incoming items when the buffer is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback is called with each item dropped by the overflow policy.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a circular buffer with the given capacity.
// Statistics are always collected; Prometheus export is opt-in via
// WithMetrics. Capacities below one are raised to one.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}
