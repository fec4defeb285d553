package bridge

// OutcomeKind classifies how a task terminated.
type OutcomeKind int

const (
	// OutcomeComplete means the adapter returned a result value.
	OutcomeComplete OutcomeKind = iota
	// OutcomeStream means the adapter accepted a streaming task and chunks
	// will arrive on the attached ChunkSource.
	OutcomeStream
	// OutcomeFailed means the task terminated with an error.
	OutcomeFailed
	// OutcomeCancelled means the task observed its cancellation flag and
	// stopped at a yield point.
	OutcomeCancelled
)

// String returns the lowercase outcome name used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeComplete:
		return "complete"
	case OutcomeStream:
		return "stream"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the terminal resolution of one envelope. Exactly one outcome is
// delivered per correlation id; late duplicates are counted and discarded.
type Outcome struct {
	Kind   OutcomeKind
	Result any
	Stream *ChunkSource
	Err    error
}

func completeOutcome(result any) Outcome {
	return Outcome{Kind: OutcomeComplete, Result: result}
}

func streamOutcome(src *ChunkSource) Outcome {
	return Outcome{Kind: OutcomeStream, Stream: src}
}

func failedOutcome(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

func cancelledOutcome(err error) Outcome {
	return Outcome{Kind: OutcomeCancelled, Err: err}
}
