// Package errors provides standardized error handling patterns for infergate components.
//
// # Overview
//
// The errors package implements a four-class error classification system for an
// inference gateway fronting a single-threaded backend: Transient (temporary,
// retryable by the caller), Invalid (bad input, non-retryable), Fatal
// (unrecoverable, stop processing), and Cancelled (terminal by caller request,
// not a failure at all).
//
// Classification lets the HTTP front end map outcomes to status codes and lets
// operators distinguish saturation from crash without string matching.
//
// # Error Classification
//
//   - Transient: admission queue saturation, deadlines, rate limits (caller may retry with backoff)
//   - Invalid: malformed bodies, unknown multipart fields, bad configuration (do not retry)
//   - Fatal: backend run loop death, correlation invariant violations (restart required)
//   - Cancelled: client disconnected or explicitly cancelled (no response owed)
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Bridge Outcome Errors
//
// The bridge resolves every submitted request to exactly one terminal outcome.
// When that outcome is not a payload, it is one of the sentinel errors here:
//
//	errors.ErrBackendSaturated    // admission queue full, 503 at the edge
//	errors.ErrBackendUnavailable  // run loop terminated, 500 and unhealthy
//	errors.ErrDeadlineExceeded    // hard timeout fired, 504 at the edge
//	errors.ErrCancelled           // caller abandoned interest, no response
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Four wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Bridge", "Submit", "enqueue task")
//	errors.WrapInvalid(err, "Codec", "DecodeMultipart", "parse form")
//	errors.WrapFatal(err, "Bridge", "run", "insert correlation entry")
//	errors.WrapCancelled(err, "Bridge", "Await", "deliver outcome")
//
// The generic Wrap() preserves the original error's classification:
//
//	errors.Wrap(err, "Gateway", "handleTranscription", "decode request")
//
// # Context Cancellation
//
// context.Canceled classifies as Cancelled and context.DeadlineExceeded as
// Transient, so handler goroutines that lose their client propagate the right
// terminal state without translation.
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
package errors
