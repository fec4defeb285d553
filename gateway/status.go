package gateway

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/c360/infergate/codec"
	"github.com/c360/infergate/errors"
	"github.com/c360/infergate/openai"
)

// statusClientClosedRequest is the nginx convention for a client that
// disconnected before the response; no standard code fits and the body
// is never observed anyway.
const statusClientClosedRequest = 499

// statusFor maps an error to the HTTP status and OpenAI error body it
// should produce. Sentinels win over classes so a saturated transient
// lands on 503 with the backend_saturated type rather than the generic
// transient mapping. Internal detail never leaks: the returned message
// is either our own validation phrase or a fixed sanitized string.
func statusFor(err error) (int, openai.ErrorBody) {
	var maxBytes *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusInternalServerError,
			openai.NewError("internal server error", openai.ErrorTypeBackend, "internal")

	case stderrors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized,
			openai.NewError("missing or invalid bearer token", openai.ErrorTypeAuthentication, "unauthorized")

	case stderrors.Is(err, errors.ErrRateLimited):
		return http.StatusTooManyRequests,
			openai.NewError("rate limit exceeded, slow down", openai.ErrorTypeRateLimit, "rate_limited")

	case stderrors.As(err, &maxBytes), stderrors.Is(err, errors.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge,
			openai.NewError("request body too large", openai.ErrorTypeInvalidRequest, "body_too_large")

	case stderrors.Is(err, errors.ErrBackendSaturated), stderrors.Is(err, errors.ErrShuttingDown):
		return http.StatusServiceUnavailable,
			openai.NewError("server is overloaded, retry shortly", openai.ErrorTypeBackendSaturated, "backend_saturated")

	case stderrors.Is(err, errors.ErrNotStarted), stderrors.Is(err, errors.ErrAlreadyStopped):
		return http.StatusServiceUnavailable,
			openai.NewError("server is not accepting requests", openai.ErrorTypeBackendSaturated, "unavailable")

	case stderrors.Is(err, errors.ErrDeadlineExceeded):
		return http.StatusGatewayTimeout,
			openai.NewError("request timed out before the backend finished", openai.ErrorTypeTimeout, "timeout")

	case stderrors.Is(err, errors.ErrBackendUnavailable):
		return http.StatusInternalServerError,
			openai.NewError("inference backend unavailable", openai.ErrorTypeBackend, "backend_unavailable")

	case errors.IsCancelled(err):
		return statusClientClosedRequest,
			openai.NewError("request cancelled", openai.ErrorTypeInvalidRequest, "cancelled")

	case errors.IsInvalid(err):
		return http.StatusBadRequest,
			openai.NewError(invalidMessage(err), openai.ErrorTypeInvalidRequest, "invalid_request")

	case errors.IsTransient(err):
		return http.StatusServiceUnavailable,
			openai.NewError("service temporarily unavailable", openai.ErrorTypeBackend, "transient")

	default:
		return http.StatusInternalServerError,
			openai.NewError("internal server error", openai.ErrorTypeBackend, "internal")
	}
}

// invalidMessage surfaces the validation phrase naming the offending
// field without the internal component.operation wrapping.
func invalidMessage(err error) string {
	var ce *errors.ClassifiedError
	if !stderrors.As(err, &ce) || ce.Message == "" {
		return "invalid request"
	}

	// Classified messages read "Component.Operation: phrase failed: cause".
	msg := strings.TrimPrefix(ce.Message, ce.Component+"."+ce.Operation+": ")
	if i := strings.Index(msg, " failed: "); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

// writeError renders err as an OpenAI error response. Server-side
// failures log the full chain; the client only ever sees the sanitized
// body. A 503 carries Retry-After so well-behaved clients back off.
func (g *Gateway) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)

	if status >= http.StatusInternalServerError {
		g.Logger().Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	if status == statusClientClosedRequest {
		// Nobody is listening; skip the serialization.
		w.WriteHeader(status)
		return
	}

	if werr := codec.WriteJSON(w, status, body); werr != nil {
		g.Logger().Warn("error response write failed", "error", werr)
	}
}

// writeErrorStatus emits a fixed-status generic body where no error
// value exists, such as the recovery path.
func writeErrorStatus(w http.ResponseWriter, status int) {
	body := openai.NewError("internal server error", openai.ErrorTypeBackend, "internal")
	_ = codec.WriteJSON(w, status, body)
}
