package gateway

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360/infergate/errors"
	"github.com/c360/infergate/openai"
)

func TestStatusFor_Mappings(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		errType string
	}{
		{
			name:    "unauthorized",
			err:     errors.ErrUnauthorized,
			status:  http.StatusUnauthorized,
			errType: openai.ErrorTypeAuthentication,
		},
		{
			name:    "rate limited",
			err:     errors.ErrRateLimited,
			status:  http.StatusTooManyRequests,
			errType: openai.ErrorTypeRateLimit,
		},
		{
			name:    "max bytes",
			err:     &http.MaxBytesError{Limit: 16},
			status:  http.StatusRequestEntityTooLarge,
			errType: openai.ErrorTypeInvalidRequest,
		},
		{
			name:    "saturated",
			err:     errors.ErrBackendSaturated,
			status:  http.StatusServiceUnavailable,
			errType: openai.ErrorTypeBackendSaturated,
		},
		{
			name:    "saturated wrapped by the bridge",
			err:     errors.WrapTransient(errors.ErrBackendSaturated, "Bridge", "Submit", "admission"),
			status:  http.StatusServiceUnavailable,
			errType: openai.ErrorTypeBackendSaturated,
		},
		{
			name:    "shutting down",
			err:     errors.ErrShuttingDown,
			status:  http.StatusServiceUnavailable,
			errType: openai.ErrorTypeBackendSaturated,
		},
		{
			name:    "not started",
			err:     errors.ErrNotStarted,
			status:  http.StatusServiceUnavailable,
			errType: openai.ErrorTypeBackendSaturated,
		},
		{
			name:    "hard timeout",
			err:     errors.WrapTransient(errors.ErrDeadlineExceeded, "Bridge", "expire", "deadline"),
			status:  http.StatusGatewayTimeout,
			errType: openai.ErrorTypeTimeout,
		},
		{
			name:    "run loop gone",
			err:     errors.WrapFatal(errors.ErrBackendUnavailable, "Bridge", "sweep", "entry resolution"),
			status:  http.StatusInternalServerError,
			errType: openai.ErrorTypeBackend,
		},
		{
			name:    "client cancelled",
			err:     errors.WrapCancelled(errors.ErrCancelled, "Pending", "Await", "outcome wait"),
			status:  statusClientClosedRequest,
			errType: openai.ErrorTypeInvalidRequest,
		},
		{
			name:    "validation failure",
			err:     errors.WrapInvalid(errors.ErrMissingField, "ChatRequest", "Validate", "model is required"),
			status:  http.StatusBadRequest,
			errType: openai.ErrorTypeInvalidRequest,
		},
		{
			name:    "anonymous transient",
			err:     errors.WrapTransient(stderrors.New("socket reset"), "Adapter", "Run", "inference"),
			status:  http.StatusServiceUnavailable,
			errType: openai.ErrorTypeBackend,
		},
		{
			name:    "unclassified",
			err:     stderrors.New("boom"),
			status:  http.StatusInternalServerError,
			errType: openai.ErrorTypeBackend,
		},
		{
			name:    "nil error",
			err:     nil,
			status:  http.StatusInternalServerError,
			errType: openai.ErrorTypeBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.errType, body.Error.Type)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestStatusFor_SurfacesValidationMessage(t *testing.T) {
	err := errors.WrapInvalid(errors.ErrInvalidData, "ChatRequest", "Validate", `unknown role "oracle" in messages[0]`)

	status, body := statusFor(err)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, `unknown role "oracle" in messages[0]`, body.Error.Message)
}

func TestStatusFor_HidesInternalDetail(t *testing.T) {
	err := errors.WrapFatal(stderrors.New("pgx: connection refused to 10.0.0.7"), "Adapter", "Run", "inference")

	_, body := statusFor(err)

	assert.NotContains(t, body.Error.Message, "10.0.0.7")
	assert.NotContains(t, body.Error.Message, "pgx")
}

func TestInvalidMessage_FallsBackWithoutClassification(t *testing.T) {
	assert.Equal(t, "invalid request", invalidMessage(stderrors.New("raw")))
}
