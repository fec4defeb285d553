package openai

// Error types carried in the error body, mapped from the bridge's outcome
// taxonomy by the gateway.
const (
	ErrorTypeInvalidRequest   = "invalid_request_error"
	ErrorTypeBackendSaturated = "backend_saturated"
	ErrorTypeTimeout          = "timeout"
	ErrorTypeBackend          = "backend_error"
	ErrorTypeAuthentication   = "authentication_error"
	ErrorTypeRateLimit        = "rate_limit_exceeded"
)

// ErrorDetail is the inner error object.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// ErrorBody is the envelope every error response carries:
// {"error":{"message","type","code"}}.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// NewError builds an error body.
func NewError(message, errType, code string) ErrorBody {
	return ErrorBody{Error: ErrorDetail{Message: message, Type: errType, Code: code}}
}
