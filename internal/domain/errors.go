package domain

// Error codes surfaced to clients. Errors always go to the issuing
// connection only, never to a room.
const (
	ErrCodeAuthRequired        = "AUTH_REQUIRED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeSendFailed          = "SEND_FAILED"
)

// ErrorPayload is the body of error and message:error frames.
type ErrorPayload struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func NewErrorPayload(code, message string) ErrorPayload {
	return ErrorPayload{Message: message, Code: code}
}
