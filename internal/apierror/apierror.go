// Package apierror provides standardized error response structures for the API
// and the domain error taxonomy shared by services, handlers and the field client.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail    string `json:"detail"`
	Kind      Kind   `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Kind   Kind              `json:"kind"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Kind: KindValidation, Fields: fields}
}

// FromError builds the response envelope for a domain error.
func FromError(e *Error) interface{} {
	if e.Kind == KindValidation {
		return &ValidationError{Detail: e.Msg, Kind: e.Kind, Fields: e.Fields}
	}
	return &APIError{Detail: e.Msg, Kind: e.Kind, Retryable: e.Retryable()}
}
