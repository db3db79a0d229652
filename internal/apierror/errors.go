package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error. The string value is part of the wire
// contract: the field client decodes it back from the response envelope.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindInsufficientStock Kind = "insufficient_stock"
	KindDuplicateTag      Kind = "duplicate_tag"
	KindNotFound          Kind = "not_found"
	KindPermissionDenied  Kind = "permission_denied"
	KindConflict          Kind = "conflict"
	KindInvalidState      Kind = "invalid_state"
	KindOfflineDeferred   Kind = "offline_deferred"
)

// Error is a classified domain error.
type Error struct {
	Kind   Kind
	Msg    string
	Fields map[string]string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether the caller should offer a retry action.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindInsufficientStock, KindOfflineDeferred, KindConflict:
		return true
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrDuplicateTag      = &Error{Kind: KindDuplicateTag}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrOfflineDeferred   = &Error{Kind: KindOfflineDeferred}
)

func newf(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Validation reports a single invalid field.
func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Msg: field + ": " + msg, Fields: map[string]string{field: msg}}
}

// ValidationFields reports several invalid fields at once.
func ValidationFields(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Msg: "validation failed", Fields: fields}
}

func InsufficientStock(format string, args ...interface{}) *Error {
	return newf(KindInsufficientStock, format, args...)
}

func DuplicateTag(tagNumber string) *Error {
	return newf(KindDuplicateTag, "tag %s already exists", tagNumber)
}

func NotFound(entity string, id interface{}) *Error {
	return newf(KindNotFound, "%s %v not found", entity, id)
}

// PermissionDenied names the missing capability so the UI can explain it.
func PermissionDenied(capability string) *Error {
	return newf(KindPermissionDenied, "missing capability: %s", capability)
}

func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

// Busy is a retryable conflict over a contended resource. errors.Is still
// matches cause.
func Busy(cause error, format string, args ...interface{}) *Error {
	e := newf(KindConflict, format, args...)
	e.Err = cause
	return e
}

func InvalidState(format string, args ...interface{}) *Error {
	return newf(KindInvalidState, format, args...)
}

func OfflineDeferred(offlineID string) *Error {
	return newf(KindOfflineDeferred, "accepted offline as %s, waiting for connectivity", offlineID)
}

// As extracts the *Error from a wrapped chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindInsufficientStock, KindDuplicateTag, KindConflict, KindInvalidState:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindOfflineDeferred:
		return http.StatusAccepted
	}
	return http.StatusInternalServerError
}

// FromStatus rebuilds a domain error from a decoded envelope. Used by the
// field client when the server refuses a replay.
func FromStatus(status int, kind Kind, detail string) *Error {
	if kind == "" {
		switch status {
		case http.StatusUnprocessableEntity:
			kind = KindValidation
		case http.StatusNotFound:
			kind = KindNotFound
		case http.StatusForbidden:
			kind = KindPermissionDenied
		case http.StatusConflict:
			kind = KindConflict
		default:
			return nil
		}
	}
	return &Error{Kind: kind, Msg: detail}
}
