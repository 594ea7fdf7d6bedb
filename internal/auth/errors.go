package auth

import (
	"errors"
	"net/http"
)

// Kind classifies coordinator failures. Each kind maps to one HTTP status.
type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindInternal     Kind = "internal_error"
)

func (k Kind) Error() string {
	return string(k)
}

func (k Kind) StatusCode() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is checks against any *Error of the given kind.
var (
	ErrValidation   error = KindValidation
	ErrConflict     error = KindConflict
	ErrUnauthorized error = KindUnauthorized
	ErrForbidden    error = KindForbidden
	ErrNotFound     error = KindNotFound
	ErrInternal     error = KindInternal
)

// Error carries a client-safe Message and the underlying cause, which is only
// meant for server-side logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func validationError(message string) *Error {
	return newError(KindValidation, message, nil)
}

func internalError(message string, cause error) *Error {
	return newError(KindInternal, message, cause)
}

// KindOf reports the kind of err, defaulting to KindInternal for errors that
// did not originate from this package.
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindInternal
}

// PublicMessage returns the message that may be shown to clients.
func PublicMessage(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) && authErr.Kind != KindInternal {
		return authErr.Message
	}
	return "internal server error"
}
