// Package apierr defines the error taxonomy every handler reports through.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// FieldError is one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
	Stack   string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Status() int { return e.Kind.Status() }

// Only internal errors carry a stack; client errors are expected outcomes.
func newError(kind Kind, msg string, cause error) *Error {
	e := &Error{Kind: kind, Message: msg, Err: cause}
	if kind == KindInternal {
		e.Stack = string(debug.Stack())
	}
	return e
}

func BadRequest(msg string) *Error { return newError(KindBadRequest, msg, nil) }

func Validation(fields []FieldError) *Error {
	e := newError(KindBadRequest, "Validation failed", nil)
	e.Fields = fields
	return e
}

func Unauthorized(msg string) *Error { return newError(KindUnauthorized, msg, nil) }

func Forbidden(msg string) *Error { return newError(KindForbidden, msg, nil) }

func NotFound(msg string) *Error { return newError(KindNotFound, msg, nil) }

func Conflict(msg string) *Error { return newError(KindConflict, msg, nil) }

func Internal(msg string, cause error) *Error { return newError(KindInternal, msg, cause) }

// From returns err as an *Error, wrapping anything unknown as Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("Internal server error", err)
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}
