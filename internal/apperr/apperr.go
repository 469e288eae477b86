// Package apperr defines the error taxonomy shared by services and handlers.
// Services return *Error values; handlers translate them into HTTP responses
// exposing only Message, while the wrapped cause is logged server-side.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindRateLimited
	KindGateway
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string // stable machine readable code
	Message string // safe to show to clients
	Err     error  // cause, never exposed
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text a client may see.  Internal and gateway errors
// always collapse to a generic message.
func (e *Error) PublicMessage() string {
	switch e.Kind {
	case KindInternal:
		return "internal server error"
	case KindGateway:
		return "payment provider unavailable, please try again"
	}
	return e.Message
}

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}
func NotFound(code, msg string) *Error { return &Error{Kind: KindNotFound, Code: code, Message: msg} }
func Conflict(code, msg string) *Error { return &Error{Kind: KindConflict, Code: code, Message: msg} }
func Unauthorized(code, msg string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: msg}
}
func Forbidden(code, msg string) *Error { return &Error{Kind: KindForbidden, Code: code, Message: msg} }

// Gateway wraps a payment provider failure.
func Gateway(msg string, err error) *Error {
	return &Error{Kind: KindGateway, Code: "gateway_error", Message: msg, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: msg, Err: err}
}

// From returns err as *Error, classifying unknown errors as internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("unexpected error", err)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
