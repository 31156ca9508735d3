// ABOUTME: Typed error kinds shared by every tool-serving component.
// ABOUTME: Kinds survive %w wrapping so transports can map them to status codes.

package toolerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller.
type Kind string

const (
	Validation  Kind = "validation_error"
	NotFound    Kind = "not_found"
	OutOfRange  Kind = "out_of_range"
	RateLimited Kind = "rate_limited"
	Upstream    Kind = "upstream_error"
	Auth        Kind = "auth_error"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation  = &Error{Kind: Validation}
	ErrNotFound    = &Error{Kind: NotFound}
	ErrOutOfRange  = &Error{Kind: OutOfRange}
	ErrRateLimited = &Error{Kind: RateLimited}
	ErrUpstream    = &Error{Kind: Upstream}
	ErrAuth        = &Error{Kind: Auth}
)

// Error is the single concrete error type surfaced by tools.
type Error struct {
	Kind    Kind
	Param   string // offending parameter, validation errors only
	Message string
	Status  int   // upstream HTTP status when known
	Err     error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Param == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind carried by err, or "" if err carries none.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// As returns the *Error carried by err, if any.
func As(err error) (*Error, bool) {
	var te *Error
	ok := errors.As(err, &te)
	return te, ok
}

// Invalid builds a validation error for a named parameter.
func Invalid(param, format string, args ...any) *Error {
	return &Error{Kind: Validation, Param: param, Message: fmt.Sprintf(format, args...)}
}

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
