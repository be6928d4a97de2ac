package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transport layers can map it without
// inspecting message text.
type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindUnavailable     Kind = "UNAVAILABLE"
	KindForbidden       Kind = "FORBIDDEN"
	KindInvalidState    Kind = "INVALID_STATE"
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
)

// Error is a structured failure: a kind plus a human-readable detail.
type Error struct {
	Kind   Kind
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches two Errors by kind, so errors.Is(err, apperr.NotFound(""))
// works regardless of detail text.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf(format, args...)}
}

func Unavailable(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnavailable, Detail: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Detail: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Detail: fmt.Sprintf(format, args...)}
}

func InvalidArgument(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidArgument, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a structured error.
func Wrap(err *Error, cause error) *Error {
	err.cause = cause
	return err
}

// KindOf returns the kind of a structured error, or "" for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
