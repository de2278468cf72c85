package apperr

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindAuth       Kind = "auth"
	KindForbidden  Kind = "forbidden"
	KindNotFound   Kind = "not_found"
	KindStore      Kind = "store"
)

// Error is the only error type that crosses a component boundary. Message is
// safe to show to callers; Cause is kept for logs and never rendered.
type Error struct {
	Kind    Kind   `json:"error"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(msg string) *Error { return New(KindValidation, msg) }

func Conflict(msg string) *Error { return New(KindConflict, msg) }

func NotFound(msg string) *Error { return New(KindNotFound, msg) }

func Forbidden(msg string) *Error { return New(KindForbidden, msg) }

// InvalidCredentials is returned for every failed login and token check so
// that callers cannot tell which factor was wrong.
func InvalidCredentials(cause error) *Error {
	return Wrap(KindAuth, "invalid credentials", cause)
}

// FromStore converts an error coming out of a store interaction. Errors that
// already carry a kind pass through untouched.
func FromStore(err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindStore, "store timeout", err)
	}
	return Wrap(KindStore, "store unavailable", err)
}

// KindOf returns the kind of err, or KindStore for anything unclassified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStore
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
