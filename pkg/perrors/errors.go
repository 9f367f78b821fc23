// Package perrors provides a small typed-error vocabulary shared across
// eventpipe's packages, so callers can branch on a stable Code instead of
// string-matching error messages.
package perrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers that need to branch on kind rather
// than on error identity (e.g. translating to a user-visible failure mode
// per spec.md §7).
type Code string

const (
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeInternal     Code = "internal"
	CodeUnavailable  Code = "unavailable"
	CodeConflict     Code = "conflict"
)

// Error wraps an underlying cause with a Code and a human-readable message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error with no wrapped cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a Code and message to an existing error.
func Wrap(cause error, code Code, message string) error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether the first *Error in err's chain (err itself or an
// error it wraps) carries the given Code; *Errors deeper in the chain are
// not consulted.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
