package cli

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
)

// UsageError signals that the user invoked a [Command] incorrectly.
// When a [CommandFunc] returns one, the error and the command's usage information are printed.
type UsageError struct {
	wrapped error
}

func (e *UsageError) Error() string {
	if e.wrapped == nil {
		return "usage error"
	}
	return "usage error: " + e.wrapped.Error()
}

// Is matches any *UsageError, so errors.Is(err, &UsageError{}) works regardless of the wrapped error.
func (e *UsageError) Is(err error) bool {
	_, ok := err.(*UsageError)
	return ok
}

func (e *UsageError) Unwrap() error {
	return e.wrapped
}

// NewUsageError creates a [UsageError] wrapping an error created with [fmt.Errorf].
func NewUsageError(format string, args ...any) error {
	return &UsageError{wrapped: fmt.Errorf(format, args...)}
}

// IsUsageError reports whether err is or wraps a [UsageError].
func IsUsageError(err error) bool {
	return errors.Is(err, &UsageError{})
}
