package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCategory   = errors.New("unknown category")
	ErrDispatcherStopped = errors.New("dispatcher stopped")
	ErrShutdownTimeout   = errors.New("shutdown timed out")
	ErrCallbackFailed    = errors.New("callback failed")
	ErrInvalidConfig     = errors.New("invalid dispatcher configuration")
)

// CallbackError describes a failure in user code running on a [Worker].
// It's never returned to producers, only logged and passed to the configured [ErrorHandler].
type CallbackError struct {
	Category Category
	Callback string  // Callback is the identity of the failed callback, usually its function name.
	Seq      uint64  // Seq is the per-category sequence stamp of the failed item.
	Params   []Param // Params are the arguments the callback was invoked with.
	Err      error   // Err is the error returned by the callback, if any.
	Panic    any     // Panic is the recovered panic value, if the callback panicked.
	Stack    []byte
}

func (e *CallbackError) Error() string {
	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("%s: category '%s', callback '%s'", ErrCallbackFailed, e.Category, e.Callback))
	if e.Panic != nil {
		buf.WriteString(fmt.Sprintf(": panic: %v", e.Panic))
	} else if e.Err != nil {
		buf.WriteString(": " + e.Err.Error())
	}
	return buf.String()
}

func (e *CallbackError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCallbackFailed, e.Err}
	}
	return []error{ErrCallbackFailed}
}

// ErrorHandler receives every [CallbackError] raised on a [Worker].
// It runs on the worker goroutine, so it should return quickly.
type ErrorHandler func(err *CallbackError)

func unknownCategory(cat Category) error {
	return fmt.Errorf("%w '%s'", ErrUnknownCategory, cat)
}
