package dispatch

import "fmt"

// Wrap returns a [Callback] that runs cb on d's [Worker] for category instead of the calling goroutine.
// The returned function enqueues and returns immediately with a nil error.
//
// Wrapping a nil cb returns nil, so that an absent callback stays absent for the client library.
// Wrapping for a category d doesn't support is a wiring bug, and panics.
//
// If d has stopped, then invoking the returned function logs and drops the notification.
func Wrap(d *Dispatcher, category Category, cb Callback) Callback {
	if cb == nil {
		return nil
	}
	mustSupport(d, category)
	name := CallbackName(cb)
	return func(params ...Param) error {
		d.deliver(category, name, cb, params)
		return nil
	}
}

// WrapFunc is the typed version of [Wrap], for client libraries that call back with a single value.
// The returned function has the same signature as fn.
func WrapFunc[T any](d *Dispatcher, category Category, fn func(T)) func(T) {
	if fn == nil {
		return nil
	}
	mustSupport(d, category)
	name := CallbackName(fn)
	return func(arg T) {
		d.deliver(category, name, func(...Param) error {
			fn(arg)
			return nil
		}, []Param{arg})
	}
}

func mustSupport(d *Dispatcher, category Category) {
	if d == nil {
		panic("cannot wrap callback: nil dispatcher")
	}
	if !d.Supports(category) {
		panic(fmt.Sprintf("cannot wrap callback: %v", unknownCategory(category)))
	}
}
