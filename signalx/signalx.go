package signalx

import (
	"context"
	"os"
	"os/signal"
	"sync"
)

// SignalCtx will set up a context that will be cancelled if any of the given signals are received.
func SignalCtx(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	if len(signals) == 0 {
		panic("no signals passed to SignalCtx")
	}
	return signal.NotifyContext(parent, signals...)
}

// OnSignal runs fn exactly once when one of the given signals is received or when ctx is done, whichever happens first.
// The returned function runs fn immediately if it hasn't run yet, and releases the signal registration.
// This makes it usable both as a deferred cleanup in main and as a signal handler.
//
// If no signals are given, then fn only runs when ctx is done or the returned function is called.
func OnSignal(ctx context.Context, fn func(), signals ...os.Signal) (runNow func()) {
	if fn == nil {
		panic("nil function passed to OnSignal")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		once sync.Once
		done = make(chan struct{})
		sigs = make(chan os.Signal, 1)
		run  = func() {
			once.Do(func() {
				close(done)
				signal.Stop(sigs)
				fn()
			})
		}
	)
	if len(signals) > 0 {
		signal.Notify(sigs, signals...)
	}
	go func() {
		select {
		case <-sigs:
		case <-ctx.Done():
		case <-done:
			return
		}
		run()
	}()
	return run
}
