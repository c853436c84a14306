package dispatch

import (
	"context"
	"github.com/saylorsolutions/pvdispatch/signalx"
	"github.com/saylorsolutions/pvdispatch/slogx"
	"log/slog"
	"os"
	"sync"
)

var (
	instanceMux sync.Mutex
	instance    *Dispatcher
)

// Setup creates the process-wide [Dispatcher] if it doesn't exist yet.
// If one already exists, then this logs and returns it, ignoring opts.
func Setup(log *slog.Logger, opts ...Option) (*Dispatcher, error) {
	instanceMux.Lock()
	defer instanceMux.Unlock()
	log = slogx.OrDiscard(log)
	if instance != nil {
		log.Debug("Event dispatcher already set up", "dispatcher", instance.ID())
		return instance, nil
	}
	d, err := New(append([]Option{WithLogger(log)}, opts...)...)
	if err != nil {
		return nil, err
	}
	log.Debug("Installed event dispatcher", "dispatcher", d.ID())
	instance = d
	return d, nil
}

// Instance returns the process-wide [Dispatcher], or nil if [Setup] hasn't been called.
func Instance() *Dispatcher {
	instanceMux.Lock()
	defer instanceMux.Unlock()
	return instance
}

// Teardown stops the process-wide [Dispatcher] and clears it, so [Setup] may be called again.
// The reference is only cleared if stopping succeeds, otherwise the error is returned and Teardown may be retried.
// This is a no-op if there's no process-wide [Dispatcher].
//
// The instance lock isn't held while stopping, so draining callbacks may still call [Instance] or [Setup].
// Until the stop completes they get the stopping instance.
func Teardown() error {
	d := Instance()
	if d == nil {
		return nil
	}
	d.log.Debug("Performing dispatcher cleanup")
	if d.State() != StateStopped {
		if err := d.Stop(); err != nil {
			return err
		}
	}
	instanceMux.Lock()
	defer instanceMux.Unlock()
	if instance == d {
		instance = nil
	}
	return nil
}

// InstallExitHook arranges for [Teardown] to run exactly once, when one of signals is received or ctx is done.
// The returned function runs the teardown immediately if it hasn't run yet, and is meant to be deferred in main.
func InstallExitHook(ctx context.Context, signals ...os.Signal) (cleanup func()) {
	return signalx.OnSignal(ctx, func() {
		d := Instance()
		if err := Teardown(); err != nil && d != nil {
			d.log.Warn("Dispatcher cleanup failed", "error", err)
		}
	}, signals...)
}
