package pv

import (
	"context"
	"errors"
	"fmt"
	"github.com/saylorsolutions/pvdispatch/dispatch"
	"github.com/saylorsolutions/pvdispatch/patterns/retry"
	"github.com/saylorsolutions/pvdispatch/syncx"
	"log/slog"
	"time"
)

var _ Channel = (*Handle)(nil)

// Handle is a [Channel] whose callbacks run on a [dispatch.Dispatcher] instead of the client library's goroutines.
// Monitor callbacks run on the [dispatch.CategoryMonitor] worker, and put completions on the [dispatch.CategoryGetPut] worker.
//
// Methods that don't accept callbacks are passed through to the underlying [Channel].
type Handle struct {
	Channel
	id  string
	d   *dispatch.Dispatcher
	log *slog.Logger
}

// ID uniquely identifies this Handle, even among handles for the same name.
func (h *Handle) ID() string {
	return h.id
}

// Dispatcher returns the [dispatch.Dispatcher] this Handle's callbacks run on.
func (h *Handle) Dispatcher() *dispatch.Dispatcher {
	return h.d
}

// AddCallback registers a monitor callback that runs on the monitor worker.
func (h *Handle) AddCallback(cb MonitorCallback) int {
	return h.Channel.AddCallback(dispatch.WrapFunc(h.d, dispatch.CategoryMonitor, cb))
}

// AddCallbackRunNow is like [Handle.AddCallback], but also queues cb with the buffered reading if there is one.
func (h *Handle) AddCallbackRunNow(cb MonitorCallback) int {
	wrapped := dispatch.WrapFunc(h.d, dispatch.CategoryMonitor, cb)
	idx := h.Channel.AddCallback(wrapped)
	if wrapped == nil || !h.Connected() {
		return idx
	}
	if md := h.Metadata(); md.Value != nil {
		wrapped(MonitorEvent{Name: h.Name(), Reading: md.Reading})
	}
	return idx
}

// Put writes value, running opts.Callback on the get_put worker when the write completes.
func (h *Handle) Put(ctx context.Context, value any, opts PutOptions) error {
	opts.Callback = dispatch.WrapFunc(h.d, dispatch.CategoryGetPut, opts.Callback)
	return h.Channel.Put(ctx, value, opts)
}

// PutFuture writes value, and returns a future that's resolved by the get_put worker once the write completes.
// If the put can't be started, then the future is already resolved with the error.
//
// Completions that arrive after the dispatcher stopped are dropped, so Await with a timeout or context.
func (h *Handle) PutFuture(ctx context.Context, value any) syncx.Future[PutCompletion] {
	fut := syncx.NewFuture[PutCompletion]()
	err := h.Put(ctx, value, PutOptions{
		Callback: func(completion PutCompletion) {
			fut.ResolveErr(completion, completion.Err)
		},
	})
	if err != nil {
		return syncx.StaticFuture(PutCompletion{Name: h.Name(), Value: value, Err: err}, err)
	}
	return fut
}

// GetWithMetadata reads the value along with its status, severity, and timestamp.
// A nil Reading is returned if there's no value.
func (h *Handle) GetWithMetadata(ctx context.Context, opts GetOptions) (*Reading, error) {
	val, err := h.Get(ctx, opts)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	md := h.Metadata()
	return &Reading{
		Value:     val,
		Status:    md.Status,
		Severity:  md.Severity,
		Timestamp: md.Timestamp,
	}, nil
}

// GetAllMetadata refreshes and returns everything known about the remote value, except the value itself.
// Time variables are only read if no timestamp has been seen yet, control variables are always read.
func (h *Handle) GetAllMetadata(ctx context.Context) (Metadata, error) {
	if h.Metadata().Timestamp.IsZero() {
		if err := h.RefreshTimeVars(ctx); err != nil {
			return Metadata{}, err
		}
	}
	if err := h.RefreshCtrlVars(ctx); err != nil {
		return Metadata{}, err
	}
	md := h.Metadata()
	md.Value = nil
	return md, nil
}

// ClearAutoMonitor turns off the automatic monitor and cancels its subscription.
// It's safe to call more than once.
func (h *Handle) ClearAutoMonitor() {
	sub := h.DetachAutoMonitor()
	if sub == nil {
		return
	}
	sub.Clear()
	h.log.Debug("Cleared automatic monitor", "subscription", sub.ID())
}

// WaitForConnection polls until the Handle is connected, ctx is done, or timeout elapses.
// A timeout <= 0 waits as long as ctx allows.
// An error wrapping [ErrConnectionTimeout] is returned if the timeout elapses first.
func (h *Handle) WaitForConnection(ctx context.Context, timeout time.Duration) error {
	if h.Connected() {
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := retry.Poll(ctx, retry.PollSettings(), h.Connected)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: '%s' after %s", ErrConnectionTimeout, h.Name(), timeout)
	}
	return err
}

// Release clears the callbacks of every channel, leaving them connected.
func Release(channels ...Channel) {
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		ch.ClearCallbacks()
	}
}
