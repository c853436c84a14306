package sim

import (
	"context"
	"github.com/google/uuid"
	"github.com/saylorsolutions/pvdispatch/pv"
	"log/slog"
	"slices"
	"sync"
	"time"
)

var _ pv.Channel = (*channel)(nil)

type channel struct {
	client    *Client
	rec       *record
	log       *slog.Logger
	connCb    pv.ConnectionCallback
	accessCb  pv.AccessCallback
	unobserve func()

	mux       sync.Mutex
	callbacks map[int]pv.MonitorCallback
	nextIdx   int
	cache     pv.Metadata
	auto      *subscription
	closed    bool
}

// handle runs on the record's goroutine.
func (ch *channel) handle(ev recordEvent) {
	if ev.target != nil && ev.target != ch {
		return
	}
	ch.mux.Lock()
	if ch.closed {
		ch.mux.Unlock()
		return
	}
	var (
		name     = ch.rec.name
		connCb   = ch.connCb
		accessCb = ch.accessCb
		monitors []pv.MonitorCallback
	)
	switch ev.kind {
	case connEvent:
		if ev.connected {
			ch.cache.ReadAccess, ch.cache.WriteAccess = ev.md.ReadAccess, ev.md.WriteAccess
			if ch.auto != nil && ev.md.Value != nil {
				ch.cache.Reading = ev.md.Reading
				monitors = ch.sortedCallbacks()
			}
		} else {
			accessCb = nil
		}
	case accessEvent:
		ch.cache.ReadAccess, ch.cache.WriteAccess = ev.md.ReadAccess, ev.md.WriteAccess
		connCb = nil
	case valueEvent:
		connCb, accessCb = nil, nil
		if ch.auto != nil {
			ch.cache.Reading = ev.md.Reading
			monitors = ch.sortedCallbacks()
		}
	}
	ch.mux.Unlock()

	if connCb != nil {
		connCb(pv.ConnectionEvent{Name: name, Connected: ev.connected})
	}
	if accessCb != nil {
		accessCb(pv.AccessEvent{Name: name, Read: ev.md.ReadAccess, Write: ev.md.WriteAccess})
	}
	for _, cb := range monitors {
		cb(pv.MonitorEvent{Name: name, Reading: ev.md.Reading})
	}
}

// Must be called with the lock held.
func (ch *channel) sortedCallbacks() []pv.MonitorCallback {
	indexes := make([]int, 0, len(ch.callbacks))
	for idx := range ch.callbacks {
		indexes = append(indexes, idx)
	}
	slices.Sort(indexes)
	cbs := make([]pv.MonitorCallback, len(indexes))
	for i, idx := range indexes {
		cbs[i] = ch.callbacks[idx]
	}
	return cbs
}

func (ch *channel) Name() string {
	return ch.rec.name
}

func (ch *channel) Connected() bool {
	ch.mux.Lock()
	closed := ch.closed
	ch.mux.Unlock()
	return !closed && ch.rec.isConnected()
}

func (ch *channel) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ch.Connected() {
		return pv.ErrNotConnected
	}
	return nil
}

func (ch *channel) Get(ctx context.Context, opts pv.GetOptions) (any, error) {
	if err := ch.ready(ctx); err != nil {
		return nil, err
	}
	ch.mux.Lock()
	defer ch.mux.Unlock()
	if opts.UseMonitor && ch.auto != nil && ch.cache.Value != nil && !opts.WithCtrlVars {
		return ch.cache.Value, nil
	}
	md, _ := ch.rec.snapshot()
	if !md.ReadAccess {
		return nil, pv.ErrAccessDenied
	}
	ch.cache.Reading = md.Reading
	if opts.WithCtrlVars {
		copyCtrlVars(&ch.cache, md)
	}
	return md.Value, nil
}

func (ch *channel) Put(ctx context.Context, value any, opts pv.PutOptions) error {
	if err := ch.ready(ctx); err != nil {
		return err
	}
	if md, _ := ch.rec.snapshot(); !md.WriteAccess {
		return pv.ErrAccessDenied
	}
	if err := ch.client.Publish(ch.rec.name, value); err != nil {
		return err
	}
	ch.log.Debug("Put accepted", "value", value)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if ch.client.putDelay > 0 {
			timer := time.NewTimer(ch.client.putDelay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ch.client.ctx.Done():
				return
			}
		}
		if opts.Callback != nil {
			opts.Callback(pv.PutCompletion{Name: ch.rec.name, Value: value})
		}
	}()
	if !opts.Wait {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ch *channel) AddCallback(cb pv.MonitorCallback) int {
	if cb == nil {
		return -1
	}
	ch.mux.Lock()
	defer ch.mux.Unlock()
	idx := ch.nextIdx
	ch.nextIdx++
	ch.callbacks[idx] = cb
	return idx
}

func (ch *channel) RemoveCallback(index int) {
	ch.mux.Lock()
	defer ch.mux.Unlock()
	delete(ch.callbacks, index)
}

func (ch *channel) ClearCallbacks() {
	ch.mux.Lock()
	defer ch.mux.Unlock()
	clear(ch.callbacks)
}

func (ch *channel) Metadata() pv.Metadata {
	ch.mux.Lock()
	defer ch.mux.Unlock()
	return ch.cache.Clone()
}

func (ch *channel) RefreshTimeVars(ctx context.Context) error {
	if err := ch.ready(ctx); err != nil {
		return err
	}
	md, _ := ch.rec.snapshot()
	ch.mux.Lock()
	defer ch.mux.Unlock()
	ch.cache.Status = md.Status
	ch.cache.Severity = md.Severity
	ch.cache.Timestamp = md.Timestamp
	return nil
}

func (ch *channel) RefreshCtrlVars(ctx context.Context) error {
	if err := ch.ready(ctx); err != nil {
		return err
	}
	md, _ := ch.rec.snapshot()
	ch.mux.Lock()
	defer ch.mux.Unlock()
	copyCtrlVars(&ch.cache, md)
	return nil
}

func copyCtrlVars(dst *pv.Metadata, src pv.Metadata) {
	dst.Units = src.Units
	dst.Precision = src.Precision
	dst.LowerCtrlLimit, dst.UpperCtrlLimit = src.LowerCtrlLimit, src.UpperCtrlLimit
	dst.LowerDispLimit, dst.UpperDispLimit = src.LowerDispLimit, src.UpperDispLimit
	dst.EnumStrings = append([]string(nil), src.EnumStrings...)
}

func (ch *channel) DetachAutoMonitor() pv.Subscription {
	ch.mux.Lock()
	defer ch.mux.Unlock()
	sub := ch.auto
	ch.auto = nil
	if sub == nil {
		return nil
	}
	return sub
}

func (ch *channel) Disconnect() error {
	ch.mux.Lock()
	if ch.closed {
		ch.mux.Unlock()
		return nil
	}
	ch.closed = true
	clear(ch.callbacks)
	sub := ch.auto
	ch.auto = nil
	ch.mux.Unlock()

	if ch.unobserve != nil {
		ch.unobserve()
	}
	if sub != nil {
		sub.Clear()
	}
	ch.log.Debug("Channel disconnected")
	return nil
}

var _ pv.Subscription = (*subscription)(nil)

// subscription is a channel's automatic monitor.
type subscription struct {
	id     string
	client *Client
	clear  sync.Once
}

func (c *Client) subscribe() *subscription {
	sub := &subscription{
		id:     uuid.NewString(),
		client: c,
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	c.subs[sub.id] = sub
	return sub
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Clear() {
	s.clear.Do(func() {
		s.client.mux.Lock()
		defer s.client.mux.Unlock()
		delete(s.client.subs, s.id)
	})
}
