package sim

import (
	"context"
	"errors"
	"fmt"
	"github.com/saylorsolutions/pvdispatch/patterns/observer"
	"github.com/saylorsolutions/pvdispatch/pv"
	"github.com/saylorsolutions/pvdispatch/slogx"
	"github.com/saylorsolutions/pvdispatch/structures/set"
	"log/slog"
	"slices"
	"sync"
	"time"
)

var (
	ErrClosed = errors.New("client is closed")
)

var _ pv.Client = (*Client)(nil)

// Client is an in-memory [pv.Client].
// Every record delivers its callbacks on its own goroutine, the way a network client delivers them on I/O threads.
type Client struct {
	ctx          context.Context
	cancel       context.CancelFunc
	log          *slog.Logger
	clientCtx    *Context
	putDelay     time.Duration
	connectDelay time.Duration
	unreachable  []string

	mux     sync.Mutex
	records map[string]*record
	subs    map[string]*subscription
}

type Option func(c *Client)

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithPutDelay sets how long a put takes to complete.
func WithPutDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.putDelay = delay
	}
}

// WithConnectDelay sets how long a new record takes to connect.
func WithConnectDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.connectDelay = delay
	}
}

// WithUnreachable names records that never connect on their own.
func WithUnreachable(names ...string) Option {
	return func(c *Client) {
		c.unreachable = append(c.unreachable, names...)
	}
}

// NewClient creates a [Client] that runs until ctx is done or [Client.Close] is called.
func NewClient(ctx context.Context, opts ...Option) *Client {
	c := &Client{
		clientCtx: new(Context),
		records:   map[string]*record{},
		subs:      map[string]*subscription{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = slogx.OrDiscard(c.log).With("client", "sim")
	c.ctx, c.cancel = context.WithCancel(ctx)
	context.AfterFunc(c.ctx, c.clientCtx.close)
	return c
}

// Context returns the shared [*Context] that dispatcher workers attach to.
func (c *Client) Context() any {
	return c.clientCtx
}

// Close stops delivering callbacks. Connecting to a closed Client fails with [ErrClosed].
func (c *Client) Close() {
	c.cancel()
}

func (c *Client) closed() bool {
	return c.ctx.Err() != nil
}

func (c *Client) Connect(name string, opts pv.ConnectOptions) (pv.Channel, error) {
	if c.closed() {
		return nil, ErrClosed
	}
	rec := c.record(name)
	ch := &channel{
		client:    c,
		rec:       rec,
		log:       c.log.With("pv", name),
		connCb:    opts.ConnectionCallback,
		accessCb:  opts.AccessCallback,
		callbacks: map[int]pv.MonitorCallback{},
	}
	if !opts.NoAutoMonitor {
		ch.auto = c.subscribe()
	}
	if opts.MonitorCallback != nil {
		ch.AddCallback(opts.MonitorCallback)
	}
	err := rec.emitWith(func() (recordEvent, bool) {
		md, connected := rec.snapshot()
		ch.mux.Lock()
		ch.cache.ReadAccess, ch.cache.WriteAccess = md.ReadAccess, md.WriteAccess
		ch.mux.Unlock()
		ch.unobserve = rec.events.Observe(ch.handle)
		return recordEvent{kind: connEvent, md: md, connected: true, target: ch}, connected
	})
	if err != nil {
		_ = ch.Disconnect()
		return nil, err
	}
	ch.log.Debug("Channel created", "auto_monitor", ch.auto != nil)
	return ch, nil
}

// Define sets the metadata of a record, creating it if needed.
// The value, connection state, and timestamp in md are ignored.
func (c *Client) Define(name string, md pv.Metadata) error {
	if c.closed() {
		return ErrClosed
	}
	rec := c.record(name)
	return rec.emitWith(func() (recordEvent, bool) {
		rec.mux.Lock()
		defer rec.mux.Unlock()
		md.Reading = rec.md.Reading
		rec.md = md.Clone()
		return recordEvent{kind: accessEvent, md: rec.md.Clone()}, rec.connected
	})
}

// Publish sets a new value with no alarm, as if the remote value changed.
func (c *Client) Publish(name string, value any) error {
	return c.PublishReading(name, pv.Reading{Value: value})
}

// PublishReading sets a new reading. A zero timestamp is replaced with the current time.
func (c *Client) PublishReading(name string, reading pv.Reading) error {
	if c.closed() {
		return ErrClosed
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}
	rec := c.record(name)
	return rec.emitWith(func() (recordEvent, bool) {
		rec.mux.Lock()
		defer rec.mux.Unlock()
		rec.md.Reading = reading
		return recordEvent{kind: valueEvent, md: rec.md.Clone()}, rec.connected
	})
}

// SetConnected changes the connection state of a record, notifying every channel.
func (c *Client) SetConnected(name string, connected bool) error {
	if c.closed() {
		return ErrClosed
	}
	return c.record(name).setConnected(connected)
}

// SetAccess changes the access rights of a record, notifying every connected channel.
func (c *Client) SetAccess(name string, read, write bool) error {
	if c.closed() {
		return ErrClosed
	}
	rec := c.record(name)
	return rec.emitWith(func() (recordEvent, bool) {
		rec.mux.Lock()
		defer rec.mux.Unlock()
		rec.md.ReadAccess = read
		rec.md.WriteAccess = write
		return recordEvent{kind: accessEvent, md: rec.md.Clone()}, rec.connected
	})
}

// Subscriptions returns the IDs of active monitor subscriptions.
func (c *Client) Subscriptions() []string {
	c.mux.Lock()
	defer c.mux.Unlock()
	return set.FromKeys(c.subs).Sorted()
}

func (c *Client) record(name string) *record {
	c.mux.Lock()
	defer c.mux.Unlock()
	if rec, ok := c.records[name]; ok {
		return rec
	}
	rec := newRecord(c.ctx, name)
	c.records[name] = rec
	if slices.Contains(c.unreachable, name) {
		return rec
	}
	if c.connectDelay <= 0 {
		rec.connected = true
		return rec
	}
	time.AfterFunc(c.connectDelay, func() {
		if err := rec.setConnected(true); err != nil {
			c.log.Debug("Record connection dropped", "pv", name, "error", err)
		}
	})
	return rec
}

type eventKind int

const (
	valueEvent eventKind = iota
	connEvent
	accessEvent
)

type recordEvent struct {
	kind      eventKind
	md        pv.Metadata
	connected bool
	target    *channel // target limits delivery to one channel, nil delivers to all.
}

// record is the remote side of a process variable.
type record struct {
	name   string
	events observer.Subject[recordEvent]

	emitMux   sync.Mutex // emitMux keeps event order consistent with state changes.
	mux       sync.RWMutex
	md        pv.Metadata
	connected bool
}

func newRecord(ctx context.Context, name string) *record {
	return &record{
		name:   name,
		events: observer.NewSubject(ctx, recordEvent{}),
		md: pv.Metadata{
			ReadAccess:  true,
			WriteAccess: true,
		},
	}
}

func (r *record) snapshot() (pv.Metadata, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.md.Clone(), r.connected
}

func (r *record) isConnected() bool {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.connected
}

// emitWith runs change, and publishes the resulting event if emit is true.
func (r *record) emitWith(change func() (ev recordEvent, emit bool)) error {
	r.emitMux.Lock()
	defer r.emitMux.Unlock()
	ev, emit := change()
	if !emit {
		return nil
	}
	if err := r.events.Set(ev); err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return nil
}

func (r *record) setConnected(connected bool) error {
	return r.emitWith(func() (recordEvent, bool) {
		r.mux.Lock()
		defer r.mux.Unlock()
		if r.connected == connected {
			return recordEvent{}, false
		}
		r.connected = connected
		return recordEvent{kind: connEvent, md: r.md.Clone(), connected: connected}, true
	})
}
