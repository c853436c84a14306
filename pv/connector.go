package pv

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/saylorsolutions/pvdispatch/dispatch"
	"github.com/saylorsolutions/pvdispatch/slogx"
	"github.com/saylorsolutions/pvdispatch/structures/set"
	"log/slog"
	"time"
)

// DefaultConnectTimeout is used by [Connector.GetPV] when waiting for a connection without a timeout.
const DefaultConnectTimeout = 5 * time.Second

var requiredCategories = []dispatch.Category{
	dispatch.CategoryMetadata,
	dispatch.CategoryMonitor,
	dispatch.CategoryGetPut,
}

// Connector creates [Handle] instances that route every callback through a [dispatch.Dispatcher].
type Connector struct {
	client Client
	d      *dispatch.Dispatcher
	log    *slog.Logger
}

// NewConnector creates a [Connector] for client using d.
// The dispatcher must support the metadata, monitor, and get_put categories.
func NewConnector(client Client, d *dispatch.Dispatcher, log *slog.Logger) (*Connector, error) {
	if client == nil {
		return nil, errors.New("nil client")
	}
	if d == nil {
		return nil, errors.New("nil dispatcher")
	}
	if missing := set.New(d.Categories()...).Missing(requiredCategories...); len(missing) > 0 {
		return nil, fmt.Errorf("dispatcher can't serve handles: %w %v", dispatch.ErrUnknownCategory, missing)
	}
	return &Connector{
		client: client,
		d:      d,
		log:    slogx.OrDiscard(log),
	}, nil
}

// Setup creates or reuses the process-wide dispatcher with client's context, and returns a [Connector] for it.
func Setup(log *slog.Logger, client Client, opts ...dispatch.Option) (*Connector, error) {
	if client == nil {
		return nil, errors.New("nil client")
	}
	d, err := dispatch.Setup(log, append([]dispatch.Option{dispatch.WithContext(client.Context())}, opts...)...)
	if err != nil {
		return nil, err
	}
	return NewConnector(client, d, log)
}

func (c *Connector) Dispatcher() *dispatch.Dispatcher {
	return c.d
}

// Connect creates a [Handle] for name.
// Connection and access callbacks run on the metadata worker, and the monitor callback on the monitor worker.
func (c *Connector) Connect(name string, opts ConnectOptions) (*Handle, error) {
	opts.ConnectionCallback = dispatch.WrapFunc(c.d, dispatch.CategoryMetadata, opts.ConnectionCallback)
	opts.AccessCallback = dispatch.WrapFunc(c.d, dispatch.CategoryMetadata, opts.AccessCallback)
	opts.MonitorCallback = dispatch.WrapFunc(c.d, dispatch.CategoryMonitor, opts.MonitorCallback)
	ch, err := c.client.Connect(name, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect '%s': %w", name, err)
	}
	h := &Handle{
		Channel: ch,
		id:      uuid.NewString(),
		d:       c.d,
	}
	h.log = c.log.With("pv", name, "handle", h.id)
	h.log.Debug("Created handle")
	return h, nil
}

type GetPVOptions struct {
	ConnectOptions
	Connect bool          // Connect waits for the connection to be established.
	Timeout time.Duration // Timeout limits the connection wait, defaulting to DefaultConnectTimeout.
}

// GetPV creates a [Handle] for name, optionally waiting for it to connect.
// If the wait fails, then the handle is released and disconnected, and the error is returned.
func (c *Connector) GetPV(ctx context.Context, name string, opts GetPVOptions) (*Handle, error) {
	h, err := c.Connect(name, opts.ConnectOptions)
	if err != nil {
		return nil, err
	}
	if !opts.Connect {
		return h, nil
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	if err := h.WaitForConnection(ctx, timeout); err != nil {
		Release(h)
		if dcErr := h.Disconnect(); dcErr != nil {
			h.log.Warn("Failed to disconnect after connection wait failed", "error", dcErr)
		}
		return nil, err
	}
	return h, nil
}
