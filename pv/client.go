package pv

import (
	"context"
	"errors"
)

var (
	ErrNotConnected      = errors.New("channel is not connected")
	ErrAccessDenied      = errors.New("access denied")
	ErrConnectionTimeout = errors.New("timed out waiting for connection")
)

// Client is the part of a control-system client library that a [Connector] needs.
// Implementations deliver callbacks on their own internal goroutines.
type Client interface {
	// Context returns the client's shared communication context.
	// If it implements dispatch.ContextAttacher, then dispatcher workers attach to it.
	Context() any
	// Connect creates a Channel for the named process variable.
	// Connecting is asynchronous, the connection callback reports when it's established.
	Connect(name string, opts ConnectOptions) (Channel, error)
}

// Channel is a client library's connection to one named remote value.
type Channel interface {
	Name() string
	Connected() bool
	// Get reads the current value, which is nil if the remote has no value yet.
	// With UseMonitor, the value buffered by the automatic monitor may be returned instead of reading from the remote.
	Get(ctx context.Context, opts GetOptions) (any, error)
	// Put writes value. If opts.Callback is set, it's called by the library once the write completes.
	Put(ctx context.Context, value any, opts PutOptions) error
	// AddCallback registers a monitor callback and returns its index.
	AddCallback(cb MonitorCallback) int
	RemoveCallback(index int)
	ClearCallbacks()
	// Metadata returns a copy of the buffered metadata, which includes the last value seen.
	Metadata() Metadata
	// RefreshTimeVars reads status, severity, and timestamp from the remote into the buffered metadata.
	RefreshTimeVars(ctx context.Context) error
	// RefreshCtrlVars reads units, precision, limits, and enum strings from the remote into the buffered metadata.
	RefreshCtrlVars(ctx context.Context) error
	// DetachAutoMonitor stops buffering values from the automatic monitor, and hands over its subscription.
	// Nil is returned if there is no automatic monitor.
	DetachAutoMonitor() Subscription
	Disconnect() error
}

// Subscription is a standing monitor on a remote value.
type Subscription interface {
	ID() string
	// Clear cancels the subscription. It's safe to call more than once.
	Clear()
}

type ConnectOptions struct {
	ConnectionCallback ConnectionCallback
	AccessCallback     AccessCallback
	MonitorCallback    MonitorCallback
	NoAutoMonitor      bool // NoAutoMonitor disables the automatic monitor that buffers value updates.
}

type GetOptions struct {
	UseMonitor   bool // UseMonitor allows returning the value buffered by the automatic monitor.
	WithCtrlVars bool // WithCtrlVars also refreshes control variables.
}

type PutOptions struct {
	Wait     bool        // Wait blocks Put until the write completes or ctx is done.
	Callback PutCallback // Callback is called when the write completes.
}
