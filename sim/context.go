package sim

import (
	"github.com/saylorsolutions/pvdispatch/dispatch"
	"github.com/saylorsolutions/pvdispatch/structures/set"
	"sync"
)

var _ dispatch.ContextAttacher = (*Context)(nil)

// Context is the shared communication context of a [Client].
// Dispatcher workers attach to it, so it knows which threads may call back into the client.
type Context struct {
	mux      sync.Mutex
	closed   bool
	attached map[dispatch.Category]int
}

func (c *Context) AttachWorker(category dispatch.Category) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.attached == nil {
		c.attached = map[dispatch.Category]int{}
	}
	c.attached[category]++
	return nil
}

func (c *Context) DetachWorker(category dispatch.Category) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.attached[category] <= 1 {
		delete(c.attached, category)
		return
	}
	c.attached[category]--
}

// Attached returns the categories of attached workers, sorted by name.
func (c *Context) Attached() []dispatch.Category {
	c.mux.Lock()
	defer c.mux.Unlock()
	return set.FromKeys(c.attached).Sorted()
}

func (c *Context) close() {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.closed = true
}
