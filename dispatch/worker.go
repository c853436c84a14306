package dispatch

import (
	"errors"
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/saylorsolutions/pvdispatch/structures/queue"
	"github.com/saylorsolutions/pvdispatch/syncx"
	"log/slog"
	"reflect"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Callback is user code that runs on a [Worker].
// A returned error is logged and reported, but never stops the [Worker].
type Callback func(params ...Param) error

// CallbackName returns a readable identity for a callback function, used in logs and errors.
func CallbackName(fn any) string {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return fmt.Sprintf("%T", fn)
	}
	if f := runtime.FuncForPC(rv.Pointer()); f != nil {
		return f.Name()
	}
	return fmt.Sprintf("%T", fn)
}

// WorkItem is a callback and the arguments captured when it was dispatched.
// Category, Seq, and Enqueued are set by the [Worker] when the item is accepted.
type WorkItem struct {
	Category Category
	Callback Callback
	Name     string
	Params   []Param
	Seq      uint64
	Enqueued time.Time
}

// WorkerStats is a point-in-time view of a [Worker].
type WorkerStats struct {
	Category Category
	Alive    bool
	QueueLen int
	Enqueued uint64 // Enqueued counts accepted work items.
	Executed uint64 // Executed counts work items that ran, whether they failed or not.
	Failed   uint64 // Failed counts work items that returned an error or panicked.
	Dropped  uint64 // Dropped counts accepted work items discarded by a forced stop.
	Rejected uint64 // Rejected counts enqueue attempts after stopping began.
}

// Worker executes work items for exactly one [Category], one at a time, in the order they were enqueued.
type Worker struct {
	category  Category
	items     *queue.Queue[WorkItem]
	log       *slog.Logger
	onError   ErrorHandler
	clientCtx any
	latency   prometheus.Observer

	seq       uint64 // Only touched while the queue is locked.
	alive     atomic.Bool
	stopping  atomic.Bool
	cancelled atomic.Bool
	done      chan struct{}
	stopOnce  sync.Once
	stopErr   error

	enqueued atomic.Uint64
	executed atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
	rejected atomic.Uint64
}

type workerConf struct {
	capacity  int
	log       *slog.Logger
	onError   ErrorHandler
	clientCtx any
	latency   prometheus.Observer
}

func newWorker(category Category, conf workerConf) *Worker {
	return &Worker{
		category:  category,
		items:     queue.NewQueue[WorkItem](conf.capacity),
		log:       conf.log.With("category", string(category)),
		onError:   conf.onError,
		clientCtx: conf.clientCtx,
		latency:   conf.latency,
		done:      make(chan struct{}),
	}
}

func (w *Worker) start(threads ThreadFactory) {
	w.alive.Store(true)
	threads(w.category, w.run)
}

// Category returns the [Category] this Worker serves.
func (w *Worker) Category() Category {
	return w.category
}

// Enqueue accepts a [WorkItem] for execution.
// It only blocks if the queue is bounded and full.
// [ErrDispatcherStopped] is returned once the Worker has begun stopping.
func (w *Worker) Enqueue(item WorkItem) error {
	if item.Callback == nil {
		return nil
	}
	if w.stopping.Load() {
		w.rejected.Add(1)
		return fmt.Errorf("%w: category '%s'", ErrDispatcherStopped, w.category)
	}
	if len(item.Name) == 0 {
		item.Name = CallbackName(item.Callback)
	}
	err := w.items.PushFunc(func() WorkItem {
		w.seq++
		item.Seq = w.seq
		item.Category = w.category
		if item.Enqueued.IsZero() {
			item.Enqueued = time.Now()
		}
		return item
	})
	if err != nil {
		w.rejected.Add(1)
		if errors.Is(err, queue.ErrClosed) {
			return fmt.Errorf("%w: category '%s'", ErrDispatcherStopped, w.category)
		}
		return err
	}
	w.enqueued.Add(1)
	return nil
}

// IsAlive reports whether the Worker's execution thread is running.
func (w *Worker) IsAlive() bool {
	return w.alive.Load()
}

// Done is closed when the Worker's execution thread exits.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// QueueLen returns the number of work items waiting to execute.
func (w *Worker) QueueLen() int {
	return w.items.Len()
}

func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Category: w.category,
		Alive:    w.alive.Load(),
		QueueLen: w.items.Len(),
		Enqueued: w.enqueued.Load(),
		Executed: w.executed.Load(),
		Failed:   w.failed.Load(),
		Dropped:  w.dropped.Load(),
		Rejected: w.rejected.Load(),
	}
}

// Stop refuses new work, and waits up to timeout for already queued work to finish.
// A timeout <= 0 waits until the queue is drained.
//
// If the timeout elapses, then remaining work items are discarded and an error wrapping [ErrShutdownTimeout] is returned.
// A callback that's already running can't be interrupted, so the Worker may remain alive until it returns.
// Only the first call has any effect, later calls return the same result.
func (w *Worker) Stop(timeout time.Duration) error {
	w.stopOnce.Do(func() {
		w.stopErr = w.stop(timeout)
	})
	return w.stopErr
}

func (w *Worker) stop(timeout time.Duration) error {
	w.stopping.Store(true)
	w.items.Close()
	if syncx.AwaitClosed(w.done, timeout) {
		return nil
	}
	w.cancelled.Store(true)
	dropped := w.items.Drain()
	w.dropped.Add(uint64(dropped))
	w.log.Warn("Callback worker did not stop in time, discarding queued callbacks", "timeout", timeout, "dropped", dropped)
	return fmt.Errorf("%w: category '%s' after %s, %d queued callbacks dropped", ErrShutdownTimeout, w.category, timeout, dropped)
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.alive.Store(false)
	if attacher, ok := w.clientCtx.(ContextAttacher); ok {
		if err := attacher.AttachWorker(w.category); err != nil {
			w.log.Error("Failed to attach callback worker to client context", "error", err)
		} else {
			defer attacher.DetachWorker(w.category)
		}
	}
	w.log.Debug("Callback worker started")
	for {
		item, ok := w.items.Pop()
		if !ok {
			w.log.Debug("Callback worker stopped")
			return
		}
		if w.cancelled.Load() {
			w.dropped.Add(1)
			continue
		}
		w.execute(item)
	}
}

func (w *Worker) execute(item WorkItem) {
	start := time.Now()
	cbErr := w.invoke(item)
	if w.latency != nil {
		w.latency.Observe(time.Since(start).Seconds())
	}
	w.executed.Add(1)
	if cbErr == nil {
		return
	}
	w.failed.Add(1)
	attrs := []any{
		"callback", item.Name,
		"seq", item.Seq,
		"params", summarizeParams(item.Params),
	}
	if cbErr.Panic != nil {
		attrs = append(attrs, "panic", cbErr.Panic, "stack", string(cbErr.Stack))
	} else {
		attrs = append(attrs, "error", cbErr.Err)
	}
	w.log.Error("Callback failed", attrs...)
	if w.onError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Error handler panicked", "panic", r)
		}
	}()
	w.onError(cbErr)
}

// invoke is the only place user code runs on the Worker.
func (w *Worker) invoke(item WorkItem) (cbErr *CallbackError) {
	defer func() {
		if r := recover(); r != nil {
			cbErr = &CallbackError{
				Category: item.Category,
				Callback: item.Name,
				Seq:      item.Seq,
				Params:   item.Params,
				Panic:    r,
				Stack:    debug.Stack(),
			}
		}
	}()
	if err := item.Callback(item.Params...); err != nil {
		return &CallbackError{
			Category: item.Category,
			Callback: item.Name,
			Seq:      item.Seq,
			Params:   item.Params,
			Err:      err,
		}
	}
	return nil
}
