package dispatch

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/saylorsolutions/pvdispatch/assert"
	"github.com/saylorsolutions/pvdispatch/slogx"
	"github.com/saylorsolutions/pvdispatch/syncx"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher owns one [Worker] per [Category] and routes dispatched callbacks to them.
// Workers are started by [New], and stopped with [Dispatcher.Stop].
//
// The category to worker mapping never changes after construction, so lookups need no locking.
type Dispatcher struct {
	id         string
	conf       dispatcherConf
	log        *slog.Logger
	categories []Category
	workers    map[Category]*Worker
	collector  *collector
	state      atomic.Int32
	stopMux    sync.Mutex
	dropLog    *rate.Limiter

	timerMux sync.Mutex
	timers   map[*time.Timer]struct{}
}

// New creates a [Dispatcher] and starts a [Worker] for each configured [Category].
func New(opts ...Option) (*Dispatcher, error) {
	conf := defaultConf()
	for _, opt := range opts {
		if err := opt(&conf); err != nil {
			return nil, err
		}
	}
	if err := validateCategories(conf.categories); err != nil {
		return nil, err
	}
	d := &Dispatcher{
		id:         uuid.NewString(),
		conf:       conf,
		categories: conf.categories,
		workers:    make(map[Category]*Worker, len(conf.categories)),
		timers:     map[*time.Timer]struct{}{},
		dropLog:    rate.NewLimiter(rate.Every(time.Second), 5),
	}
	d.log = slogx.OrDiscard(conf.log).With("dispatcher", d.id)
	d.collector = newCollector(d)
	for _, cat := range d.categories {
		d.workers[cat] = newWorker(cat, workerConf{
			capacity:  conf.queueCapacity,
			log:       d.log,
			onError:   conf.onError,
			clientCtx: conf.clientCtx,
			latency:   d.collector.observer(cat),
		})
	}
	if conf.registerer != nil {
		if err := conf.registerer.Register(d.collector); err != nil {
			return nil, fmt.Errorf("failed to register dispatcher metrics: %w", err)
		}
	}
	for _, cat := range d.categories {
		d.workers[cat].start(conf.threads)
	}
	d.state.Store(int32(StateRunning))
	d.log.Debug("Event dispatcher started", "categories", d.categories, "queue_capacity", conf.queueCapacity)
	return d, nil
}

// ID is a unique identifier for this Dispatcher, used in logs and metrics.
func (d *Dispatcher) ID() string {
	return d.id
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Categories returns the categories this Dispatcher supports, in configuration order.
func (d *Dispatcher) Categories() []Category {
	return slices.Clone(d.categories)
}

// Supports reports whether cat is one of the Dispatcher's categories.
func (d *Dispatcher) Supports(cat Category) bool {
	_, ok := d.workers[cat]
	return ok
}

// Worker returns the [Worker] for cat.
func (d *Dispatcher) Worker(cat Category) (*Worker, error) {
	w, ok := d.workers[cat]
	if !ok {
		return nil, unknownCategory(cat)
	}
	return w, nil
}

// Context returns the client context given with [WithContext].
func (d *Dispatcher) Context() any {
	return d.conf.clientCtx
}

// Logger returns the logger used by the Dispatcher.
func (d *Dispatcher) Logger() *slog.Logger {
	return d.log
}

// Dispatch enqueues cb with params on the [Worker] for category, and returns without waiting for it to run.
// A nil cb is a no-op.
//
// An error wrapping [ErrUnknownCategory] is returned if the category isn't supported,
// and an error wrapping [ErrDispatcherStopped] is returned if stopping has begun.
func (d *Dispatcher) Dispatch(category Category, cb Callback, params ...Param) error {
	if cb == nil {
		return nil
	}
	return d.dispatch(category, CallbackName(cb), cb, params)
}

func (d *Dispatcher) dispatch(category Category, name string, cb Callback, params []Param) error {
	w, ok := d.workers[category]
	if !ok {
		return unknownCategory(category)
	}
	return w.Enqueue(WorkItem{
		Callback: cb,
		Name:     name,
		Params:   params,
	})
}

// deliver is used by wrapped callbacks, which have no caller to report to.
func (d *Dispatcher) deliver(category Category, name string, cb Callback, params []Param) {
	err := d.dispatch(category, name, cb, params)
	switch {
	case err == nil:
	case errors.Is(err, ErrDispatcherStopped):
		d.logDropped(category, name, err)
	default:
		panic(err)
	}
}

func (d *Dispatcher) logDropped(category Category, name string, err error) {
	if !d.dropLog.Allow() {
		return
	}
	d.log.Warn("Dropping notification", "category", string(category), "callback", name, "error", err)
}

// ScheduleUtilityTask runs cb on the [CategoryUtility] worker after delay.
// The delay is measured before enqueueing, so the task still waits behind anything already queued.
// Tasks still waiting for their delay when [Dispatcher.Stop] is called are cancelled without running.
func (d *Dispatcher) ScheduleUtilityTask(delay time.Duration, cb Callback, params ...Param) error {
	if !d.Supports(CategoryUtility) {
		return unknownCategory(CategoryUtility)
	}
	if cb == nil {
		return nil
	}
	if delay <= 0 {
		return d.Dispatch(CategoryUtility, cb, params...)
	}
	d.timerMux.Lock()
	defer d.timerMux.Unlock()
	if d.State() >= StateStopping {
		return fmt.Errorf("%w: category '%s'", ErrDispatcherStopped, CategoryUtility)
	}
	name := CallbackName(cb)
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		syncx.LockFunc(&d.timerMux, func() {
			delete(d.timers, timer)
		})
		d.deliver(CategoryUtility, name, cb, params)
	})
	d.timers[timer] = struct{}{}
	return nil
}

// Must be called once the state is at least StateStopping.
func (d *Dispatcher) cancelUtilityTasks() {
	d.timerMux.Lock()
	defer d.timerMux.Unlock()
	var cancelled int
	for timer := range d.timers {
		if timer.Stop() {
			cancelled++
		}
		delete(d.timers, timer)
	}
	if cancelled > 0 {
		d.log.Debug("Cancelled pending utility tasks", "count", cancelled)
	}
}

// IsAlive is true if at least one [Worker] is still running.
func (d *Dispatcher) IsAlive() bool {
	for _, w := range d.workers {
		if w.IsAlive() {
			return true
		}
	}
	return false
}

// QueueLens returns the number of callbacks waiting in each category queue.
func (d *Dispatcher) QueueLens() map[Category]int {
	lens := make(map[Category]int, len(d.workers))
	for cat, w := range d.workers {
		lens[cat] = w.QueueLen()
	}
	return lens
}

// Stats returns [WorkerStats] for every category, in configuration order.
func (d *Dispatcher) Stats() []WorkerStats {
	stats := make([]WorkerStats, len(d.categories))
	for i, cat := range d.categories {
		stats[i] = d.workers[cat].Stats()
	}
	return stats
}

// Stop refuses new callbacks, and stops every [Worker] in parallel, letting each drain its queue.
// Workers that don't finish within the configured stop timeout have their remaining callbacks discarded,
// and the returned error wraps [ErrShutdownTimeout] for each of them.
//
// Stop is safe to call more than once. Calling Stop on a stopped Dispatcher returns nil immediately.
// Calling Stop from a callback running on one of the Dispatcher's workers will wait for the stop timeout on that worker.
func (d *Dispatcher) Stop() error {
	d.stopMux.Lock()
	defer d.stopMux.Unlock()
	if d.State() == StateStopped {
		return nil
	}
	d.state.Store(int32(StateStopping))
	d.log.Debug("Stopping event dispatcher", "timeout", d.conf.stopTimeout)
	d.cancelUtilityTasks()

	var (
		group errgroup.Group
		errs  = assert.CollectErrors("; ")
	)
	for _, w := range d.workers {
		group.Go(func() error {
			errs.Add(w.Stop(d.conf.stopTimeout))
			return nil
		})
	}
	_ = group.Wait()

	if d.conf.registerer != nil {
		d.conf.registerer.Unregister(d.collector)
	}
	d.state.Store(int32(StateStopped))
	if err := errs.Result(); err != nil {
		d.log.Warn("Event dispatcher stopped with errors", "error", err)
		return err
	}
	d.log.Debug("Event dispatcher stopped")
	return nil
}
