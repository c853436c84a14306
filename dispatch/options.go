package dispatch

import (
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"log/slog"
	"time"
)

var (
	// DefaultStopTimeout is how long each [Worker] is given to drain its queue in [Dispatcher.Stop].
	DefaultStopTimeout = 5 * time.Second
)

type dispatcherConf struct {
	categories    []Category
	threads       ThreadFactory
	clientCtx     any
	log           *slog.Logger
	queueCapacity int
	stopTimeout   time.Duration
	registerer    prometheus.Registerer
	onError       ErrorHandler
}

func defaultConf() dispatcherConf {
	return dispatcherConf{
		categories:  DefaultCategories(),
		threads:     GoroutineThreads,
		stopTimeout: DefaultStopTimeout,
	}
}

// Option configures a [Dispatcher] in [New].
type Option func(conf *dispatcherConf) error

// WithCategories sets the fixed set of categories the [Dispatcher] supports.
func WithCategories(categories ...Category) Option {
	return func(conf *dispatcherConf) error {
		if err := validateCategories(categories); err != nil {
			return err
		}
		conf.categories = append([]Category(nil), categories...)
		return nil
	}
}

// WithThreadFactory sets how worker execution threads are created.
func WithThreadFactory(threads ThreadFactory) Option {
	return func(conf *dispatcherConf) error {
		if threads == nil {
			return fmt.Errorf("%w: nil thread factory", ErrInvalidConfig)
		}
		conf.threads = threads
		return nil
	}
}

// WithContext gives workers a reference to the client's shared communication context.
// If it implements [ContextAttacher], then each worker attaches to it.
func WithContext(clientCtx any) Option {
	return func(conf *dispatcherConf) error {
		conf.clientCtx = clientCtx
		return nil
	}
}

// WithLogger sets the logger sink. A nil logger discards output.
func WithLogger(log *slog.Logger) Option {
	return func(conf *dispatcherConf) error {
		conf.log = log
		return nil
	}
}

// WithQueueCapacity bounds each category queue, so that producers block when a worker falls behind.
// A capacity of 0 leaves queues unbounded, which is the default.
func WithQueueCapacity(capacity int) Option {
	return func(conf *dispatcherConf) error {
		if capacity < 0 {
			return fmt.Errorf("%w: invalid queue capacity '%d'", ErrInvalidConfig, capacity)
		}
		conf.queueCapacity = capacity
		return nil
	}
}

// WithStopTimeout sets how long [Dispatcher.Stop] waits for each worker to drain.
// A timeout <= 0 waits indefinitely.
func WithStopTimeout(timeout time.Duration) Option {
	return func(conf *dispatcherConf) error {
		conf.stopTimeout = timeout
		return nil
	}
}

// WithRegisterer registers dispatcher metrics with reg for the lifetime of the [Dispatcher].
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(conf *dispatcherConf) error {
		conf.registerer = reg
		return nil
	}
}

// WithErrorHandler sets a function that's called for every failed callback.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(conf *dispatcherConf) error {
		conf.onError = handler
		return nil
	}
}
