package syncx

import (
	"context"
	"sync"
	"time"
)

// Future is a value that is resolved asynchronously at a later time, possibly with an error.
// Once resolved, the result is cached for every call to Await.
type Future[T any] interface {
	// Resolve sets the value of the [Future] so it can be resolved by consumers.
	// Only the first call to Resolve or ResolveErr will set the result. Subsequent calls do nothing.
	Resolve(T)
	// ResolveErr sets the value and error of the [Future].
	ResolveErr(T, error)
	// Await blocks until the value is made available, or until the timeout elapses if specified.
	// If the timeout limit is reached, then the zero value is returned along with [context.DeadlineExceeded].
	Await(...time.Duration) (T, error)
	// AwaitCtx is the same as Await, but waiting ends when ctx is done.
	AwaitCtx(ctx context.Context) (T, error)
	// Resolved reports whether a result has been set.
	Resolved() bool
}

func NewFuture[T any]() Future[T] {
	return &future[T]{
		done: make(chan struct{}),
	}
}

// StaticFuture returns a [Future] that is already resolved.
func StaticFuture[T any](val T, err error) Future[T] {
	f := NewFuture[T]()
	f.ResolveErr(val, err)
	return f
}

type future[T any] struct {
	resolve sync.Once
	done    chan struct{}
	val     T
	err     error
}

func (f *future[T]) Resolve(val T) {
	f.ResolveErr(val, nil)
}

func (f *future[T]) ResolveErr(val T, err error) {
	f.resolve.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

func (f *future[T]) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *future[T]) Await(timeout ...time.Duration) (T, error) {
	var (
		ctx    = context.Background()
		cancel = func() {}
	)
	if len(timeout) > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout[0])
	}
	defer cancel()
	return f.AwaitCtx(ctx)
}

func (f *future[T]) AwaitCtx(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
