package observer

import (
	"context"
	"errors"
	"github.com/saylorsolutions/pvdispatch/syncx"
	"slices"
	"sync"
)

var (
	ErrClosed = errors.New("subject is closed")
)

// Observer receives a new value from a [Subject] when it changes.
type Observer[T any] func(newVal T)

// Subject is a value that may be observed for changes.
//
// Observers are called one at a time, in the order values were set, on a goroutine owned by the Subject.
// Set never waits for observers, so they may call Get, Set, or Observe without deadlocking.
// A slow Observer delays every later notification.
type Subject[T any] interface {
	Get() T
	// Set queues a new value without waiting for it to be delivered, returning ErrClosed if the Subject's context is done.
	Set(newVal T) error
	// Observe registers obs, and returns a function that removes it again.
	Observe(obs Observer[T]) (unobserve func())
}

// NewSubject creates a [Subject] implementation with a context for cancellation.
// Once the context is cancelled, the [Subject] will no longer propagate changes.
func NewSubject[T any](ctx context.Context, val T) Subject[T] {
	sub := &subject[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		value:  val,
	}
	go sub.processChanges(ctx)
	return sub
}

type registration[T any] struct {
	id  uint64
	obs Observer[T]
}

type subject[T any] struct {
	notify chan struct{}
	done   chan struct{}

	pendingMux sync.Mutex
	pending    []T

	mux       sync.RWMutex
	value     T
	nextID    uint64
	observers []registration[T]
}

func (s *subject[T]) processChanges(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
			for {
				vals := syncx.LockFuncT(&s.pendingMux, func() []T {
					vals := s.pending
					s.pending = nil
					return vals
				})
				if len(vals) == 0 {
					break
				}
				for _, val := range vals {
					if ctx.Err() != nil {
						return
					}
					s.deliver(val)
				}
			}
		}
	}
}

func (s *subject[T]) deliver(val T) {
	observers := syncx.LockFuncT(&s.mux, func() []registration[T] {
		s.value = val
		return slices.Clone(s.observers)
	})
	for _, reg := range observers {
		reg.obs(val)
	}
}

func (s *subject[T]) Get() T {
	return syncx.RLockFuncT(&s.mux, func() T {
		return s.value
	})
}

func (s *subject[T]) Set(newVal T) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	syncx.LockFunc(&s.pendingMux, func() {
		s.pending = append(s.pending, newVal)
	})
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

func (s *subject[T]) Observe(obs Observer[T]) func() {
	if obs == nil {
		return func() {}
	}
	id := syncx.LockFuncT(&s.mux, func() uint64 {
		s.nextID++
		s.observers = append(s.observers, registration[T]{id: s.nextID, obs: obs})
		return s.nextID
	})
	return func() {
		syncx.LockFunc(&s.mux, func() {
			s.observers = slices.DeleteFunc(s.observers, func(reg registration[T]) bool {
				return reg.id == id
			})
		})
	}
}
