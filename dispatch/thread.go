package dispatch

import (
	"runtime"
)

// ThreadFactory starts run on a new execution thread dedicated to category.
// It must not call run synchronously, since [New] starts every worker before returning.
type ThreadFactory func(category Category, run func())

// GoroutineThreads runs each worker on its own goroutine.
// This is the default [ThreadFactory].
func GoroutineThreads(_ Category, run func()) {
	go run()
}

// LockedOSThreads runs each worker on a goroutine locked to its own OS thread.
// Use this when the client library keeps per-thread state that callbacks depend on.
func LockedOSThreads(_ Category, run func()) {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		run()
	}()
}

// ContextAttacher may be implemented by the client's shared communication context.
// When it is, each worker attaches before executing any callback and detaches when it exits.
type ContextAttacher interface {
	AttachWorker(category Category) error
	DetachWorker(category Category)
}
