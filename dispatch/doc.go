/*
Package dispatch moves asynchronous notifications off the goroutines of a control-system client library, and onto workers owned by the application.

# Design Priorities

  - Client library goroutines must never run, or wait for, user code. Dispatching a callback only enqueues it.
  - Callbacks of the same [Category] run one at a time, in the order they were dispatched, even when dispatched from many goroutines.
  - Categories are independent. A slow monitor callback doesn't hold up connection state changes.
  - A failing callback is logged and reported, but never stops its [Worker] or reaches the client library.

# Primitives

Every notification is classified into a [Category], like [CategoryMetadata], [CategoryMonitor], or [CategoryGetPut].
A [Dispatcher] owns one [Worker] per [Category], and each [Worker] runs a single execution thread created by a [ThreadFactory].

A [WorkItem] is a [Callback] along with the [Param] values captured when it was dispatched.
A [Param] may be any type, and [ParamSpec] may be used to assert the expected parameters in a [Callback].

# Wrapping Callbacks

Client libraries accept callbacks and call them from their own goroutines.
Use [Wrap] or [WrapFunc] to turn a user callback into one that only enqueues, and pass the result to the library instead.
Wrapping a nil callback returns nil, so the library still sees that no callback is registered.

# Lifecycle

[New] starts every [Worker] before returning.
[Dispatcher.Stop] refuses new callbacks with [ErrDispatcherStopped], lets each [Worker] drain its queue within the stop timeout,
and discards what's left after the timeout elapses, reporting [ErrShutdownTimeout].

For the usual single dispatcher per process, use [Setup], [Teardown], and [InstallExitHook].
Tests and special cases may still create independent instances with [New].

# Queue Capacity

Queues are unbounded by default.
[WithQueueCapacity] bounds them, so that a persistently slow [Worker] eventually blocks the client goroutines that dispatch to it.
Don't dispatch from a [Callback] to its own [Category] with a bounded queue, since a full queue would then wait on itself.
*/
package dispatch
