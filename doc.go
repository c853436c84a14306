/*
Package pvdispatch keeps control-system client libraries and application callbacks out of each other's way.
Client libraries deliver notifications on their own goroutines, and user code that blocks or panics there stalls everything the library does.

The dispatch package moves every notification onto a worker dedicated to its category, and the pv package wraps a client's channels so that every callback they accept goes through it.
The sim package provides an in-memory client for tests and for the pvdispatch command, which drives simulated process variables and reports per-category stats.

The supporting packages follow the naming of the standard packages they extend, like slogx and syncx.
*/
package pvdispatch
