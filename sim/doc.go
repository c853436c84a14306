// Package sim is an in-memory [pv.Client] where every record delivers its callbacks on its own goroutine, like a real client library's I/O threads.
package sim
