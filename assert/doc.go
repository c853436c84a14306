/*
Package assert provides support for collecting many possible errors into one.

A [Collector] may be shared by goroutines that report results concurrently, like workers being stopped in parallel.
*/
package assert
