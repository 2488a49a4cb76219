// Package loop implements the cooperative, single-threaded event loop the
// rendering runtime assumes.
//
// ARCHITECTURE:
//
// Single-Goroutine Task Loop:
// Every tree mutation (digests, event dispatch, timer callbacks) runs as a
// task on one goroutine. Tasks interleave but never run concurrently, so
// directives and components need no locks around the tree.
//
// Timer Integration:
// Loop.Clock wraps a clock.Clock so that timer callbacks are posted to the
// loop instead of running on the timer goroutine. A coalesced digest that
// fires 10ms later therefore executes between other tasks, never alongside.
//
// CRITICAL PATTERNS:
//
// FIFO Ordering:
// Tasks run in the order they were posted. A task posted by another task runs
// after everything already queued.
package loop
