// Package api
// Author: momentics
//
// Executor contract for parallel task dispatch backing pooled fibers.

package api

// Executor abstracts parallel task execution. Pooled fibers submit their
// queue flushes here; the executor itself gives no ordering guarantee.
type Executor interface {
	// Submit schedules task for execution.
	Submit(task func()) error

	// NumWorkers returns current number of active worker routines.
	NumWorkers() int

	// Close stops the workers. Tasks still queued are dropped.
	Close()

	// Done is closed once Close has returned and no worker runs a task.
	Done() <-chan struct{}
}
