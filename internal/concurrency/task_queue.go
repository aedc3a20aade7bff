// File: internal/concurrency/task_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TaskQueue is the unbounded FIFO every fiber drains. Producers append
// under a short mutex into a growable ring (eapache/queue); the single
// consumer takes whole batches at once and is woken through a one-slot
// signal channel, so an idle fiber blocks instead of spinning.

package concurrency

import (
	"sync"

	"github.com/eapache/queue"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// TaskQueue is safe for many producers and one consumer.
type TaskQueue struct {
	mu     sync.Mutex
	items  *queue.Queue
	closed bool
	signal chan struct{}
}

// NewTaskQueue creates an empty open queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		items:  queue.New(),
		signal: make(chan struct{}, 1),
	}
}

// Put appends task. It returns false once the queue is closed.
func (q *TaskQueue) Put(task TaskFunc) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items.Add(task)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Drain moves up to max tasks (all of them when max <= 0) into dst and
// returns the extended slice. Order is preserved.
func (q *TaskQueue) Drain(dst []TaskFunc, max int) []TaskFunc {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.items.Length()
	if max > 0 && n > max {
		n = max
	}
	for i := 0; i < n; i++ {
		dst = append(dst, q.items.Remove().(TaskFunc))
	}
	return dst
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Signal fires (at most one pending notification) after every Put.
func (q *TaskQueue) Signal() <-chan struct{} {
	return q.signal
}

// Close rejects further Puts and discards what is queued. It returns the
// number of discarded tasks; a second call returns 0.
func (q *TaskQueue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0
	}
	q.closed = true
	n := q.items.Length()
	q.items = queue.New()
	return n
}

// Closed reports whether Close was called.
func (q *TaskQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
