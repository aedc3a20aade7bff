// File: internal/concurrency/executor.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across worker goroutines. Each worker owns a
// lock-free local queue; Submit picks one round-robin and falls back to a
// shared channel when it is full. Idle workers steal from their siblings
// before parking on the shared channel.

package concurrency

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const localQueueSize = 1024

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger used for recovered task panics.
func WithExecutorLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithPinnedWorkers pins worker i to CPU (first+i) % NumCPU.
func WithPinnedWorkers(first int) ExecutorOption {
	return func(e *Executor) { e.pinFrom = first }
}

// Executor manages a pool of worker goroutines.
type Executor struct {
	globalQueue chan TaskFunc
	workers     []*worker
	closeCh     chan struct{}
	stopped     chan struct{}
	closed      atomic.Bool
	next        atomic.Uint64
	wg          sync.WaitGroup
	log         *zap.Logger
	pinFrom     int

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
}

// NewExecutor creates a new Executor with the given number of workers.
// If numWorkers <= 0, defaults to runtime.NumCPU().
func NewExecutor(numWorkers int, opts ...ExecutorOption) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		globalQueue: make(chan TaskFunc, numWorkers*4),
		closeCh:     make(chan struct{}),
		stopped:     make(chan struct{}),
		log:         zap.NewNop(),
		pinFrom:     -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.workers = make([]*worker, numWorkers)
	for i := range e.workers {
		e.workers[i] = &worker{
			id:       i,
			executor: e,
			local:    NewLockFreeQueue[TaskFunc](localQueueSize),
			wake:     make(chan struct{}, 1),
		}
	}
	for _, w := range e.workers {
		e.wg.Add(1)
		go w.run()
	}
	return e
}

// Submit enqueues a task. It blocks only when every local queue and the
// shared channel are full. Returns ErrExecutorClosed after Close.
func (e *Executor) Submit(task func()) error {
	if task == nil {
		return nil
	}
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	e.submitted.Add(1)
	w := e.workers[e.next.Add(1)%uint64(len(e.workers))]
	if w.local.Enqueue(task) {
		w.notify()
		return nil
	}
	select {
	case e.globalQueue <- task:
		return nil
	case <-e.closeCh:
		e.submitted.Add(-1)
		return ErrExecutorClosed
	}
}

// NumWorkers returns active worker count.
func (e *Executor) NumWorkers() int {
	return len(e.workers)
}

// Close shuts down the executor, waiting for workers to finish the task
// each is currently running. Queued tasks are dropped.
func (e *Executor) Close() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.closeCh)
		e.wg.Wait()
		close(e.stopped)
	}
}

// Done is closed after Close once every worker has exited.
func (e *Executor) Done() <-chan struct{} { return e.stopped }

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	submitted := e.submitted.Load()
	completed := e.completed.Load()
	return map[string]int64{
		"submitted_tasks": submitted,
		"completed_tasks": completed,
		"pending_tasks":   submitted - completed,
		"panicked_tasks":  e.panicked.Load(),
		"num_workers":     int64(e.NumWorkers()),
	}
}

type worker struct {
	id       int
	executor *Executor
	local    *LockFreeQueue[TaskFunc]
	wake     chan struct{}
}

func (w *worker) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) run() {
	e := w.executor
	defer e.wg.Done()
	if e.pinFrom >= 0 {
		cpu := (e.pinFrom + w.id) % runtime.NumCPU()
		if err := PinCurrentThread(cpu); err != nil {
			e.log.Warn("executor: pin worker failed", zap.Int("worker", w.id), zap.Int("cpu", cpu), zap.Error(err))
		}
		// stays locked: the pinned thread is discarded when the worker exits
	}
	for {
		if task, ok := w.take(); ok {
			w.safeExecute(task)
			continue
		}
		select {
		case <-e.closeCh:
			return
		case task := <-e.globalQueue:
			w.safeExecute(task)
		case <-w.wake:
		}
	}
}

// take tries the local queue first, then steals from the other workers.
func (w *worker) take() (TaskFunc, bool) {
	if task, ok := w.local.Dequeue(); ok {
		return task, true
	}
	workers := w.executor.workers
	for i := 1; i < len(workers); i++ {
		victim := workers[(w.id+i)%len(workers)]
		if task, ok := victim.local.Dequeue(); ok {
			return task, true
		}
	}
	return nil, false
}

func (w *worker) safeExecute(task TaskFunc) {
	e := w.executor
	defer func() {
		if r := recover(); r != nil {
			e.panicked.Add(1)
			e.log.Error("executor: task panicked",
				zap.Int("worker", w.id),
				zap.String("panic", fmt.Sprint(r)),
				zap.ByteString("stack", debug.Stack()))
		}
		e.completed.Add(1)
	}()
	task()
}
