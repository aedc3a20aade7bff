// File: fiber/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PoolFiber drains on a shared executor. A flush is submitted when work
// arrives and no flush is outstanding; the flush resubmits itself while
// the queue is non-empty, so one fiber never occupies two workers.
//
// The executor should outlive the fibers running on it. Once it closes,
// Enqueue reports the rejection; queued tasks stay until Stop discards
// them, and a stopped fiber whose flush was dropped releases Done when the
// executor's workers have exited.

package fiber

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/concurrency"
)

var _ api.Fiber = (*PoolFiber)(nil)

// PoolFiber is a fiber multiplexed onto an api.Executor.
type PoolFiber struct {
	*core
	exec      api.Executor
	scheduled atomic.Bool
	batch     []concurrency.TaskFunc
}

// NewPoolFiber creates a fiber in the Created state running on exec.
func NewPoolFiber(exec api.Executor, opts ...Option) *PoolFiber {
	f := &PoolFiber{exec: exec}
	f.core = newCore(f, opts)
	f.batch = make([]concurrency.TaskFunc, 0, f.batchSize)
	return f
}

// Enqueue appends task and makes sure a flush is on its way.
func (f *PoolFiber) Enqueue(task func()) error {
	if err := f.enqueue(task); err != nil {
		return err
	}
	if err := f.trySchedule(); err != nil {
		return fmt.Errorf("fiber %s: %w", f.name, err)
	}
	return nil
}

// Start drains whatever was queued before start.
func (f *PoolFiber) Start() error {
	if f.exec == nil {
		return api.NewError(api.ErrCodeInvalidArgument, "fiber: pool fiber without executor").WithContext("fiber", f.name)
	}
	return f.start(func() { _ = f.trySchedule() })
}

// Stop is terminal; see the package documentation.
func (f *PoolFiber) Stop() error {
	_, first, err := f.stop()
	if !first {
		return nil
	}
	if !f.scheduled.Load() {
		f.closeDone()
		return err
	}
	// the outstanding flush closes Done, unless the executor drops it
	go func() {
		select {
		case <-f.done:
		case <-f.exec.Done():
			f.closeDone()
		}
	}()
	return err
}

func (f *PoolFiber) trySchedule() error {
	if !f.Running() || !f.scheduled.CompareAndSwap(false, true) {
		return nil
	}
	err := f.exec.Submit(f.flush)
	if err == nil {
		return nil
	}
	f.scheduled.Store(false)
	f.log.Error("fiber: executor rejected flush", zap.Error(err))
	if f.State() == api.StateStopped {
		f.closeDone()
	}
	return err
}

func (f *PoolFiber) flush() {
	f.batch = f.queue.Drain(f.batch[:0], f.batchSize)
	f.execute(f.batch)
	f.scheduled.Store(false)
	if f.State() == api.StateStopped {
		f.closeDone()
		return
	}
	if f.queue.Len() > 0 {
		_ = f.trySchedule()
	}
}
