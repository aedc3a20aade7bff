// File: fiber/thread.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ThreadFiber drains its queue on a dedicated goroutine. The loop takes
// whole batches and parks on the queue signal when idle.

package fiber

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/concurrency"
)

var _ api.Fiber = (*ThreadFiber)(nil)

// ThreadFiber is a fiber backed by its own goroutine.
type ThreadFiber struct {
	*core
	quit chan struct{}
}

// NewThreadFiber creates a fiber in the Created state.
func NewThreadFiber(opts ...Option) *ThreadFiber {
	f := &ThreadFiber{quit: make(chan struct{})}
	f.core = newCore(f, opts)
	return f
}

// Enqueue appends task to the fiber queue.
func (f *ThreadFiber) Enqueue(task func()) error {
	return f.enqueue(task)
}

// Start launches the backing goroutine.
func (f *ThreadFiber) Start() error {
	return f.start(func() { go f.run() })
}

// Stop is terminal; see the package documentation.
func (f *ThreadFiber) Stop() error {
	prev, first, err := f.stop()
	if !first {
		return nil
	}
	close(f.quit)
	if prev != api.StateRunning {
		f.closeDone()
	}
	return err
}

func (f *ThreadFiber) run() {
	defer f.closeDone()
	if f.lockThread {
		if err := concurrency.PinCurrentThread(f.pinCPU); err != nil {
			f.log.Warn("fiber: pin failed", zap.Int("cpu", f.pinCPU), zap.Error(err))
		}
		// A thread with narrowed affinity exits with the goroutine instead
		// of going back to the runtime.
		if f.pinCPU < 0 {
			defer concurrency.UnpinCurrentThread()
		}
	}

	batch := make([]concurrency.TaskFunc, 0, f.batchSize)
	for {
		batch = f.queue.Drain(batch[:0], f.batchSize)
		if len(batch) > 0 {
			f.execute(batch)
			continue
		}
		select {
		case <-f.queue.Signal():
		case <-f.quit:
			return
		}
	}
}
