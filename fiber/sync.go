// File: fiber/sync.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SyncFiber drains on the goroutine that submits work. Re-entrant
// submissions (a task enqueueing onto its own fiber) and concurrent
// submissions are appended and picked up by whichever goroutine is
// already draining, so tasks never overlap.

package fiber

import (
	"sync"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/concurrency"
)

var _ api.Fiber = (*SyncFiber)(nil)

// SyncFiber is a deterministic fiber for tests and tooling. Timer actions
// run on the timer service goroutine.
type SyncFiber struct {
	*core
	drainMu  sync.Mutex
	draining bool
}

// NewSyncFiber creates a fiber in the Created state.
func NewSyncFiber(opts ...Option) *SyncFiber {
	f := &SyncFiber{}
	f.core = newCore(f, opts)
	return f
}

// Enqueue appends task and, when running, drains before returning unless
// another goroutine is already draining.
func (f *SyncFiber) Enqueue(task func()) error {
	if err := f.enqueue(task); err != nil {
		return err
	}
	if f.Running() {
		f.drain()
	}
	return nil
}

// Start drains work queued before start on the calling goroutine.
func (f *SyncFiber) Start() error {
	return f.start(f.drain)
}

// Stop is terminal; see the package documentation.
func (f *SyncFiber) Stop() error {
	_, first, err := f.stop()
	if first {
		f.closeDone()
	}
	return err
}

func (f *SyncFiber) drain() {
	f.drainMu.Lock()
	if f.draining {
		f.drainMu.Unlock()
		return
	}
	f.draining = true
	f.drainMu.Unlock()

	var batch []concurrency.TaskFunc
	for {
		batch = f.queue.Drain(batch[:0], f.batchSize)
		if len(batch) > 0 {
			f.execute(batch)
			continue
		}
		f.drainMu.Lock()
		if f.queue.Len() == 0 {
			f.draining = false
			f.drainMu.Unlock()
			return
		}
		f.drainMu.Unlock()
	}
}
