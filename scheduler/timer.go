// File: scheduler/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-fiber/api"
)

var _ api.TimerControl = (*Timer)(nil)

// Timer is one scheduled action. It is created unarmed by NewTimer and
// starts counting down when armed.
type Timer struct {
	id     uint64
	svc    *Service
	target api.TaskQueue
	action func()
	delay  time.Duration
	period time.Duration

	// guarded by svc.mu
	due   time.Time
	index int

	cancelled atomic.Bool
	queued    atomic.Bool
	armed     atomic.Bool

	onDone   func(*Timer)
	doneOnce sync.Once
}

// ID returns the service-unique timer id.
func (t *Timer) ID() uint64 { return t.id }

// Recurring reports whether the timer re-arms after firing.
func (t *Timer) Recurring() bool { return t.period > 0 }

// Cancel stops the timer. An invocation already handed to the fiber is
// suppressed as long as it has not started running.
func (t *Timer) Cancel() {
	if !t.cancelled.CompareAndSwap(false, true) {
		return
	}
	t.svc.remove(t)
	t.svc.metrics.TimerCancelled()
	t.finish()
}

// Cancelled reports whether Cancel was called.
func (t *Timer) Cancelled() bool { return t.cancelled.Load() }

// OnDone registers fn to run once when the timer is finished: cancelled or,
// for one-shot timers, about to run its action. Must be set before Arm.
func (t *Timer) OnDone(fn func(*Timer)) { t.onDone = fn }

func (t *Timer) finish() {
	t.doneOnce.Do(func() {
		if t.onDone != nil {
			t.onDone(t)
		}
	})
}

// run executes on the owning fiber.
func (t *Timer) run() {
	if t.period > 0 {
		t.queued.Store(false)
	}
	if t.cancelled.Load() {
		return
	}
	if t.period == 0 {
		t.finish()
	}
	t.action()
}

// timerHeap orders timers by due time, then by id for equal deadlines so
// timers armed together fire in arming order.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].id < h[j].id
	}
	return h[i].due.Before(h[j].due)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
