// File: fiber/core.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// core carries everything the fiber backends share: identity, lifecycle
// state, task queue, owned timers and disposers. Backends differ only in
// who drains the queue.

package fiber

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/concurrency"
	"github.com/momentics/hioload-fiber/scheduler"
)

type core struct {
	settings
	id    string
	self  api.Fiber
	queue *concurrency.TaskQueue
	state atomic.Int32

	// mu guards state transitions, timers, pending and disposers.
	mu        sync.Mutex
	timers    map[uint64]*scheduler.Timer
	pending   []*scheduler.Timer
	disposers disposerList

	done     chan struct{}
	doneOnce sync.Once
}

func newCore(self api.Fiber, opts []Option) *core {
	c := &core{
		settings: defaultSettings(),
		id:       uuid.NewString(),
		self:     self,
		queue:    concurrency.NewTaskQueue(),
		timers:   make(map[uint64]*scheduler.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&c.settings)
	}
	if c.name == "" {
		c.name = c.id
	}
	c.log = c.log.With(zap.String("fiber", c.id), zap.String("fiber_name", c.name))
	return c
}

// ID returns the unique fiber identity.
func (c *core) ID() string { return c.id }

// Name returns the configured name, or the ID.
func (c *core) Name() string { return c.name }

// State returns the current lifecycle state.
func (c *core) State() api.FiberState { return api.FiberState(c.state.Load()) }

// Running reports whether the fiber is Running.
func (c *core) Running() bool { return c.State() == api.StateRunning }

// Done is closed once the backing goroutine has been released.
func (c *core) Done() <-chan struct{} { return c.done }

// Pending returns the number of queued tasks.
func (c *core) Pending() int { return c.queue.Len() }

func (c *core) closeDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *core) stoppedError(op string) error {
	return api.NewError(api.ErrCodeStopped, "fiber: "+op+" on stopped fiber").WithContext("fiber", c.name)
}

// enqueue appends task to the queue. Tasks queued before Start are kept.
func (c *core) enqueue(task func()) error {
	if task == nil {
		return api.NewError(api.ErrCodeInvalidArgument, "fiber: nil task")
	}
	if !c.queue.Put(task) {
		return c.stoppedError("enqueue")
	}
	return nil
}

// AddDisposer registers fn to run once at Stop. On a stopped fiber fn runs
// immediately and the returned id is zero.
func (c *core) AddDisposer(fn func()) api.DisposerID {
	if fn == nil {
		return 0
	}
	c.mu.Lock()
	if c.State() == api.StateStopped {
		c.mu.Unlock()
		if err := runDisposers([]func(){fn}); err != nil {
			c.log.Error("fiber: disposer failed", zap.Error(err))
		}
		return 0
	}
	id := c.disposers.add(fn)
	c.mu.Unlock()
	return id
}

// RemoveDisposer drops a registered disposer without running it.
func (c *core) RemoveDisposer(id api.DisposerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposers.remove(id)
}

// DisposerCount returns the number of registered disposers.
func (c *core) DisposerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposers.len()
}

// TimerCount returns the number of live timers owned by the fiber.
func (c *core) TimerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Schedule runs fn once on the fiber after delay.
func (c *core) Schedule(fn func(), delay time.Duration) (api.TimerControl, error) {
	return c.schedule(fn, delay, 0)
}

// ScheduleOnInterval runs fn on the fiber after first, then every interval.
func (c *core) ScheduleOnInterval(fn func(), first, interval time.Duration) (api.TimerControl, error) {
	if interval <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "fiber: interval must be positive").
			WithContext("interval", interval)
	}
	return c.schedule(fn, first, interval)
}

func (c *core) schedule(fn func(), delay, period time.Duration) (api.TimerControl, error) {
	if c.sched == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "fiber: no scheduler configured").WithContext("fiber", c.name)
	}
	if c.State() == api.StateStopped {
		return nil, c.stoppedError("schedule")
	}
	t, err := c.sched.NewTimer(c.self, fn, delay, period)
	if err != nil {
		return nil, err
	}
	t.OnDone(c.forgetTimer)

	c.mu.Lock()
	switch c.State() {
	case api.StateStopped:
		c.mu.Unlock()
		return nil, c.stoppedError("schedule")
	case api.StateCreated:
		c.timers[t.ID()] = t
		c.pending = append(c.pending, t)
		c.mu.Unlock()
		return t, nil
	}
	c.timers[t.ID()] = t
	c.mu.Unlock()

	if err := c.sched.Arm(t); err != nil {
		c.forgetTimer(t)
		return nil, fmt.Errorf("fiber %s: %w", c.name, err)
	}
	return t, nil
}

func (c *core) forgetTimer(t *scheduler.Timer) {
	c.mu.Lock()
	delete(c.timers, t.ID())
	c.mu.Unlock()
}

// start moves Created -> Running, calls launch and arms the timers
// scheduled before start.
func (c *core) start(launch func()) error {
	c.mu.Lock()
	if !c.state.CompareAndSwap(int32(api.StateCreated), int32(api.StateRunning)) {
		st := c.State()
		c.mu.Unlock()
		return api.NewError(api.ErrCodeAlreadyStarted, "fiber: start").
			WithContext("fiber", c.name).
			WithContext("state", st.String())
	}
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.metrics.FiberStarted()
	if c.debug != nil {
		c.debug.RegisterProbe(c.probeName(), func() any { return c.queue.Len() })
	}
	launch()

	for _, t := range pending {
		if err := c.sched.Arm(t); err != nil {
			c.log.Warn("fiber: arm pending timer failed", zap.Uint64("timer", t.ID()), zap.Error(err))
			c.forgetTimer(t)
		}
	}
	c.log.Debug("fiber: started", zap.Int("pending_timers", len(pending)), zap.Int("queued", c.queue.Len()))
	return nil
}

// stop performs the terminal transition. It returns the previous state,
// and whether this call did the transition.
func (c *core) stop() (api.FiberState, bool, error) {
	c.mu.Lock()
	prev := c.State()
	if prev == api.StateStopped {
		c.mu.Unlock()
		return prev, false, nil
	}
	c.state.Store(int32(api.StateStopped))
	timers := make([]*scheduler.Timer, 0, len(c.timers))
	for _, t := range c.timers {
		timers = append(timers, t)
	}
	c.pending = nil
	disposers := c.disposers.take()
	c.mu.Unlock()

	discarded := c.queue.Close()
	c.metrics.TasksDiscarded(discarded)

	for _, t := range timers {
		t.Cancel()
	}

	err := runDisposers(disposers)
	if err != nil {
		c.log.Error("fiber: disposers failed", zap.Error(err))
	}

	if prev == api.StateRunning {
		c.metrics.FiberStopped()
	}
	if c.debug != nil {
		c.debug.UnregisterProbe(c.probeName())
	}
	c.log.Debug("fiber: stopped",
		zap.Stringer("from", prev),
		zap.Int("discarded", discarded),
		zap.Int("timers", len(timers)),
		zap.Int("disposers", len(disposers)))
	return prev, true, err
}

func (c *core) probeName() string {
	return "fiber." + c.name + ".pending"
}

// execute runs a drained batch. The stop check runs before every task so
// nothing new starts once Stop has been called.
func (c *core) execute(batch []concurrency.TaskFunc) {
	for i, task := range batch {
		if c.State() == api.StateStopped {
			c.metrics.TasksDiscarded(len(batch) - i)
			clear(batch[i:])
			return
		}
		c.runTask(task)
		batch[i] = nil
	}
}

func (c *core) runTask(task concurrency.TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.TaskPanicked()
			c.log.Error("fiber: task panicked",
				zap.String("panic", fmt.Sprint(r)),
				zap.ByteString("stack", debug.Stack()))
			if c.onPanic != nil {
				c.onPanic(c.id, r)
			}
		}
	}()
	task()
	c.metrics.TaskExecuted()
}
