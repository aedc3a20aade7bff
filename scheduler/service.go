// File: scheduler/service.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Service is a high-precision timer service handing expired actions to
// fiber queues.

package scheduler

import (
	"container/heap"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/control"
)

var (
	_ api.Scheduler        = (*Service)(nil)
	_ api.GracefulShutdown = (*Service)(nil)
)

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock, typically with clock.NewMock().
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches timer counters.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service tracks due times for all armed timers.
type Service struct {
	clock   clock.Clock
	log     *zap.Logger
	metrics *control.Metrics

	mu     sync.Mutex
	timers timerHeap
	closed bool

	seq     atomic.Uint64
	started atomic.Bool
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
}

// New creates a stopped service. Timers may be armed before Start; they
// fire once the service goroutine runs.
func New(opts ...Option) *Service {
	s := &Service{
		clock: clock.New(),
		log:   zap.NewNop(),
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the service goroutine. Subsequent calls are no-ops.
func (s *Service) Start() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return api.ErrSchedulerClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	s.log.Debug("scheduler: started")
	go s.run()
	return nil
}

// Shutdown stops the service goroutine and drops every armed timer. Timers
// are not cancelled: their owners still see them as live until they cancel
// them or stop.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, t := range s.timers {
		t.index = -1
	}
	dropped := len(s.timers)
	s.timers = nil
	s.mu.Unlock()

	close(s.quit)
	if s.started.Load() {
		<-s.done
	}
	s.log.Debug("scheduler: shut down", zap.Int("dropped_timers", dropped))
	return nil
}

// Now returns the service clock time.
func (s *Service) Now() time.Time { return s.clock.Now() }

// Clock exposes the service time source.
func (s *Service) Clock() clock.Clock { return s.clock }

// Len returns the number of armed timers.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// NewTimer creates an unarmed timer. period <= 0 makes it one-shot.
func (s *Service) NewTimer(target api.TaskQueue, fn func(), delay, period time.Duration) (*Timer, error) {
	if target == nil || fn == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "scheduler: nil target or action")
	}
	if delay < 0 {
		delay = 0
	}
	if period < 0 {
		period = 0
	}
	return &Timer{
		id:     s.seq.Add(1),
		svc:    s,
		target: target,
		action: fn,
		delay:  delay,
		period: period,
		index:  -1,
	}, nil
}

// Arm starts the countdown of t; its delay is measured from now. Arming a
// cancelled timer is a no-op, arming twice is an error.
func (s *Service) Arm(t *Timer) error {
	if t.svc != s {
		return api.NewError(api.ErrCodeInvalidArgument, "scheduler: timer belongs to another service")
	}
	if !t.armed.CompareAndSwap(false, true) {
		return api.NewError(api.ErrCodeInvalidArgument, "scheduler: timer already armed").WithContext("timer", t.id)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return api.ErrSchedulerClosed
	}
	if t.cancelled.Load() {
		s.mu.Unlock()
		return nil
	}
	t.due = s.clock.Now().Add(t.delay)
	heap.Push(&s.timers, t)
	first := t.index == 0
	s.mu.Unlock()
	if first {
		s.notify()
	}
	return nil
}

// Schedule submits fn to target once after delay.
func (s *Service) Schedule(target api.TaskQueue, fn func(), delay time.Duration) (api.TimerControl, error) {
	return s.schedule(target, fn, delay, 0)
}

// ScheduleOnInterval submits fn to target after first, then every interval.
func (s *Service) ScheduleOnInterval(target api.TaskQueue, fn func(), first, interval time.Duration) (api.TimerControl, error) {
	if interval <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "scheduler: interval must be positive").
			WithContext("interval", interval)
	}
	return s.schedule(target, fn, first, interval)
}

func (s *Service) schedule(target api.TaskQueue, fn func(), delay, period time.Duration) (*Timer, error) {
	t, err := s.NewTimer(target, fn, delay, period)
	if err != nil {
		return nil, err
	}
	if err := s.Arm(t); err != nil {
		return nil, fmt.Errorf("arm timer: %w", err)
	}
	return t, nil
}

func (s *Service) remove(t *Timer) {
	s.mu.Lock()
	if t.index >= 0 && t.index < len(s.timers) && s.timers[t.index] == t {
		heap.Remove(&s.timers, t.index)
	}
	s.mu.Unlock()
}

func (s *Service) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) run() {
	defer close(s.done)
	var due []*Timer
	for {
		s.mu.Lock()
		now := s.clock.Now()
		due = due[:0]
		for len(s.timers) > 0 && !s.timers[0].due.After(now) {
			due = append(due, heap.Pop(&s.timers).(*Timer))
		}
		wait := time.Duration(-1)
		if len(due) == 0 && len(s.timers) > 0 {
			wait = s.timers[0].due.Sub(now)
		}
		s.mu.Unlock()

		if len(due) > 0 {
			for _, t := range due {
				s.fire(t, now)
			}
			continue
		}

		if wait < 0 {
			select {
			case <-s.wake:
			case <-s.quit:
				return
			}
			continue
		}

		tm := s.clock.Timer(wait)
		select {
		case <-tm.C:
		case <-s.wake:
			tm.Stop()
		case <-s.quit:
			tm.Stop()
			return
		}
	}
}

// fire hands t to its fiber and re-arms recurring timers. A recurring
// timer whose previous invocation is still queued skips this submission.
func (s *Service) fire(t *Timer, now time.Time) {
	if t.cancelled.Load() {
		return
	}
	if t.period > 0 {
		s.mu.Lock()
		if !s.closed && !t.cancelled.Load() {
			next := t.due.Add(t.period)
			if !next.After(now) {
				next = now.Add(t.period)
			}
			t.due = next
			heap.Push(&s.timers, t)
		}
		s.mu.Unlock()
		if !t.queued.CompareAndSwap(false, true) {
			s.metrics.TimerSkipped()
			return
		}
	}
	if err := t.target.Enqueue(t.run); err != nil {
		s.log.Debug("scheduler: target rejected timer", zap.Uint64("timer", t.id), zap.Error(err))
		t.Cancel()
		return
	}
	s.metrics.TimerFired()
}
