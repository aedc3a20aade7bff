// File: channels/windowed.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windowed subscribers collect messages on the publishing goroutine and
// deliver the collected state on the subscriber fiber once per window. A
// window opens with the first message after a flush and closes interval
// later.

package channels

import (
	"sync"
	"time"

	"github.com/momentics/hioload-fiber/api"
)

type window[T, S any] struct {
	fiber    api.Fiber
	interval time.Duration
	add      func(S, T) S
	empty    func() S
	deliver  func(S)

	mu     sync.Mutex
	state  S
	timer  api.TimerControl
	closed bool
}

func newWindow[T, S any](f api.Fiber, interval time.Duration, empty func() S, add func(S, T) S, deliver func(S)) *window[T, S] {
	return &window[T, S]{
		fiber:    f,
		interval: interval,
		add:      add,
		empty:    empty,
		deliver:  deliver,
		state:    empty(),
	}
}

func (w *window[T, S]) sink(msg T) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.state = w.add(w.state, msg)
	if w.timer != nil {
		return nil
	}
	tc, err := w.fiber.Schedule(w.flush, w.interval)
	if err != nil {
		w.state = w.empty()
		return err
	}
	w.timer = tc
	return nil
}

// flush runs on the fiber.
func (w *window[T, S]) flush() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	state := w.state
	w.state = w.empty()
	w.timer = nil
	w.mu.Unlock()
	w.deliver(state)
}

func (w *window[T, S]) close() {
	w.mu.Lock()
	w.closed = true
	tc := w.timer
	w.timer = nil
	w.state = w.empty()
	w.mu.Unlock()
	if tc != nil {
		tc.Cancel()
	}
}

func validWindow(interval time.Duration, cbNil bool) error {
	if cbNil {
		return api.NewError(api.ErrCodeInvalidArgument, "channels: nil callback")
	}
	if interval <= 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "channels: window interval must be positive").
			WithContext("interval", interval)
	}
	return nil
}

// SubscribeBatch delivers the messages published during each window as one
// slice, in publish order.
func (c *Channel[T]) SubscribeBatch(f api.Fiber, cb func([]T), interval time.Duration) (api.Unsubscriber, error) {
	if err := validWindow(interval, cb == nil); err != nil {
		return nil, err
	}
	w := newWindow(f, interval,
		func() []T { return nil },
		func(batch []T, msg T) []T { return append(batch, msg) },
		cb)
	return c.subscribe(f, w.sink, w.close)
}

// SubscribeLast delivers only the latest message of each window.
func (c *Channel[T]) SubscribeLast(f api.Fiber, cb func(T), interval time.Duration) (api.Unsubscriber, error) {
	if err := validWindow(interval, cb == nil); err != nil {
		return nil, err
	}
	var zero T
	w := newWindow(f, interval,
		func() T { return zero },
		func(_ T, msg T) T { return msg },
		cb)
	return c.subscribe(f, w.sink, w.close)
}

// SubscribeKeyedBatch delivers, once per window, the latest message for
// every key seen during the window.
func SubscribeKeyedBatch[K comparable, T any](c *Channel[T], f api.Fiber, key func(T) K,
	cb func(map[K]T), interval time.Duration) (api.Unsubscriber, error) {
	if err := validWindow(interval, cb == nil || key == nil); err != nil {
		return nil, err
	}
	w := newWindow(f, interval,
		func() map[K]T { return nil },
		func(m map[K]T, msg T) map[K]T {
			if m == nil {
				m = make(map[K]T)
			}
			m[key(msg)] = msg
			return m
		},
		cb)
	return c.subscribe(f, w.sink, w.close)
}
