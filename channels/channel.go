// File: channels/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel keeps its subscriptions in a map guarded by a mutex and publishes
// from an immutable snapshot slice, rebuilt lazily after every change.

package channels

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/momentics/hioload-fiber/api"
)

// sink receives a published message on the publishing goroutine. It must
// not block; plain subscriptions hand the message to their fiber queue.
type sink[T any] func(msg T) error

type subscription[T any] struct {
	id    uint64
	fiber api.Fiber
	sink  sink[T]
	unsub *Unsubscriber
}

// Channel is a typed broadcast group. The zero value is not usable; create
// channels with New.
type Channel[T any] struct {
	settings

	mu   sync.Mutex
	subs map[uint64]*subscription[T]
	snap []*subscription[T]

	nextID atomic.Uint64
}

// New creates an empty channel.
func New[T any](opts ...Option) *Channel[T] {
	c := &Channel[T]{
		settings: settings{log: zap.NewNop()},
		subs:     make(map[uint64]*subscription[T]),
	}
	for _, opt := range opts {
		opt(&c.settings)
	}
	if c.name != "" {
		c.log = c.log.With(zap.String("channel", c.name))
	}
	return c
}

// Subscribe delivers every subsequent message to cb on fiber f. The
// subscription ends on Unsubscribe or when f stops. Subscribing through a
// stopped fiber fails with api.ErrFiberStopped.
func (c *Channel[T]) Subscribe(f api.Fiber, cb func(T)) (api.Unsubscriber, error) {
	if cb == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "channels: nil callback")
	}
	return c.subscribe(f, func(msg T) error {
		return f.Enqueue(func() { cb(msg) })
	}, nil)
}

// SubscribeFiltered is Subscribe with a predicate. filter runs on f right
// before cb; messages it rejects are dropped.
func (c *Channel[T]) SubscribeFiltered(f api.Fiber, filter func(T) bool, cb func(T)) (api.Unsubscriber, error) {
	if cb == nil || filter == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "channels: nil filter or callback")
	}
	return c.subscribe(f, func(msg T) error {
		return f.Enqueue(func() {
			if filter(msg) {
				cb(msg)
			}
		})
	}, nil)
}

// subscribe registers s and ties its lifetime to f. onClose, if set, runs
// once when the subscription ends.
func (c *Channel[T]) subscribe(f api.Fiber, s sink[T], onClose func()) (api.Unsubscriber, error) {
	if f == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "channels: nil fiber")
	}
	if f.State() == api.StateStopped {
		return nil, api.NewError(api.ErrCodeStopped, "channels: subscribe through stopped fiber").
			WithContext("fiber", f.Name())
	}

	sub := &subscription[T]{id: c.nextID.Add(1), fiber: f, sink: s}
	u := &Unsubscriber{fiber: f}
	u.release = func() {
		c.remove(sub.id)
		if onClose != nil {
			onClose()
		}
	}
	sub.unsub = u

	c.mu.Lock()
	c.subs[sub.id] = sub
	c.snap = nil
	c.mu.Unlock()

	did := f.AddDisposer(u.Unsubscribe)
	if did == 0 {
		// f stopped meanwhile and has already run the disposer.
		return nil, api.NewError(api.ErrCodeStopped, "channels: subscribe through stopped fiber").
			WithContext("fiber", f.Name())
	}
	u.disposer.Store(uint64(did))
	if u.done.Load() {
		// cleared before the disposer id was recorded
		f.RemoveDisposer(did)
	}
	return u, nil
}

func (c *Channel[T]) remove(id uint64) {
	c.mu.Lock()
	if _, ok := c.subs[id]; ok {
		delete(c.subs, id)
		c.snap = nil
	}
	c.mu.Unlock()
}

func (c *Channel[T]) snapshot() []*subscription[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil && len(c.subs) > 0 {
		snap := make([]*subscription[T], 0, len(c.subs))
		for _, s := range c.subs {
			snap = append(snap, s)
		}
		c.snap = snap
	}
	return c.snap
}

// Publish hands msg to every current subscriber and reports whether there
// was at least one. Deliveries rejected by stopped fibers are dropped.
func (c *Channel[T]) Publish(msg T) bool {
	subs := c.snapshot()
	if len(subs) == 0 {
		return false
	}
	c.metrics.Published()
	for _, s := range subs {
		if err := s.sink(msg); err != nil {
			c.metrics.DeliveryDropped()
			c.log.Debug("channels: delivery dropped",
				zap.Uint64("subscription", s.id),
				zap.String("fiber", s.fiber.ID()),
				zap.Error(err))
			continue
		}
		c.metrics.Delivered()
	}
	return true
}

// ClearSubscribers removes every subscription at once. Each cleared
// subscription is ended as if unsubscribed: its fiber-side disposer is
// dropped and pending windows are discarded.
func (c *Channel[T]) ClearSubscribers() {
	c.mu.Lock()
	cleared := c.subs
	c.subs = make(map[uint64]*subscription[T])
	c.snap = nil
	c.mu.Unlock()

	for _, s := range cleared {
		s.unsub.Unsubscribe()
	}
}

// SubscriberCount returns the number of live subscriptions.
func (c *Channel[T]) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

var _ api.Unsubscriber = (*Unsubscriber)(nil)

// Unsubscriber ends one subscription.
type Unsubscriber struct {
	fiber    api.Fiber
	release  func()
	disposer atomic.Uint64
	done     atomic.Bool
	once     sync.Once
}

// Unsubscribe removes the subscription from its channel and drops the
// fiber-side disposer. Repeated calls are no-ops.
func (u *Unsubscriber) Unsubscribe() {
	u.once.Do(func() {
		u.done.Store(true)
		u.release()
		if id := u.disposer.Load(); id != 0 {
			u.fiber.RemoveDisposer(api.DisposerID(id))
		}
	})
}
