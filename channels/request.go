// File: channels/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Asynchronous request/reply over channels. A request travels on an
// ordinary channel and carries a private reply channel; the requester
// listens on it with a one-shot timer as the deadline.

package channels

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-fiber/api"
)

// Request is a message with a reply destination.
type Request[Req, Rep any] struct {
	msg   Req
	reply *Channel[Rep]
}

// NewRequest wraps msg with a fresh reply channel.
func NewRequest[Req, Rep any](msg Req, opts ...Option) *Request[Req, Rep] {
	return &Request[Req, Rep]{msg: msg, reply: New[Rep](opts...)}
}

// Message returns the request payload.
func (r *Request[Req, Rep]) Message() Req { return r.msg }

// Reply sends rep back to the requester. It reports false once the
// requester is no longer waiting.
func (r *Request[Req, Rep]) Reply(rep Rep) bool { return r.reply.Publish(rep) }

// pendingRequest settles a request exactly once.
type pendingRequest struct {
	settled atomic.Bool
	mu      sync.Mutex
	sub     api.Unsubscriber
	timer   api.TimerControl
}

func (p *pendingRequest) settle() bool {
	if !p.settled.CompareAndSwap(false, true) {
		return false
	}
	p.mu.Lock()
	sub, timer := p.sub, p.timer
	p.mu.Unlock()
	if timer != nil {
		timer.Cancel()
	}
	if sub != nil {
		sub.Unsubscribe()
	}
	return true
}

// Unsubscribe abandons the request: neither callback runs afterwards.
func (p *pendingRequest) Unsubscribe() { p.settle() }

// SendRequest publishes msg on target and waits on fiber f for the first
// reply. Exactly one of onReply and onTimeout runs, on f; the other is
// disposed. A request nobody receives ends in onTimeout. The returned handle
// abandons the request.
func SendRequest[Req, Rep any](f api.Fiber, target *Channel[*Request[Req, Rep]], msg Req,
	onReply func(Rep), onTimeout func(), timeout time.Duration) (api.Unsubscriber, error) {
	if target == nil || onReply == nil || onTimeout == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "channels: nil target or callback")
	}
	req := NewRequest[Req, Rep](msg, WithLogger(target.log), WithMetrics(target.metrics))
	p := &pendingRequest{}

	sub, err := req.reply.Subscribe(f, func(rep Rep) {
		if p.settle() {
			onReply(rep)
		}
	})
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.sub = sub
	p.mu.Unlock()

	timer, err := f.Schedule(func() {
		if p.settle() {
			onTimeout()
		}
	}, timeout)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	p.mu.Lock()
	p.timer = timer
	p.mu.Unlock()
	if p.settled.Load() {
		// settled before the timer was recorded
		timer.Cancel()
	}

	target.Publish(req)
	return p, nil
}
