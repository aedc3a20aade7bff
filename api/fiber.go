// File: api/fiber.go
// Package api defines the Fiber contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Fiber is a serialized execution context: every task submitted to it,
// every channel delivery and every timer action owned by it runs one at a
// time, in submission order, on the fiber's backing goroutine(s).

package api

import "time"

// FiberState is the lifecycle state of a fiber. Transitions are monotonic:
// Created -> Running -> Stopped, or Created -> Stopped.
type FiberState int32

const (
	StateCreated FiberState = iota
	StateRunning
	StateStopped
)

// String implements fmt.Stringer.
func (s FiberState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DisposerID identifies a cleanup callback registered on a fiber.
type DisposerID uint64

// TaskQueue is the raw submission side of a fiber. Channels and the timer
// service only need this much.
type TaskQueue interface {
	// Enqueue appends task to the fiber queue. Safe from any goroutine.
	Enqueue(task func()) error
}

// DisposerRegistry runs registered callbacks exactly once when its owner stops.
type DisposerRegistry interface {
	// AddDisposer registers fn and returns a handle for RemoveDisposer.
	// On an already stopped owner fn runs immediately.
	AddDisposer(fn func()) DisposerID

	// RemoveDisposer drops a registered callback; false if it is gone already.
	RemoveDisposer(id DisposerID) bool
}

// Fiber is the common contract of every fiber backend.
type Fiber interface {
	TaskQueue
	DisposerRegistry

	// ID returns the unique fiber identity.
	ID() string

	// Name returns the configured fiber name (defaults to the ID).
	Name() string

	// Start moves the fiber from Created to Running.
	Start() error

	// Stop is terminal and idempotent. It discards queued tasks, cancels
	// timers, runs disposers and releases the backing goroutine(s).
	Stop() error

	// Done is closed once the backing goroutine(s) have been released.
	Done() <-chan struct{}

	// State returns the current lifecycle state.
	State() FiberState

	// Running reports whether the fiber is in the Running state.
	Running() bool

	// Schedule runs fn once on the fiber after delay.
	Schedule(fn func(), delay time.Duration) (TimerControl, error)

	// ScheduleOnInterval runs fn on the fiber after first, then every interval.
	ScheduleOnInterval(fn func(), first, interval time.Duration) (TimerControl, error)

	// Pending returns the number of queued tasks.
	Pending() int
}
