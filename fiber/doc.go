// File: fiber/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package fiber provides serialized execution contexts.
//
// A fiber owns a FIFO task queue, the timers scheduled through it and an
// ordered list of disposers. Work reaches the queue from any goroutine:
// Enqueue, channel deliveries and expired timers. The queue is drained by
// exactly one consumer at a time, so everything owned by a fiber runs
// serialized and needs no further locking.
//
// Three backends share the same lifecycle and api.Fiber contract:
//
//   - ThreadFiber drains on a dedicated goroutine, optionally locked to an
//     OS thread and pinned to a CPU.
//   - PoolFiber drains on a shared executor; at most one drain per fiber is
//     in flight.
//   - SyncFiber drains on the goroutine that submits the work. It is meant
//     for tests and deterministic tooling.
//
// Lifecycle rules:
//
//   - Tasks enqueued and timers scheduled before Start are kept; timers
//     start counting down when the fiber starts.
//   - Start on a fiber that is not Created returns api.ErrAlreadyStarted.
//   - Stop discards queued tasks, cancels timers, runs disposers once, in
//     registration order, and releases the backing goroutine. A task that
//     is already running completes. Stop is idempotent and never waits for
//     the running task, so it can be called from inside the fiber.
//   - Enqueue, Schedule and ScheduleOnInterval on a stopped fiber return
//     api.ErrFiberStopped.
//   - A panicking task is recovered, logged and counted; the fiber keeps
//     draining.
package fiber
