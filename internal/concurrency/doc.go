// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives backing hioload-fiber: the multi-producer /
// single-consumer task queue drained by every fiber, a bounded lock-free
// MPMC queue, the worker-pool Executor used by pooled fibers and OS-thread
// pinning for dedicated fibers.
package concurrency
