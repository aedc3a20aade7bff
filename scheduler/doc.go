// File: scheduler/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package scheduler implements the process-wide timer service shared by
// fibers. The service keeps every armed timer in one min-heap ordered by due
// time and runs a single goroutine that waits for the earliest deadline.
// On expiry it hands the action to the owning fiber's queue; user code is
// never executed on the service goroutine.
//
// The service has an explicit lifecycle:
//
//	svc := scheduler.New(scheduler.WithLogger(log))
//	svc.Start()
//	defer svc.Shutdown()
//
// Time is read through github.com/benbjohnson/clock so tests can drive the
// service with clock.NewMock().
package scheduler
