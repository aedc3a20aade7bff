// Package api
// Author: momentics
//
// Scheduler contract for timed actions handed off to a fiber queue.

package api

import "time"

// Scheduler arms timers whose actions are submitted to a TaskQueue on
// expiry. A Scheduler never runs the action itself.
type Scheduler interface {
	// Schedule submits fn to target once after delay.
	Schedule(target TaskQueue, fn func(), delay time.Duration) (TimerControl, error)

	// ScheduleOnInterval submits fn to target after first, then every interval.
	ScheduleOnInterval(target TaskQueue, fn func(), first, interval time.Duration) (TimerControl, error)

	// Now returns the scheduler's notion of the current time.
	Now() time.Time
}
