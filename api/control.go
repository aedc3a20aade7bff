// File: api/control.go
// Package api defines caller-held capability handles.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// TimerControl cancels a scheduled action. Cancel is idempotent.
type TimerControl interface {
	Cancel()
	// Cancelled reports whether Cancel was called or the owner stopped.
	Cancelled() bool
}

// Unsubscriber removes one subscription. Unsubscribe is idempotent.
type Unsubscriber interface {
	Unsubscribe()
}
