// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// GracefulShutdown is implemented by long-lived services with an explicit
// construction/shutdown lifecycle.
type GracefulShutdown interface {
	// Shutdown stops internal goroutines and releases resources.
	Shutdown() error
}
