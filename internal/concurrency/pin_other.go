//go:build !linux

// hioload-fiber/internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>
//
// Fallback pinning: the goroutine is locked to its OS thread, CPU affinity
// is reported as unsupported.

package concurrency

import "runtime"

// PinCurrentThread locks the calling goroutine to its OS thread.
func PinCurrentThread(cpuID int) error {
	runtime.LockOSThread()
	if cpuID >= 0 {
		return ErrAffinityNotSupported
	}
	return nil
}

// UnpinCurrentThread releases the OS thread lock.
func UnpinCurrentThread() {
	runtime.UnlockOSThread()
}

// CurrentCPUs is not available on this platform.
func CurrentCPUs() ([]int, error) {
	return nil, ErrAffinityNotSupported
}
