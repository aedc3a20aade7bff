// File: fiber/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-fiber/control"
	"github.com/momentics/hioload-fiber/scheduler"
)

const defaultBatchSize = 64

type settings struct {
	name       string
	log        *zap.Logger
	metrics    *control.Metrics
	debug      *control.DebugProbes
	sched      *scheduler.Service
	batchSize  int
	pinCPU     int
	lockThread bool
	onPanic    func(fiberID string, recovered any)
}

func defaultSettings() settings {
	return settings{
		log:       zap.NewNop(),
		batchSize: defaultBatchSize,
		pinCPU:    -1,
	}
}

// Option configures a fiber.
type Option func(*settings)

// WithName sets a human readable name used in logs and debug probes.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithLogger sets the fiber logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches prometheus counters.
func WithMetrics(m *control.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithDebugProbes registers a pending-queue probe while the fiber runs.
func WithDebugProbes(dp *control.DebugProbes) Option {
	return func(s *settings) { s.debug = dp }
}

// WithScheduler sets the timer service. Without one Schedule and
// ScheduleOnInterval return api.ErrInvalidArgument.
func WithScheduler(svc *scheduler.Service) Option {
	return func(s *settings) { s.sched = svc }
}

// WithBatchSize bounds the number of tasks taken from the queue at once.
func WithBatchSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithPinnedCPU locks a ThreadFiber to its OS thread and pins that thread
// to cpu. Ignored by other backends.
func WithPinnedCPU(cpu int) Option {
	return func(s *settings) {
		s.pinCPU = cpu
		s.lockThread = true
	}
}

// WithLockedOSThread locks a ThreadFiber to its OS thread without pinning.
func WithLockedOSThread() Option {
	return func(s *settings) { s.lockThread = true }
}

// WithPanicHandler is called on the fiber after a task panicked.
func WithPanicHandler(fn func(fiberID string, recovered any)) Option {
	return func(s *settings) { s.onPanic = fn }
}
