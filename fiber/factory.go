// File: fiber/factory.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Factory selects a fiber backend and applies shared options: the timer
// service, logger, metrics and debug probes every fiber of a process uses.

package fiber

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/control"
	"github.com/momentics/hioload-fiber/scheduler"
)

// Kind names a fiber backend.
type Kind string

const (
	KindThread Kind = "thread"
	KindPool   Kind = "pool"
	KindSync   Kind = "sync"
)

// Factory builds fibers sharing one scheduler and executor.
type Factory struct {
	kind Kind
	exec api.Executor
	base []Option
}

// NewFactory creates a factory producing kind by default. exec may be nil
// when no pooled fibers are needed.
func NewFactory(kind Kind, sched *scheduler.Service, exec api.Executor, opts ...Option) *Factory {
	base := append([]Option{WithScheduler(sched)}, opts...)
	return &Factory{kind: kind, exec: exec, base: base}
}

// NewFactoryFromConfig wires a factory from runtime configuration.
func NewFactoryFromConfig(cfg control.Config, sched *scheduler.Service, exec api.Executor,
	log *zap.Logger, metrics *control.Metrics, dp *control.DebugProbes) *Factory {
	opts := []Option{
		WithLogger(log),
		WithMetrics(metrics),
		WithDebugProbes(dp),
		WithBatchSize(cfg.Fiber.BatchSize),
	}
	if cfg.Fiber.PinCPU >= 0 {
		opts = append(opts, WithPinnedCPU(cfg.Fiber.PinCPU))
	}
	return NewFactory(Kind(cfg.Fiber.Kind), sched, exec, opts...)
}

// Kind returns the default backend.
func (f *Factory) Kind() Kind { return f.kind }

// NewFiber creates a fiber of the default kind.
func (f *Factory) NewFiber(opts ...Option) (api.Fiber, error) {
	return f.New(f.kind, opts...)
}

// New creates a fiber of the given kind. Per-call options override the
// factory options.
func (f *Factory) New(kind Kind, opts ...Option) (api.Fiber, error) {
	all := make([]Option, 0, len(f.base)+len(opts))
	all = append(all, f.base...)
	all = append(all, opts...)
	switch kind {
	case KindThread:
		return NewThreadFiber(all...), nil
	case KindPool:
		if f.exec == nil {
			return nil, api.NewError(api.ErrCodeInvalidArgument, "fiber: pool kind requires an executor")
		}
		return NewPoolFiber(f.exec, all...), nil
	case KindSync:
		return NewSyncFiber(all...), nil
	default:
		return nil, fmt.Errorf("%w: %q", api.ErrUnknownFiberKind, kind)
	}
}

// StartNew creates and starts a fiber of the given kind.
func (f *Factory) StartNew(kind Kind, opts ...Option) (api.Fiber, error) {
	fb, err := f.New(kind, opts...)
	if err != nil {
		return nil, err
	}
	if err := fb.Start(); err != nil {
		return nil, err
	}
	return fb, nil
}
