// File: fiberfx/module.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package fiberfx wires the fiber runtime into a go.uber.org/fx
// application: logger, metrics, debug probes, the process-wide timer
// service, the shared executor and the fiber factory. The timer service and
// the executor follow the application lifecycle.
package fiberfx

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/control"
	"github.com/momentics/hioload-fiber/fiber"
	"github.com/momentics/hioload-fiber/internal/concurrency"
	"github.com/momentics/hioload-fiber/scheduler"
)

// Module provides the runtime. A control.Config must be supplied, see
// WithConfig and WithConfigFile.
func Module() fx.Option {
	return fx.Module("fiber",
		fx.Provide(
			ProvideLogger,
			ProvideRegistry,
			ProvideMetrics,
			ProvideDebugProbes,
			ProvideScheduler,
			ProvideExecutor,
			ProvideFactory,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
}

// WithConfig supplies a ready configuration.
func WithConfig(cfg control.Config) fx.Option {
	return fx.Supply(cfg)
}

// WithConfigFile loads the configuration from path and the environment.
func WithConfigFile(path string) fx.Option {
	return fx.Provide(func() (control.Config, error) {
		return control.LoadConfig(path)
	})
}

// ProvideLogger builds the root logger and flushes it on stop.
func ProvideLogger(lc fx.Lifecycle, cfg control.Config) (*zap.Logger, error) {
	log, err := control.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

// ProvideRegistry returns the registry runtime metrics are registered with.
func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics returns nil when metrics are disabled; every consumer
// accepts a nil *control.Metrics.
func ProvideMetrics(cfg control.Config, reg *prometheus.Registry) (*control.Metrics, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}
	return control.NewMetrics(cfg.Metrics.Namespace, reg)
}

// ProvideDebugProbes returns a probe registry with the platform probes set.
func ProvideDebugProbes() *control.DebugProbes {
	dp := control.NewDebugProbes()
	control.RegisterPlatformProbes(dp)
	return dp
}

// ProvideScheduler creates the timer service, started and shut down with
// the application.
func ProvideScheduler(lc fx.Lifecycle, log *zap.Logger, m *control.Metrics) *scheduler.Service {
	svc := scheduler.New(scheduler.WithLogger(log.Named("scheduler")), scheduler.WithMetrics(m))
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return svc.Start() },
		OnStop:  func(context.Context) error { return svc.Shutdown() },
	})
	return svc
}

// ProvideExecutor creates the worker pool behind pooled fibers.
func ProvideExecutor(lc fx.Lifecycle, cfg control.Config, log *zap.Logger, dp *control.DebugProbes) api.Executor {
	opts := []concurrency.ExecutorOption{concurrency.WithExecutorLogger(log.Named("executor"))}
	if cfg.Pool.PinFromCPU >= 0 {
		opts = append(opts, concurrency.WithPinnedWorkers(cfg.Pool.PinFromCPU))
	}
	exec := concurrency.NewExecutor(cfg.Pool.Workers, opts...)
	dp.RegisterProbe("executor.stats", func() any { return exec.Stats() })
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			dp.UnregisterProbe("executor.stats")
			exec.Close()
			return nil
		},
	})
	return exec
}

// ProvideFactory builds the fiber factory from configuration.
func ProvideFactory(cfg control.Config, svc *scheduler.Service, exec api.Executor,
	log *zap.Logger, m *control.Metrics, dp *control.DebugProbes) *fiber.Factory {
	return fiber.NewFactoryFromConfig(cfg, svc, exec, log.Named("fiber"), m, dp)
}
