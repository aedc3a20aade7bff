// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration, logging, metrics and debug introspection layer
// for hioload-fiber.
//
// Provides:
//   - Config with defaults, file and environment loading (viper)
//   - zap logger construction from Config
//   - Prometheus counters for fibers, channels and timers
//   - Debug probe registration and state export
package control
