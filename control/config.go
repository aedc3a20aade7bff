// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration. Values come from DefaultConfig, an optional
// config file and HIOLOAD_FIBER_* environment variables, in increasing
// precedence.

package control

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/text/encoding/ianaindex"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// HIOLOAD_FIBER_FIBER_BATCH_SIZE=128.
const EnvPrefix = "HIOLOAD_FIBER"

// Config holds all configurable parameters.
type Config struct {
	Fiber   FiberConfig   `mapstructure:"fiber"`
	Pool    PoolConfig    `mapstructure:"pool"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Stream  StreamConfig  `mapstructure:"stream"`
}

// FiberConfig selects the default fiber backend.
type FiberConfig struct {
	// Kind is one of "thread", "pool", "sync".
	Kind      string `mapstructure:"kind"`
	BatchSize int    `mapstructure:"batch_size"`
	// PinCPU pins dedicated fibers to a CPU; -1 leaves placement to the OS.
	PinCPU int `mapstructure:"pin_cpu"`
}

// PoolConfig sizes the shared executor behind pooled fibers.
type PoolConfig struct {
	Workers int `mapstructure:"workers"`
	// PinFromCPU pins worker i to CPU PinFromCPU+i; -1 disables pinning.
	PinFromCPU int `mapstructure:"pin_from_cpu"`
}

// LogConfig controls the zap logger built by NewLogger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig controls prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// StreamConfig holds byte-stream reader defaults.
type StreamConfig struct {
	InitialBuffer int    `mapstructure:"initial_buffer"`
	Encoding      string `mapstructure:"encoding"`
	// MaxLength caps a single length-prefixed read; 0 disables the cap.
	MaxLength int `mapstructure:"max_length"`
}

// DefaultConfig returns a baseline configuration.
func DefaultConfig() Config {
	return Config{
		Fiber: FiberConfig{
			Kind:      "thread",
			BatchSize: 64,
			PinCPU:    -1,
		},
		Pool: PoolConfig{
			Workers:    runtime.NumCPU(),
			PinFromCPU: -1,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "hioload_fiber",
		},
		Stream: StreamConfig{
			InitialBuffer: 64 * 1024,
			Encoding:      "utf-8",
			MaxLength:     16 << 20,
		},
	}
}

// LoadConfig reads configuration from path (optional, any format viper
// understands) and the environment.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("fiber.kind", d.Fiber.Kind)
	v.SetDefault("fiber.batch_size", d.Fiber.BatchSize)
	v.SetDefault("fiber.pin_cpu", d.Fiber.PinCPU)
	v.SetDefault("pool.workers", d.Pool.Workers)
	v.SetDefault("pool.pin_from_cpu", d.Pool.PinFromCPU)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("stream.initial_buffer", d.Stream.InitialBuffer)
	v.SetDefault("stream.encoding", d.Stream.Encoding)
	v.SetDefault("stream.max_length", d.Stream.MaxLength)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	switch c.Fiber.Kind {
	case "thread", "pool", "sync":
	default:
		errs = append(errs, fmt.Errorf("fiber.kind %q: want thread, pool or sync", c.Fiber.Kind))
	}
	if c.Fiber.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("fiber.batch_size must be positive, got %d", c.Fiber.BatchSize))
	}
	if c.Pool.Workers <= 0 {
		errs = append(errs, fmt.Errorf("pool.workers must be positive, got %d", c.Pool.Workers))
	}
	if c.Stream.InitialBuffer <= 0 {
		errs = append(errs, fmt.Errorf("stream.initial_buffer must be positive, got %d", c.Stream.InitialBuffer))
	}
	if c.Stream.MaxLength < 0 {
		errs = append(errs, fmt.Errorf("stream.max_length must not be negative, got %d", c.Stream.MaxLength))
	}
	if enc, err := ianaindex.IANA.Encoding(c.Stream.Encoding); err != nil || enc == nil {
		errs = append(errs, fmt.Errorf("stream.encoding %q: unsupported", c.Stream.Encoding))
	}
	return errors.Join(errs...)
}
