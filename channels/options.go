// File: channels/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package channels

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-fiber/control"
)

type settings struct {
	name    string
	log     *zap.Logger
	metrics *control.Metrics
}

// Option configures a Channel.
type Option func(*settings)

// WithName labels the channel in log output.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithLogger sets the logger used for dropped deliveries.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records publishes and deliveries.
func WithMetrics(m *control.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}
