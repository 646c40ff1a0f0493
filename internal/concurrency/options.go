// File: internal/concurrency/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/internal/logging"
)

type options struct {
	logger  *logging.Logger
	metrics api.Metrics
}

// Option configures an Executor.
type Option func(*options)

// WithLogger sets the logger used for task panics and lifecycle messages.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics publishes executor counters under the "executor." prefix.
func WithMetrics(mr api.Metrics) Option {
	return func(o *options) { o.metrics = mr }
}
