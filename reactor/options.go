// File: reactor/options.go
// Author: momentics <momentics@gmail.com>

package reactor

import (
	"time"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/internal/logging"
)

const (
	// DefaultEventCapacity is the number of readiness events fetched per wait.
	DefaultEventCapacity = 1024

	// DefaultPollTimeout bounds each wait so the loop re-checks its state
	// even if a wakeup were lost.
	DefaultPollTimeout = time.Second
)

type options struct {
	selector      Selector
	eventCapacity int
	pollTimeout   time.Duration
	logger        *logging.Logger
	metrics       api.Metrics
}

// Option configures a Reactor.
type Option func(*options)

// WithSelector replaces the platform selector, e.g. with fake.Selector.
func WithSelector(sel Selector) Option {
	return func(o *options) { o.selector = sel }
}

// WithEventCapacity sets the event buffer size; values < 1 keep the default.
func WithEventCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.eventCapacity = n
		}
	}
}

// WithPollTimeout bounds each wait. NoTimeout blocks until an event.
func WithPollTimeout(d time.Duration) Option {
	return func(o *options) { o.pollTimeout = d }
}

// WithLogger sets the structured logger; nil disables logging.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics publishes loop counters into mr after every wait.
func WithMetrics(mr api.Metrics) Option {
	return func(o *options) { o.metrics = mr }
}

func resolveOptions(opts []Option) options {
	o := options{
		eventCapacity: DefaultEventCapacity,
		pollTimeout:   DefaultPollTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
