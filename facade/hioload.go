// File: facade/hioload.go
// Unified facade over the reactor runtime.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime wires one Reactor, one Executor, the metrics registry and the debug
// probes together. It is the entry point used by the example binaries: build
// it from a Config, Start it, spawn futures that use Connect or Listen, and
// Shutdown when done.

package facade

import (
	"context"
	"errors"
	"sync"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/control"
	"github.com/momentics/hioload-reactor/internal/concurrency"
	"github.com/momentics/hioload-reactor/internal/logging"
	"github.com/momentics/hioload-reactor/reactor"
	"github.com/momentics/hioload-reactor/task"
	"github.com/momentics/hioload-reactor/transport/tcp"
)

// Config holds parameters immutable per run.
type Config struct {
	control.Config

	// EventSink, when positive, makes the reactor also publish every ready
	// id on a channel of this capacity. Run then dispatches those ids to
	// AwaitOnce/AwaitKeep callbacks.
	EventSink int

	Logger   *logging.Logger  // nil disables logging
	Selector reactor.Selector // nil selects epoll
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{Config: control.DefaultConfig()}
}

// Runtime is the main facade type.
type Runtime struct {
	reactor  *reactor.Reactor
	executor *concurrency.Executor
	metrics  *control.MetricsRegistry
	debug    *control.DebugProbes
	log      *logging.Logger
	sink     chan api.EventID

	mu      sync.Mutex
	started bool
}

var _ api.GracefulShutdown = (*Runtime)(nil)

// New constructs a Runtime. Nothing runs until Start.
func New(cfg *Config) (*Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rt := &Runtime{
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
		log:     cfg.Logger,
	}
	opts := []reactor.Option{
		reactor.WithEventCapacity(cfg.EventCapacity),
		reactor.WithPollTimeout(cfg.PollTimeout),
		reactor.WithLogger(cfg.Logger),
		reactor.WithMetrics(rt.metrics),
	}
	if cfg.Selector != nil {
		opts = append(opts, reactor.WithSelector(cfg.Selector))
	}
	r, err := reactor.New(opts...)
	if err != nil {
		return nil, err
	}
	rt.reactor = r
	rt.executor = concurrency.NewExecutor(
		concurrency.WithLogger(cfg.Logger),
		concurrency.WithMetrics(rt.metrics),
	)
	if cfg.EventSink > 0 {
		rt.sink = make(chan api.EventID, cfg.EventSink)
	}

	control.RegisterPlatformProbes(rt.debug)
	rt.debug.RegisterProbe("reactor.state", func() any { return r.State().String() })
	rt.debug.RegisterProbe("reactor.stats", func() any { return r.Stats() })
	rt.debug.RegisterProbe("executor.stats", func() any { return rt.executor.Stats() })
	return rt, nil
}

// Start runs the reactor loop. Subsequent calls have no effect.
func (rt *Runtime) Start() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.started {
		return nil
	}
	var sink chan<- api.EventID
	if rt.sink != nil {
		sink = rt.sink
	}
	if err := rt.reactor.Run(sink); err != nil {
		return err
	}
	rt.started = true
	return nil
}

// Shutdown stops the executor from accepting work and stops the reactor,
// waking every suspended future so it observes the stop.
func (rt *Runtime) Shutdown() error {
	return errors.Join(rt.executor.Shutdown(), rt.reactor.Shutdown())
}

// Driver returns the reactor as seen by I/O primitives.
func (rt *Runtime) Driver() api.Driver { return rt.reactor }

// Reactor returns the underlying reactor.
func (rt *Runtime) Reactor() *reactor.Reactor { return rt.reactor }

// Metrics returns the registry reactor and executor counters are published to.
func (rt *Runtime) Metrics() *control.MetricsRegistry { return rt.metrics }

// Debug returns the runtime's debug probes.
func (rt *Runtime) Debug() *control.DebugProbes { return rt.debug }

// Logger returns the configured logger, possibly nil.
func (rt *Runtime) Logger() *logging.Logger { return rt.log }

// Spawn schedules f on the executor.
func (rt *Runtime) Spawn(f task.Future[struct{}]) error { return rt.executor.Spawn(f) }

// Submit runs fn once on the executor goroutine.
func (rt *Runtime) Submit(fn func()) error { return rt.executor.Submit(fn) }

// Pending returns the number of unfinished tasks.
func (rt *Runtime) Pending() int { return rt.executor.Pending() }

// AwaitOnce runs fn the next time the reactor reports id. Requires EventSink.
func (rt *Runtime) AwaitOnce(id api.EventID, fn func()) { rt.executor.AwaitOnce(id, fn) }

// AwaitKeep runs fn every time the reactor reports id. Requires EventSink.
func (rt *Runtime) AwaitKeep(id api.EventID, fn func()) { rt.executor.AwaitKeep(id, fn) }

// Run drives spawned tasks on the calling goroutine. Without an event sink
// it returns once no tasks are left; with one it keeps dispatching ids until
// ctx is done or the runtime is shut down.
func (rt *Runtime) Run(ctx context.Context) error {
	if rt.sink == nil {
		return rt.executor.Run(ctx)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-rt.reactor.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	err := rt.executor.RunEvents(ctx, rt.sink)
	if errors.Is(err, context.Canceled) && rt.reactor.Err() != nil {
		return rt.reactor.Err()
	}
	return err
}

// BlockOn drives the runtime's executor until f completes. With an event
// sink configured it also dispatches the ids the reactor publishes meanwhile.
func BlockOn[T any](rt *Runtime, f task.Future[T]) (T, error) {
	return concurrency.BlockOnEvents(context.Background(), rt.executor, rt.sink, f)
}

// Connect opens a client stream driven by this runtime's reactor.
func (rt *Runtime) Connect(addr string) (*tcp.AsyncTCPStream, error) {
	return tcp.Connect(rt.reactor, addr)
}

// Listen opens a listener driven by this runtime's reactor.
func (rt *Runtime) Listen(addr string) (*tcp.AsyncTCPListener, error) {
	return tcp.Listen(rt.reactor, addr)
}
