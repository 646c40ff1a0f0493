// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Reactor runs Poll on a dedicated OS thread and fans readiness out to
// wakers and an optional notification channel.

package reactor

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	catrate "github.com/joeycumines/go-catrate"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/internal/logging"
	"github.com/momentics/hioload-reactor/task"
)

// State is the lifecycle of a Reactor.
type State int32

const (
	StateUninitialized State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stats are cumulative loop counters.
type Stats struct {
	Polls         uint64
	Events        uint64
	Wakes         uint64
	Unrouted      uint64
	Spurious      uint64
	Dropped       uint64
	Registrations uint64
	Registered    int
	Watched       int
}

// Reactor owns one Poll and the WakerTable readiness is routed through.
// Interest calls are safe from any goroutine; the wait loop runs on its own
// locked OS thread once Run is called.
type Reactor struct {
	poll     *Poll
	registry *Registry
	wakers   *task.WakerTable
	log      *logging.Logger
	limiter  *catrate.Limiter
	opts     options

	nextID atomic.Uint64
	state  atomic.Int32

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	errMu sync.Mutex
	err   error

	polls, events, wakes, unrouted, spurious, dropped, registrations atomic.Uint64
}

var _ api.Driver = (*Reactor)(nil)
var _ api.SpuriousReporter = (*Reactor)(nil)
var _ api.GracefulShutdown = (*Reactor)(nil)

// New creates a Reactor in StateUninitialized.
func New(opts ...Option) (*Reactor, error) {
	o := resolveOptions(opts)
	var p *Poll
	if o.selector != nil {
		p = NewPollWithSelector(o.selector)
	} else {
		var err error
		if p, err = NewPoll(); err != nil {
			return nil, err
		}
	}
	return &Reactor{
		poll:     p,
		registry: p.Registry(),
		wakers:   task.NewWakerTable(),
		log:      o.logger,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 5,
			time.Minute: 60,
		}),
		opts:   o,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Registry exposes the underlying registry.
func (r *Reactor) Registry() *Registry { return r.registry }

// Wakers exposes the table readiness is routed through.
func (r *Reactor) Wakers() *task.WakerTable { return r.wakers }

// State returns the current lifecycle state.
func (r *Reactor) State() State { return State(r.state.Load()) }

// Done is closed once the wait loop has exited, or Stop was called before Run.
func (r *Reactor) Done() <-chan struct{} { return r.done }

// Err is nil while the reactor is uninitialized or running. After the loop
// exits it is api.ErrReactorStopped, wrapping the fatal poll error if any.
func (r *Reactor) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// Run starts the wait loop and returns immediately. Every ready id is first
// used to wake its watcher on the reactor thread and then, if sink is not
// nil, offered to sink. The send never blocks: an id that finds sink full is
// dropped and counted in Stats.Dropped. All wakers of one batch fire before
// the next wait.
func (r *Reactor) Run(sink chan<- api.EventID) error {
	if !r.state.CompareAndSwap(int32(StateUninitialized), int32(StateRunning)) {
		if r.State() == StateRunning {
			return api.ErrAlreadyRunning
		}
		return api.ErrReactorStopped
	}
	r.log.Info().
		Int("event_capacity", r.opts.eventCapacity).
		Dur("poll_timeout", r.opts.pollTimeout).
		Log("reactor started")
	go r.loop(sink)
	return nil
}

func (r *Reactor) loop(sink chan<- api.EventID) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(r.done)

	events := make([]api.Event, r.opts.eventCapacity)
	for {
		select {
		case <-r.stopCh:
			r.finish(StateStopped, nil)
			return
		default:
		}

		n, err := r.poll.Poll(events, r.opts.pollTimeout)
		if err != nil {
			r.log.Err().Err(err).Log("reactor poll failed, stopping")
			r.finish(StateFailed, err)
			return
		}
		r.polls.Add(1)

		for i := 0; i < n; i++ {
			ev := events[i]
			r.events.Add(1)
			if r.wakers.Wake(ev.ID) {
				r.wakes.Add(1)
			} else {
				r.unrouted.Add(1)
			}
			if sink != nil {
				select {
				case sink <- ev.ID:
				default:
					r.dropped.Add(1)
					if _, ok := r.limiter.Allow("sink"); ok {
						r.log.Warning().Uint64("id", uint64(ev.ID)).Log("event sink full, id dropped")
					}
				}
			}
			r.log.Trace().
				Uint64("id", uint64(ev.ID)).
				Stringer("readiness", ev.Readiness).
				Log("ready")
		}
		r.publish()
	}
}

// finish records the terminal state and wakes every watcher once so that
// suspended futures re-poll and observe Err.
func (r *Reactor) finish(state State, cause error) {
	err := api.ErrReactorStopped
	if cause != nil {
		err = fmt.Errorf("%w: %w", api.ErrReactorStopped, cause)
	}
	r.errMu.Lock()
	r.err = err
	r.errMu.Unlock()
	r.state.Store(int32(state))
	woken := r.wakers.WakeAll()
	r.publish()
	r.log.Info().
		Stringer("state", state).
		Int("woken", woken).
		Log("reactor stopped")
}

func (r *Reactor) publish() {
	if r.opts.metrics == nil {
		return
	}
	s := r.Stats()
	r.opts.metrics.SetMany(map[string]any{
		"reactor.state":         r.State().String(),
		"reactor.polls":         s.Polls,
		"reactor.events":        s.Events,
		"reactor.wakes":         s.Wakes,
		"reactor.unrouted":      s.Unrouted,
		"reactor.spurious":      s.Spurious,
		"reactor.dropped":       s.Dropped,
		"reactor.registrations": s.Registrations,
		"reactor.registered":    s.Registered,
		"reactor.watched":       s.Watched,
	})
}

// Stats returns a snapshot of the loop counters.
func (r *Reactor) Stats() Stats {
	return Stats{
		Polls:         r.polls.Load(),
		Events:        r.events.Load(),
		Wakes:         r.wakes.Load(),
		Unrouted:      r.unrouted.Load(),
		Spurious:      r.spurious.Load(),
		Dropped:       r.dropped.Load(),
		Registrations: r.registrations.Load(),
		Registered:    r.registry.Len(),
		Watched:       r.wakers.Len(),
	}
}

// Stop asks the loop to exit after its current wait. Safe to call more than
// once and before Run.
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		if r.state.CompareAndSwap(int32(StateUninitialized), int32(StateStopped)) {
			r.errMu.Lock()
			r.err = api.ErrReactorStopped
			r.errMu.Unlock()
			close(r.done)
			return
		}
		if err := r.poll.Wakeup(); err != nil {
			r.log.Warning().Err(err).Log("reactor wakeup failed")
		}
	})
}

// Shutdown stops the loop, waits for it and releases the multiplexer.
func (r *Reactor) Shutdown() error {
	r.Stop()
	<-r.done
	return r.poll.Close()
}

func (r *Reactor) checkLive() error {
	if s := r.State(); s == StateStopped || s == StateFailed {
		return r.Err()
	}
	return nil
}

// Interest arms fd for in under id. The previous registration for fd, if
// any, is replaced.
func (r *Reactor) Interest(fd int, id api.EventID, in api.Interest) error {
	if err := r.checkLive(); err != nil {
		return err
	}
	if id.Reserved() || id == 0 {
		return api.WrapError(api.ErrCodeInvalidArgument, "reserved event id", api.ErrInvalidArgument).
			WithContext("id", uint64(id))
	}
	if err := r.registry.Register(fd, id, in); err != nil {
		if _, ok := r.limiter.Allow(fd); ok {
			r.log.Warning().Err(err).Int("fd", fd).Log("registration failed")
		}
		return err
	}
	r.registrations.Add(1)
	return nil
}

// ReadInterest arms fd for readability.
func (r *Reactor) ReadInterest(fd int, id api.EventID) error {
	return r.Interest(fd, id, api.InterestRead)
}

// WriteInterest arms fd for writability.
func (r *Reactor) WriteInterest(fd int, id api.EventID) error {
	return r.Interest(fd, id, api.InterestWrite)
}

// Close removes every registration for fd. It never closes fd itself.
func (r *Reactor) Close(fd int) error {
	err := r.registry.RemoveInterests(fd)
	if errors.Is(err, api.ErrClosed) {
		return nil
	}
	return err
}

// NextEventID allocates a fresh, non-reserved, non-zero token.
func (r *Reactor) NextEventID() api.EventID {
	for {
		id := api.EventID(r.nextID.Add(1))
		if id != 0 && !id.Reserved() {
			return id
		}
	}
}

// Watch routes readiness for id to w.
func (r *Reactor) Watch(id api.EventID, w api.Waker) func() {
	return r.wakers.Watch(id, w)
}

// ReportSpurious counts a wakeup that made no progress. Logged at debug,
// rate limited per id.
func (r *Reactor) ReportSpurious(id api.EventID) {
	r.spurious.Add(1)
	if _, ok := r.limiter.Allow(id); ok {
		r.log.Debug().Uint64("id", uint64(id)).Log("spurious wakeup")
	}
}
