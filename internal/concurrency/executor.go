// File: internal/concurrency/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/internal/logging"
	"github.com/momentics/hioload-reactor/task"
)

// handle is a spawned task. It is its own waker.
type handle struct {
	id     uint64
	fut    task.Future[struct{}]
	ex     *Executor
	queued atomic.Bool
	done   atomic.Bool
}

func (h *handle) Wake() {
	if h.queued.CompareAndSwap(false, true) {
		h.ex.enqueue(h)
	}
}

type callback struct {
	fn   func()
	keep bool
}

// Executor polls spawned futures on whichever goroutine calls Run, RunEvents
// or BlockOn. Only one of those may be active at a time; Spawn, Submit and
// the wakers are safe from any goroutine.
type Executor struct {
	mu      sync.Mutex
	ready   *queue.Queue
	signal  chan struct{}
	live    int
	closed  bool
	running atomic.Bool

	cbMu      sync.Mutex
	callbacks map[api.EventID]callback

	log     *logging.Logger
	metrics api.Metrics

	nextID atomic.Uint64

	spawned, completed, polls, panics, dispatched atomic.Int64
}

var _ api.Spawner = (*Executor)(nil)
var _ api.GracefulShutdown = (*Executor)(nil)

// NewExecutor creates an idle executor.
func NewExecutor(opts ...Option) *Executor {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Executor{
		ready:     queue.New(),
		signal:    make(chan struct{}, 1),
		callbacks: make(map[api.EventID]callback),
		log:       o.logger,
		metrics:   o.metrics,
	}
}

func (e *Executor) enqueue(h *handle) {
	e.mu.Lock()
	e.ready.Add(h)
	e.mu.Unlock()
	e.notify()
}

func (e *Executor) notify() {
	select {
	case e.signal <- struct{}{}:
	default:
	}
}

func (e *Executor) pop() *handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready.Length() == 0 {
		return nil
	}
	return e.ready.Remove().(*handle)
}

// Spawn schedules f to be polled until it completes.
func (e *Executor) Spawn(f task.Future[struct{}]) error {
	_, err := e.spawn(f)
	return err
}

func (e *Executor) spawn(f task.Future[struct{}]) (*handle, error) {
	if f == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "nil future")
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, api.ErrExecutorClosed
	}
	e.live++
	e.mu.Unlock()
	e.spawned.Add(1)
	h := &handle{id: e.nextID.Add(1), fut: f, ex: e}
	h.Wake()
	return h, nil
}

// retire marks h finished. Only the first call counts.
func (e *Executor) retire(h *handle) bool {
	if !h.done.CompareAndSwap(false, true) {
		return false
	}
	e.mu.Lock()
	e.live--
	e.mu.Unlock()
	return true
}

// Submit runs fn once as a task.
func (e *Executor) Submit(fn func()) error {
	if fn == nil {
		return api.NewError(api.ErrCodeInvalidArgument, "nil task")
	}
	return e.Spawn(task.FutureFunc[struct{}](func(*task.Context) task.Poll[struct{}] {
		fn()
		return task.Ready(struct{}{})
	}))
}

// Pending returns the number of spawned tasks that have not finished.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live
}

// runTask polls h once. The queued flag is cleared first so a wake that
// happens during the poll schedules another one.
func (e *Executor) runTask(h *handle) {
	if h.done.Load() {
		return
	}
	h.queued.Store(false)
	e.polls.Add(1)
	ready := e.poll(h)
	if ready && e.retire(h) {
		e.completed.Add(1)
	}
}

func (e *Executor) poll(h *handle) (ready bool) {
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
			e.log.Err().
				Uint64("task", h.id).
				Str("panic", fmt.Sprint(r)).
				Log("task panicked, dropping it")
			ready = true
		}
	}()
	p := h.fut.Poll(task.NewContext(h))
	if p.IsReady() {
		if err := p.Result().Err; err != nil {
			e.log.Debug().Uint64("task", h.id).Err(err).Log("task finished with error")
		}
		return true
	}
	return false
}

// drive polls ready tasks until stop reports true, ctx ends, or events is
// closed. A nil events channel is never selected.
func (e *Executor) drive(ctx context.Context, events <-chan api.EventID, stop func() bool) error {
	if !e.running.CompareAndSwap(false, true) {
		return api.ErrAlreadyRunning
	}
	defer e.running.Store(false)
	defer e.publish()
	for {
		for h := e.pop(); h != nil; h = e.pop() {
			e.runTask(h)
			if stop() {
				return nil
			}
		}
		if stop() {
			return nil
		}
		e.publish()
		select {
		case <-e.signal:
		case id, ok := <-events:
			if !ok {
				return nil
			}
			e.Dispatch(id)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run polls tasks until none are left or ctx is done.
func (e *Executor) Run(ctx context.Context) error {
	return e.drive(ctx, nil, func() bool { return e.Pending() == 0 })
}

// RunEvents polls tasks and dispatches every id received on events to its
// AwaitOnce/AwaitKeep callback. It returns when events is closed or ctx is
// done.
func (e *Executor) RunEvents(ctx context.Context, events <-chan api.EventID) error {
	return e.drive(ctx, events, func() bool { return false })
}

// BlockOn spawns f and drives the executor until f completes, returning its
// result. Other spawned tasks make progress meanwhile.
func BlockOn[T any](e *Executor, f task.Future[T]) (T, error) {
	return BlockOnContext(context.Background(), e, f)
}

// BlockOnContext is BlockOn bounded by ctx. If ctx ends first, f is
// abandoned: it is never polled again and no longer counts as pending.
func BlockOnContext[T any](ctx context.Context, e *Executor, f task.Future[T]) (T, error) {
	return BlockOnEvents(ctx, e, nil, f)
}

// BlockOnEvents is BlockOnContext that also dispatches ids received on
// events while it waits, so a reactor publishing to events is drained.
// A closed events channel abandons f with api.ErrClosed.
func BlockOnEvents[T any](ctx context.Context, e *Executor, events <-chan api.EventID, f task.Future[T]) (T, error) {
	var (
		res  api.Result[T]
		done bool
	)
	root := task.FutureFunc[struct{}](func(cx *task.Context) task.Poll[struct{}] {
		p := f.Poll(cx)
		if p.IsPending() {
			return task.Pending[struct{}]()
		}
		res, done = p.Result(), true
		return task.Ready(struct{}{})
	})
	h, err := e.spawn(root)
	if err != nil {
		var zero T
		return zero, err
	}
	err = e.drive(ctx, events, func() bool { return done })
	if err == nil && !done {
		err = api.ErrClosed
	}
	if err != nil {
		if e.retire(h) {
			e.log.Debug().Uint64("task", h.id).Err(err).Log("abandoned blocked-on task")
		}
		var zero T
		return zero, err
	}
	return res.Unpack()
}

// AwaitOnce runs fn the next time id is dispatched.
func (e *Executor) AwaitOnce(id api.EventID, fn func()) {
	e.cbMu.Lock()
	e.callbacks[id] = callback{fn: fn}
	e.cbMu.Unlock()
}

// AwaitKeep runs fn every time id is dispatched, until Forget.
func (e *Executor) AwaitKeep(id api.EventID, fn func()) {
	e.cbMu.Lock()
	e.callbacks[id] = callback{fn: fn, keep: true}
	e.cbMu.Unlock()
}

// Forget drops the callback for id.
func (e *Executor) Forget(id api.EventID) {
	e.cbMu.Lock()
	delete(e.callbacks, id)
	e.cbMu.Unlock()
}

// Dispatch runs the callback registered for id. Reports whether there was
// one. Ids without a callback are ignored.
func (e *Executor) Dispatch(id api.EventID) bool {
	e.cbMu.Lock()
	cb, ok := e.callbacks[id]
	if ok && !cb.keep {
		delete(e.callbacks, id)
	}
	e.cbMu.Unlock()
	if !ok {
		e.log.Trace().Uint64("id", uint64(id)).Log("no callback for event")
		return false
	}
	e.dispatched.Add(1)
	cb.fn()
	return true
}

// Shutdown rejects further spawns. Tasks already queued are abandoned once
// the driving call returns.
func (e *Executor) Shutdown() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.notify()
	return nil
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	e.mu.Lock()
	queued := int64(e.ready.Length())
	live := int64(e.live)
	e.mu.Unlock()
	e.cbMu.Lock()
	callbacks := int64(len(e.callbacks))
	e.cbMu.Unlock()
	return map[string]int64{
		"total_tasks":     e.spawned.Load(),
		"completed_tasks": e.completed.Load(),
		"pending_tasks":   live,
		"queued_tasks":    queued,
		"polls":           e.polls.Load(),
		"panics":          e.panics.Load(),
		"dispatched":      e.dispatched.Load(),
		"callbacks":       callbacks,
	}
}

func (e *Executor) publish() {
	if e.metrics == nil {
		return
	}
	stats := e.Stats()
	m := make(map[string]any, len(stats))
	for k, v := range stats {
		m["executor."+k] = v
	}
	e.metrics.SetMany(m)
}
