// File: task/shared_state.go
// Author: momentics <momentics@gmail.com>

package task

import "sync/atomic"

// SharedState is a one-shot completion signal shared between a future and
// whatever background goroutine eventually finishes the work.
//
// Complete publishes the flag before waking. The future registers its waker
// first and reads the flag second, so a completion racing with a poll is
// always seen by one side or the other.
type SharedState struct {
	completed atomic.Bool
	waker     AtomicWaker
}

// NewSharedState returns an incomplete state.
func NewSharedState() *SharedState {
	return &SharedState{}
}

// Complete marks the state done and wakes the registered poller. Only the
// first call has an effect.
func (s *SharedState) Complete() {
	if s.completed.Swap(true) {
		return
	}
	s.waker.Wake()
}

// Completed reports whether Complete has been called.
func (s *SharedState) Completed() bool {
	return s.completed.Load()
}

// Future resolves once Complete has been called.
func (s *SharedState) Future() Future[struct{}] {
	return FutureFunc[struct{}](s.poll)
}

func (s *SharedState) poll(cx *Context) Poll[struct{}] {
	if s.completed.Load() {
		s.waker.Take()
		return Ready(struct{}{})
	}
	s.waker.Register(cx.Waker())
	if s.completed.Load() {
		s.waker.Take()
		return Ready(struct{}{})
	}
	return Pending[struct{}]()
}
