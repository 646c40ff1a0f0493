// File: task/atomic_waker.go
// Author: momentics <momentics@gmail.com>

package task

import (
	"sync"

	"github.com/momentics/hioload-reactor/api"
)

// AtomicWaker is a cell holding the most recently registered waker. Only the
// latest poller matters, so Register overwrites. Wake invokes the stored
// waker but keeps it, since a task may be woken several times before it
// completes; Take clears it once the owning future is done.
//
// The zero value is ready to use. Register and Wake may race freely.
type AtomicWaker struct {
	mu    sync.Mutex
	waker api.Waker
	wakes uint64
}

// Register stores w, replacing any previous waker.
func (a *AtomicWaker) Register(w api.Waker) {
	a.mu.Lock()
	a.waker = w
	a.mu.Unlock()
}

// Wake invokes the stored waker, if any, outside the lock. Reports whether a
// waker was present.
func (a *AtomicWaker) Wake() bool {
	a.mu.Lock()
	w := a.waker
	if w != nil {
		a.wakes++
	}
	a.mu.Unlock()
	if w == nil {
		return false
	}
	w.Wake()
	return true
}

// Take removes and returns the stored waker.
func (a *AtomicWaker) Take() api.Waker {
	a.mu.Lock()
	w := a.waker
	a.waker = nil
	a.mu.Unlock()
	return w
}

// Registered reports whether a waker is currently stored.
func (a *AtomicWaker) Registered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.waker != nil
}

// Wakes returns how many times Wake found a waker to invoke.
func (a *AtomicWaker) Wakes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.wakes
}
