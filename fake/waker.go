// Package fake
// Author: momentics <momentics@gmail.com>

package fake

import "sync/atomic"

// Waker counts wakes and signals each one on C without blocking.
type Waker struct {
	n  atomic.Int64
	ch chan struct{}
}

// NewWaker creates a waker whose channel buffers up to 64 signals.
func NewWaker() *Waker {
	return &Waker{ch: make(chan struct{}, 64)}
}

func (w *Waker) Wake() {
	w.n.Add(1)
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Count returns the number of Wake calls so far.
func (w *Waker) Count() int64 { return w.n.Load() }

// C receives one value per Wake, up to the buffer size.
func (w *Waker) C() <-chan struct{} { return w.ch }
