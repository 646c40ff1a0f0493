// File: reactor/poll.go
// Author: momentics <momentics@gmail.com>

package reactor

import (
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-reactor/api"
)

// Poll owns one multiplexer instance and the Registry bound to it.
type Poll struct {
	sel      Selector
	registry *Registry
	polling  atomic.Bool
}

// NewPoll creates a Poll on the platform selector.
func NewPoll() (*Poll, error) {
	sel, err := newDefaultSelector()
	if err != nil {
		return nil, err
	}
	return NewPollWithSelector(sel), nil
}

// NewPollWithSelector wraps an existing selector, typically a fake in tests.
func NewPollWithSelector(sel Selector) *Poll {
	return &Poll{sel: sel, registry: newRegistry(sel)}
}

// Registry returns the registry sharing this Poll's multiplexer.
func (p *Poll) Registry() *Registry {
	return p.registry
}

// Poll blocks until at least one registered fd is ready, a Wakeup, or the
// timeout elapses (NoTimeout blocks indefinitely), and returns how many
// events were written. Only one goroutine may poll at a time; a concurrent
// call fails with api.ErrConcurrentPoll.
func (p *Poll) Poll(events []api.Event, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, api.WrapError(api.ErrCodeInvalidArgument, "poll: empty event buffer", api.ErrInvalidArgument)
	}
	if !p.polling.CompareAndSwap(false, true) {
		return 0, api.ErrConcurrentPoll
	}
	defer p.polling.Store(false)

	n, err := p.sel.Wait(events, timeout)
	if err != nil {
		return 0, api.WrapError(api.ErrCodePoll, "poll", err)
	}
	return n, nil
}

// Wakeup interrupts a blocked Poll.
func (p *Poll) Wakeup() error {
	return p.sel.Wakeup()
}

// Close releases the multiplexer.
func (p *Poll) Close() error {
	return p.sel.Close()
}
