// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the reactor interfaces.

package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-reactor/api"
)

// Registration mirrors one kernel-side entry of the fake multiplexer.
type Registration struct {
	ID       api.EventID
	Interest api.Interest
	Armed    bool
}

// Selector is an in-memory readiness multiplexer with one-shot semantics,
// matching the epoll selector. Tests drive readiness with Trigger.
type Selector struct {
	mu      sync.Mutex
	regs    map[int]*Registration
	ready   []api.Event
	signal  chan struct{}
	closed  bool
	waitErr error
	addErr  error

	adds, modifies, deletes, waits, wakeups int
}

// NewSelector creates an empty fake selector.
func NewSelector() *Selector {
	return &Selector{
		regs:   make(map[int]*Registration),
		signal: make(chan struct{}, 1),
	}
}

func (s *Selector) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Add implements reactor.Selector.
func (s *Selector) Add(fd int, id api.EventID, in api.Interest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("fake add fd %d: %w", fd, api.ErrClosed)
	}
	if s.addErr != nil {
		return s.addErr
	}
	if _, ok := s.regs[fd]; ok {
		return fmt.Errorf("fake add fd %d: %w", fd, api.ErrAlreadyExists)
	}
	s.adds++
	s.regs[fd] = &Registration{ID: id, Interest: in, Armed: true}
	return nil
}

// Modify implements reactor.Selector.
func (s *Selector) Modify(fd int, id api.EventID, in api.Interest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("fake mod fd %d: %w", fd, api.ErrClosed)
	}
	reg, ok := s.regs[fd]
	if !ok {
		return fmt.Errorf("fake mod fd %d: %w", fd, api.ErrNotFound)
	}
	s.modifies++
	reg.ID, reg.Interest, reg.Armed = id, in, true
	return nil
}

// Delete implements reactor.Selector.
func (s *Selector) Delete(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("fake del fd %d: %w", fd, api.ErrClosed)
	}
	if _, ok := s.regs[fd]; !ok {
		return fmt.Errorf("fake del fd %d: %w", fd, api.ErrNotFound)
	}
	s.deletes++
	delete(s.regs, fd)
	return nil
}

// Trigger reports readiness r on fd. Like EPOLLONESHOT, an fd fires at most
// once per arming and only for the conditions it registered for; errors and
// hangups always fire. Returns whether an event was queued.
func (s *Selector) Trigger(fd int, r api.Readiness) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[fd]
	if !ok || !reg.Armed {
		return false
	}
	var mask api.Readiness = api.ReadError | api.Hangup
	if reg.Interest&api.InterestRead != 0 {
		mask |= api.Readable
	}
	if reg.Interest&api.InterestWrite != 0 {
		mask |= api.Writable
	}
	if r&mask == 0 {
		return false
	}
	reg.Armed = false
	s.ready = append(s.ready, api.Event{ID: reg.ID, Readiness: r & mask})
	s.notify()
	return true
}

// Wait implements reactor.Selector.
func (s *Selector) Wait(events []api.Event, timeout time.Duration) (int, error) {
	var deadline <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		s.mu.Lock()
		s.waits++
		switch {
		case s.closed:
			s.mu.Unlock()
			return 0, fmt.Errorf("fake wait: %w", api.ErrClosed)
		case s.waitErr != nil:
			err := s.waitErr
			s.mu.Unlock()
			return 0, err
		case len(s.ready) > 0:
			n := copy(events, s.ready)
			s.ready = append(s.ready[:0], s.ready[n:]...)
			if len(s.ready) > 0 {
				s.notify()
			}
			s.mu.Unlock()
			return n, nil
		}
		s.mu.Unlock()

		select {
		case <-s.signal:
			s.mu.Lock()
			empty := len(s.ready) == 0 && !s.closed && s.waitErr == nil
			s.mu.Unlock()
			if empty {
				// a Wakeup with nothing queued
				return 0, nil
			}
		case <-deadline:
			return 0, nil
		}
	}
}

// Wakeup implements reactor.Selector.
func (s *Selector) Wakeup() error {
	s.mu.Lock()
	s.wakeups++
	s.mu.Unlock()
	s.notify()
	return nil
}

// Close implements reactor.Selector.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.notify()
	return nil
}

// SetWaitError makes every following Wait fail with err.
func (s *Selector) SetWaitError(err error) {
	s.mu.Lock()
	s.waitErr = err
	s.mu.Unlock()
	s.notify()
}

// SetAddError makes every following Add fail with err.
func (s *Selector) SetAddError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addErr = err
}

// Lookup returns a copy of the entry for fd.
func (s *Selector) Lookup(fd int) (Registration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[fd]
	if !ok {
		return Registration{}, false
	}
	return *reg, true
}

// Len returns the number of live entries.
func (s *Selector) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.regs)
}

// Counts returns how many Add, Modify and Delete calls succeeded.
func (s *Selector) Counts() (adds, modifies, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adds, s.modifies, s.deletes
}

// Wakeups returns how many times Wakeup was called.
func (s *Selector) Wakeups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wakeups
}
