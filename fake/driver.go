// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/task"
)

// Call records one Driver method invocation.
type Call struct {
	Op       string
	FD       int
	ID       api.EventID
	Interest api.Interest
}

// Driver is an api.Driver that records interest changes instead of talking
// to a multiplexer. Readiness is simulated with Fire.
type Driver struct {
	mu       sync.Mutex
	calls    []Call
	err      error
	regErr   error
	nextID   atomic.Uint64
	spurious atomic.Int64
	wakers   *task.WakerTable
	hook     func(Call)
}

var _ api.Driver = (*Driver)(nil)
var _ api.SpuriousReporter = (*Driver)(nil)

// NewDriver creates an empty fake driver.
func NewDriver() *Driver {
	return &Driver{wakers: task.NewWakerTable()}
}

func (d *Driver) record(c Call) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	if d.regErr != nil && c.Op == "interest" {
		return d.regErr
	}
	d.calls = append(d.calls, c)
	return nil
}

func (d *Driver) ReadInterest(fd int, id api.EventID) error {
	return d.Interest(fd, id, api.InterestRead)
}

func (d *Driver) WriteInterest(fd int, id api.EventID) error {
	return d.Interest(fd, id, api.InterestWrite)
}

func (d *Driver) Interest(fd int, id api.EventID, in api.Interest) error {
	c := Call{Op: "interest", FD: fd, ID: id, Interest: in}
	d.mu.Lock()
	hook := d.hook
	d.mu.Unlock()
	if hook != nil {
		hook(c)
	}
	return d.record(c)
}

// OnInterest installs fn to run at the start of every Interest call,
// before it is recorded and without the driver lock held.
func (d *Driver) OnInterest(fn func(Call)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hook = fn
}

func (d *Driver) Close(fd int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: "close", FD: fd})
	return nil
}

func (d *Driver) NextEventID() api.EventID {
	return api.EventID(d.nextID.Add(1))
}

func (d *Driver) Watch(id api.EventID, w api.Waker) func() {
	return d.wakers.Watch(id, w)
}

func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Driver) ReportSpurious(api.EventID) {
	d.spurious.Add(1)
}

// Fire simulates readiness for id.
func (d *Driver) Fire(id api.EventID) bool {
	return d.wakers.Wake(id)
}

// Kill makes the driver behave like a dead reactor: Err returns err, every
// call fails and all watchers are woken.
func (d *Driver) Kill(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
	d.wakers.WakeAll()
}

// SetInterestError makes following interest calls fail with err.
func (d *Driver) SetInterestError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regErr = err
}

// Calls returns a copy of the recorded calls.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Watched returns the number of routed ids.
func (d *Driver) Watched() int { return d.wakers.Len() }

// Spurious returns how many spurious wakeups were reported.
func (d *Driver) Spurious() int64 { return d.spurious.Load() }
