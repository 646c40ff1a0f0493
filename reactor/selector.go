// File: reactor/selector.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness multiplexer interface.

package reactor

import (
	"time"

	"github.com/momentics/hioload-reactor/api"
)

// NoTimeout makes Wait block until at least one event or a Wakeup.
const NoTimeout time.Duration = -1

// Selector is the thin OS layer under Poll. Add, Modify and Delete must be
// safe to call while another goroutine is blocked in Wait.
//
// Implementations report a duplicate Add with api.ErrAlreadyExists, an
// unknown fd with api.ErrNotFound and a closed fd or selector with
// api.ErrClosed, wrapped around the raw OS error.
type Selector interface {
	// Add arms a new registration for fd.
	Add(fd int, id api.EventID, in api.Interest) error

	// Modify replaces the registration for fd in place.
	Modify(fd int, id api.EventID, in api.Interest) error

	// Delete drops the registration for fd.
	Delete(fd int) error

	// Wait blocks until an event, a Wakeup, or the timeout, and fills events.
	// Interrupted waits return zero events and no error.
	Wait(events []api.Event, timeout time.Duration) (int, error)

	// Wakeup makes a concurrent or the next Wait return promptly.
	Wakeup() error

	// Close releases the OS handle.
	Close() error
}
