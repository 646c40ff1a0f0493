// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the contract between the readiness reactor and the I/O primitives
// that suspend on it.

package api

// Driver is the part of a reactor that I/O primitives depend on. All methods
// are safe to call from any goroutine while the reactor thread is blocked in
// its readiness wait.
type Driver interface {
	// ReadInterest arms fd for readability under id, replacing any previous
	// registration for fd.
	ReadInterest(fd int, id EventID) error

	// WriteInterest arms fd for writability under id.
	WriteInterest(fd int, id EventID) error

	// Interest arms fd for an arbitrary interest set under id.
	Interest(fd int, id EventID, in Interest) error

	// Close drops every registration for fd. Idempotent. It does not close fd.
	Close(fd int) error

	// NextEventID allocates a fresh token.
	NextEventID() EventID

	// Watch routes readiness for id to w until the returned func is called.
	Watch(id EventID, w Waker) (unwatch func())

	// Err is nil while the reactor thread is alive.
	Err() error
}

// SpuriousReporter is optionally implemented by a Driver to count wakeups
// that turned out to make no progress.
type SpuriousReporter interface {
	ReportSpurious(id EventID)
}
