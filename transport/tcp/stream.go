// File: transport/tcp/stream.go
// Author: momentics <momentics@gmail.com>
//
// AsyncTCPStream: a non-blocking TCP socket bound to a reactor Driver.

package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/task"
)

// AsyncTCPStream exclusively owns a connected, non-blocking socket.
type AsyncTCPStream struct {
	fd      int
	id      api.EventID
	driver  api.Driver
	unwatch func()

	readWaker  task.AtomicWaker
	writeWaker task.AtomicWaker

	mu     sync.Mutex
	armed  api.Interest
	closed atomic.Bool

	local  net.Addr
	remote net.Addr
}

// Connect resolves addr and connects with a blocking connect, then hands the
// non-blocking socket to d. Failures leave no fd behind.
func Connect(d api.Driver, addr string) (*AsyncTCPStream, error) {
	if d == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "nil driver")
	}
	fd, err := dialTCP(addr)
	if err != nil {
		return nil, err
	}
	return newStream(d, fd), nil
}

// FromFD adopts an already connected socket. The fd is switched to
// non-blocking mode and is closed by the stream's Close.
func FromFD(d api.Driver, fd int) (*AsyncTCPStream, error) {
	if d == nil || fd < 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "invalid driver or fd").WithContext("fd", fd)
	}
	if err := setNonblock(fd); err != nil {
		return nil, fmt.Errorf("set nonblock: %w", err)
	}
	return newStream(d, fd), nil
}

func newStream(d api.Driver, fd int) *AsyncTCPStream {
	s := &AsyncTCPStream{
		fd:     fd,
		id:     d.NextEventID(),
		driver: d,
		local:  localAddr(fd),
		remote: remoteAddr(fd),
	}
	s.unwatch = d.Watch(s.id, api.WakerFunc(s.onReady))
	return s
}

// onReady runs on the reactor thread. A one-shot registration is disarmed
// as a whole, so both directions have to re-poll and re-arm.
func (s *AsyncTCPStream) onReady() {
	s.mu.Lock()
	s.armed = 0
	s.mu.Unlock()
	s.readWaker.Wake()
	s.writeWaker.Wake()
}

// arm adds in to the registration, keeping the other direction armed. The
// driver call is made under mu so concurrent arms reach the multiplexer in
// the order their merged interest was computed.
func (s *AsyncTCPStream) arm(in api.Interest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed |= in
	return s.driver.Interest(s.fd, s.id, s.armed)
}

func (s *AsyncTCPStream) reportSpurious() {
	if r, ok := s.driver.(api.SpuriousReporter); ok {
		r.ReportSpurious(s.id)
	}
}

func (s *AsyncTCPStream) opError(op string, err error) error {
	return &net.OpError{Op: op, Net: "tcp", Source: s.local, Addr: s.remote, Err: err}
}

// FD returns the underlying descriptor.
func (s *AsyncTCPStream) FD() int { return s.fd }

// ID returns the event id the stream registers under.
func (s *AsyncTCPStream) ID() api.EventID { return s.id }

func (s *AsyncTCPStream) LocalAddr() net.Addr  { return s.local }
func (s *AsyncTCPStream) RemoteAddr() net.Addr { return s.remote }

// Read returns a future resolving to the number of bytes read into buf.
// Zero with a nil error means the peer closed its side. An empty buf
// resolves with api.ErrInvalidArgument instead.
func (s *AsyncTCPStream) Read(buf []byte) *ReadFuture {
	return &ReadFuture{s: s, buf: buf}
}

// Write returns a future resolving to the number of bytes accepted by the
// kernel, which may be fewer than len(buf).
func (s *AsyncTCPStream) Write(buf []byte) *WriteFuture {
	return &WriteFuture{s: s, buf: buf}
}

// WriteAll returns a future that resolves once all of buf is written.
func (s *AsyncTCPStream) WriteAll(buf []byte) *WriteAllFuture {
	return &WriteAllFuture{s: s, buf: buf}
}

// Closed reports whether Close has been called.
func (s *AsyncTCPStream) Closed() bool { return s.closed.Load() }

// Close shuts the socket down, removes its reactor registration, stops
// routing its wakeups and closes the fd. Pending futures are woken and
// resolve with api.ErrClosed. Calling Close again is a no-op.
func (s *AsyncTCPStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if err := shutdownFD(s.fd); err != nil {
		errs = append(errs, s.opError("shutdown", err))
	}
	if err := s.driver.Close(s.fd); err != nil && !errors.Is(err, api.ErrReactorStopped) {
		errs = append(errs, err)
	}
	s.unwatch()
	s.readWaker.Wake()
	s.writeWaker.Wake()
	if err := closeFD(s.fd); err != nil {
		errs = append(errs, s.opError("close", err))
	}
	return errors.Join(errs...)
}
