// File: transport/tcp/listener.go
// Author: momentics <momentics@gmail.com>
//
// AsyncTCPListener accepts connections as AsyncTCPStreams.

package tcp

import (
	"errors"
	"net"
	"os"
	"sync/atomic"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/task"
)

// AsyncTCPListener owns a non-blocking listening socket.
type AsyncTCPListener struct {
	fd      int
	id      api.EventID
	driver  api.Driver
	unwatch func()
	waker   task.AtomicWaker
	closed  atomic.Bool
	addr    net.Addr
}

// Listen binds addr and starts listening. Use port 0 for an ephemeral port
// and Addr to discover it.
func Listen(d api.Driver, addr string) (*AsyncTCPListener, error) {
	if d == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "nil driver")
	}
	fd, err := listenTCP(addr, defaultBacklog)
	if err != nil {
		return nil, err
	}
	l := &AsyncTCPListener{fd: fd, id: d.NextEventID(), driver: d, addr: localAddr(fd)}
	l.unwatch = d.Watch(l.id, api.WakerFunc(func() { l.waker.Wake() }))
	return l, nil
}

func (l *AsyncTCPListener) Addr() net.Addr { return l.addr }

func (l *AsyncTCPListener) FD() int { return l.fd }

// ID returns the event id the listener registers under.
func (l *AsyncTCPListener) ID() api.EventID { return l.id }

// Accept returns a future resolving to the next inbound connection.
func (l *AsyncTCPListener) Accept() *AcceptFuture {
	return &AcceptFuture{l: l}
}

// Close stops listening. Pending accepts resolve with api.ErrClosed.
func (l *AsyncTCPListener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if err := l.driver.Close(l.fd); err != nil && !errors.Is(err, api.ErrReactorStopped) {
		errs = append(errs, err)
	}
	l.unwatch()
	l.waker.Wake()
	if err := closeFD(l.fd); err != nil {
		errs = append(errs, &net.OpError{Op: "close", Net: "tcp", Addr: l.addr, Err: err})
	}
	return errors.Join(errs...)
}

// AcceptFuture resolves to a connected stream bound to the listener's driver.
type AcceptFuture struct {
	l     *AsyncTCPListener
	armed bool
	done  bool
}

func (f *AcceptFuture) Poll(cx *task.Context) task.Poll[*AsyncTCPStream] {
	if f.done {
		panic("tcp: accept future polled after completion")
	}
	l := f.l
	if l.closed.Load() {
		f.done = true
		return task.ReadyErr[*AsyncTCPStream](api.ErrClosed)
	}
	for {
		nfd, err := acceptFD(l.fd)
		switch {
		case err == nil:
			f.done = true
			l.waker.Take()
			return task.Ready(newStream(l.driver, nfd))
		case retryAccept(err):
			continue
		case wouldBlock(err):
			if derr := l.driver.Err(); derr != nil {
				f.done = true
				return task.ReadyErr[*AsyncTCPStream](derr)
			}
			if f.armed {
				if r, ok := l.driver.(api.SpuriousReporter); ok {
					r.ReportSpurious(l.id)
				}
			}
			l.waker.Register(cx.Waker())
			if aerr := l.driver.ReadInterest(l.fd, l.id); aerr != nil {
				f.done = true
				l.waker.Take()
				return task.ReadyErr[*AsyncTCPStream](aerr)
			}
			f.armed = true
			return task.Pending[*AsyncTCPStream]()
		default:
			f.done = true
			l.waker.Take()
			return task.ReadyErr[*AsyncTCPStream](&net.OpError{Op: "accept", Net: "tcp", Addr: l.addr, Err: os.NewSyscallError("accept4", err)})
		}
	}
}
