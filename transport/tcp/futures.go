// File: transport/tcp/futures.go
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"io"
	"os"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/task"
)

// errEmptyRead keeps a zero-length read from resolving like EOF.
var errEmptyRead = api.WrapError(api.ErrCodeInvalidArgument, "read into empty buffer", api.ErrInvalidArgument)

// ioStep is one syscall attempt against an AsyncTCPStream.
type ioStep struct {
	s       *AsyncTCPStream
	waker   *task.AtomicWaker
	in      api.Interest
	op      string
	armed   bool
	done    bool
	syscall func(fd int, buf []byte) (int, error)
}

// poll tries the syscall once, retrying EINTR. On EAGAIN it registers the
// task's waker before arming the fd, so readiness arriving between the two
// still finds a waker to call.
func (st *ioStep) poll(cx *task.Context, buf []byte) task.Poll[int] {
	if st.done {
		panic("tcp: " + st.op + " future polled after completion")
	}
	s := st.s
	if s.closed.Load() {
		st.done = true
		return task.ReadyErr[int](api.ErrClosed)
	}
	for {
		n, err := st.syscall(s.fd, buf)
		switch {
		case err == nil:
			st.done = true
			st.waker.Take()
			return task.Ready(n)
		case interrupted(err):
			continue
		case wouldBlock(err):
			if derr := s.driver.Err(); derr != nil {
				st.done = true
				return task.ReadyErr[int](derr)
			}
			if st.armed {
				// Woken, yet the socket is still not ready.
				s.reportSpurious()
			}
			st.waker.Register(cx.Waker())
			if aerr := s.arm(st.in); aerr != nil {
				st.done = true
				st.waker.Take()
				return task.ReadyErr[int](aerr)
			}
			st.armed = true
			return task.Pending[int]()
		default:
			st.done = true
			st.waker.Take()
			return task.ReadyErr[int](s.opError(st.op, os.NewSyscallError(st.op, err)))
		}
	}
}

// ReadFuture resolves to the byte count of a single read.
type ReadFuture struct {
	s   *AsyncTCPStream
	buf []byte
	st  *ioStep
}

func (f *ReadFuture) Poll(cx *task.Context) task.Poll[int] {
	if f.st == nil {
		f.st = &ioStep{s: f.s, waker: &f.s.readWaker, in: api.InterestRead, op: "read", syscall: readFD}
		if len(f.buf) == 0 {
			f.st.done = true
			return task.ReadyErr[int](errEmptyRead)
		}
	}
	return f.st.poll(cx, f.buf)
}

// WriteFuture resolves to the byte count of a single write.
type WriteFuture struct {
	s   *AsyncTCPStream
	buf []byte
	st  *ioStep
}

func (f *WriteFuture) Poll(cx *task.Context) task.Poll[int] {
	if f.st == nil {
		f.st = &ioStep{s: f.s, waker: &f.s.writeWaker, in: api.InterestWrite, op: "write", syscall: writeFD}
	}
	return f.st.poll(cx, f.buf)
}

// WriteAllFuture keeps issuing writes until the whole buffer is out.
type WriteAllFuture struct {
	s       *AsyncTCPStream
	buf     []byte
	written int
	cur     *WriteFuture
}

func (f *WriteAllFuture) Poll(cx *task.Context) task.Poll[int] {
	for f.written < len(f.buf) {
		if f.cur == nil {
			f.cur = f.s.Write(f.buf[f.written:])
		}
		p := f.cur.Poll(cx)
		if p.IsPending() {
			return p
		}
		n, err := p.Result().Unpack()
		f.cur = nil
		if err != nil {
			return task.ReadyErr[int](err)
		}
		f.written += n
	}
	return task.Ready(f.written)
}

type readFullState uint8

const (
	readFullReading readFullState = iota
	readFullDone
)

// ReadFullFuture reads until buf is full. It resolves with io.ErrUnexpectedEOF
// and the partial count if the peer closes first.
type ReadFullFuture struct {
	s     *AsyncTCPStream
	buf   []byte
	n     int
	cur   *ReadFuture
	state readFullState
}

// ReadFull returns a future that fills buf completely.
func (s *AsyncTCPStream) ReadFull(buf []byte) *ReadFullFuture {
	return &ReadFullFuture{s: s, buf: buf}
}

func (f *ReadFullFuture) Poll(cx *task.Context) task.Poll[int] {
	if f.state == readFullDone {
		panic("tcp: read-full future polled after completion")
	}
	for f.n < len(f.buf) {
		if f.cur == nil {
			f.cur = f.s.Read(f.buf[f.n:])
		}
		p := f.cur.Poll(cx)
		if p.IsPending() {
			return p
		}
		f.cur = nil
		n, err := p.Result().Unpack()
		if err != nil {
			f.state = readFullDone
			return task.ReadyErr[int](err)
		}
		if n == 0 {
			f.state = readFullDone
			return task.Resolve(f.n, io.ErrUnexpectedEOF)
		}
		f.n += n
	}
	f.state = readFullDone
	return task.Ready(f.n)
}
