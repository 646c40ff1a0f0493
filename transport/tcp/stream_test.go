//go:build linux

package tcp_test

import (
	"errors"
	"io"
	"net"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reactor/api"
	"github.com/momentics/hioload-reactor/fake"
	"github.com/momentics/hioload-reactor/task"
	"github.com/momentics/hioload-reactor/transport/tcp"
)

// socketPair returns a stream wrapping one end and the raw peer fd.
func socketPair(t *testing.T, d api.Driver) (*tcp.AsyncTCPStream, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	s, err := tcp.FromFD(d, fds[0])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = unix.Close(fds[1])
	})
	return s, fds[1]
}

func interestCalls(d *fake.Driver) []fake.Call {
	var out []fake.Call
	for _, c := range d.Calls() {
		if c.Op == "interest" {
			out = append(out, c)
		}
	}
	return out
}

func pollUntilReady[T any](t *testing.T, f task.Future[T], cx *task.Context) (T, error) {
	t.Helper()
	var p task.Poll[T]
	require.Eventually(t, func() bool {
		p = f.Poll(cx)
		return p.IsReady()
	}, 5*time.Second, time.Millisecond)
	return p.Result().Unpack()
}

func TestReadPendingThenReady(t *testing.T) {
	d := fake.NewDriver()
	s, peer := socketPair(t, d)
	w := fake.NewWaker()
	cx := task.NewContext(w)

	buf := make([]byte, 16)
	f := s.Read(buf)
	assert.Empty(t, d.Calls(), "no I/O before the first poll")

	require.True(t, f.Poll(cx).IsPending())
	calls := interestCalls(d)
	require.Len(t, calls, 1)
	assert.Equal(t, s.FD(), calls[0].FD)
	assert.Equal(t, s.ID(), calls[0].ID)
	assert.Equal(t, api.InterestRead, calls[0].Interest)

	_, err := unix.Write(peer, []byte("hello"))
	require.NoError(t, err)
	require.True(t, d.Fire(s.ID()))
	assert.EqualValues(t, 1, w.Count())

	p := f.Poll(cx)
	require.True(t, p.IsReady())
	n, err := p.Result().Unpack()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.Zero(t, d.Spurious())
}

func TestReadToleratesSpuriousWake(t *testing.T) {
	d := fake.NewDriver()
	s, peer := socketPair(t, d)
	w := fake.NewWaker()
	cx := task.NewContext(w)

	f := s.Read(make([]byte, 8))
	require.True(t, f.Poll(cx).IsPending())

	// Wake with nothing to read.
	require.True(t, d.Fire(s.ID()))
	require.True(t, f.Poll(cx).IsPending())
	assert.EqualValues(t, 1, d.Spurious())
	assert.Len(t, interestCalls(d), 2, "re-armed after the spurious wake")

	_, err := unix.Write(peer, []byte("x"))
	require.NoError(t, err)
	d.Fire(s.ID())
	n, err := f.Poll(cx).Result().Unpack()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReadEOFIsZero(t *testing.T) {
	d := fake.NewDriver()
	s, peer := socketPair(t, d)
	require.NoError(t, unix.Shutdown(peer, unix.SHUT_WR))

	p := s.Read(make([]byte, 8)).Poll(task.NewContext(fake.NewWaker()))
	require.True(t, p.IsReady())
	n, err := p.Result().Unpack()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReadConnectionReset(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	d := fake.NewDriver()
	s, err := tcp.Connect(d, ln.Addr().String())
	require.NoError(t, err)
	defer s.Close()

	c, err := ln.Accept()
	require.NoError(t, err)
	require.NoError(t, c.(*net.TCPConn).SetLinger(0))
	require.NoError(t, c.Close())

	_, err = pollUntilReady[int](t, s.Read(make([]byte, 8)), task.NewContext(fake.NewWaker()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.ECONNRESET), "got %v", err)
	var opErr *net.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "read", opErr.Op)
}

func TestPendingReadAndWriteMergeInterest(t *testing.T) {
	d := fake.NewDriver()
	s, _ := socketPair(t, d)
	cx := task.NewContext(fake.NewWaker())

	require.True(t, s.Read(make([]byte, 8)).Poll(cx).IsPending())

	chunk := make([]byte, 64*1024)
	for i := 0; ; i++ {
		require.Less(t, i, 10000, "socket buffer never filled")
		if s.Write(chunk).Poll(cx).IsPending() {
			break
		}
	}
	calls := interestCalls(d)
	require.Len(t, calls, 2)
	assert.Equal(t, api.InterestRead, calls[0].Interest)
	assert.Equal(t, api.InterestBoth, calls[1].Interest)

	// Readiness disarms the registration; the next arm starts from scratch.
	d.Fire(s.ID())
	require.True(t, s.Read(make([]byte, 8)).Poll(cx).IsPending())
	calls = interestCalls(d)
	assert.Equal(t, api.InterestRead, calls[len(calls)-1].Interest)
}

func TestConcurrentArmsKeepMergedInterest(t *testing.T) {
	d := fake.NewDriver()
	s, _ := socketPair(t, d)
	chunk := make([]byte, 64*1024)
	for i := 0; ; i++ {
		require.Less(t, i, 10000, "socket buffer never filled")
		if _, err := unix.Write(s.FD(), chunk); errors.Is(err, unix.EAGAIN) {
			break
		}
	}

	writeDone := make(chan bool, 1)
	var once sync.Once
	d.OnInterest(func(c fake.Call) {
		if c.Interest != api.InterestRead {
			return
		}
		once.Do(func() {
			// A write task arms the same stream while this read arm is in flight.
			go func() {
				writeDone <- s.Write(chunk).Poll(task.NewContext(fake.NewWaker())).IsPending()
			}()
			time.Sleep(50 * time.Millisecond)
		})
	})

	require.True(t, s.Read(make([]byte, 8)).Poll(task.NewContext(fake.NewWaker())).IsPending())
	select {
	case pending := <-writeDone:
		require.True(t, pending)
	case <-time.After(5 * time.Second):
		t.Fatal("write poll never returned")
	}
	calls := interestCalls(d)
	require.Len(t, calls, 2)
	assert.Equal(t, api.InterestBoth, calls[len(calls)-1].Interest)
}

func TestCloseIsIdempotentAndWakesPending(t *testing.T) {
	d := fake.NewDriver()
	s, _ := socketPair(t, d)
	w := fake.NewWaker()
	cx := task.NewContext(w)

	f := s.Read(make([]byte, 8))
	require.True(t, f.Poll(cx).IsPending())
	require.Equal(t, 1, d.Watched())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.Zero(t, d.Watched())
	assert.EqualValues(t, 1, w.Count())

	var closes int
	for _, c := range d.Calls() {
		if c.Op == "close" {
			closes++
			assert.Equal(t, s.FD(), c.FD)
		}
	}
	assert.Equal(t, 1, closes)

	_, err := f.Poll(cx).Result().Unpack()
	assert.ErrorIs(t, err, api.ErrClosed)
	_, err = s.Write([]byte("x")).Poll(cx).Result().Unpack()
	assert.ErrorIs(t, err, api.ErrClosed)
}

func TestDeadDriverFailsPendingRead(t *testing.T) {
	d := fake.NewDriver()
	s, _ := socketPair(t, d)
	w := fake.NewWaker()
	cx := task.NewContext(w)

	f := s.Read(make([]byte, 8))
	require.True(t, f.Poll(cx).IsPending())
	d.Kill(api.ErrReactorStopped)
	assert.EqualValues(t, 1, w.Count())

	_, err := f.Poll(cx).Result().Unpack()
	assert.ErrorIs(t, err, api.ErrReactorStopped)
}

func TestInterestFailureResolvesRead(t *testing.T) {
	d := fake.NewDriver()
	s, _ := socketPair(t, d)
	boom := errors.New("boom")
	d.SetInterestError(boom)

	_, err := s.Read(make([]byte, 8)).Poll(task.NewContext(fake.NewWaker())).Result().Unpack()
	assert.ErrorIs(t, err, boom)
}

func TestPollAfterCompletionPanics(t *testing.T) {
	d := fake.NewDriver()
	s, peer := socketPair(t, d)
	_, err := unix.Write(peer, []byte("a"))
	require.NoError(t, err)
	cx := task.NewContext(fake.NewWaker())

	f := s.Read(make([]byte, 8))
	require.True(t, f.Poll(cx).IsReady())
	assert.Panics(t, func() { f.Poll(cx) })
}

func TestWriteAllAndReadFull(t *testing.T) {
	d := fake.NewDriver()
	a, b := socketPair(t, d)
	cx := task.NewContext(fake.NewWaker())

	payload := make([]byte, 256*1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	wf := a.WriteAll(payload)
	got := make([]byte, len(payload))
	var off int
	require.Eventually(t, func() bool {
		wf.Poll(cx)
		n, err := unix.Read(b, got[off:])
		if err == nil {
			off += n
		}
		return off == len(payload)
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, payload, got)

	_, err := unix.Write(b, []byte("abc"))
	require.NoError(t, err)
	rf := a.ReadFull(make([]byte, 6))
	require.True(t, rf.Poll(cx).IsPending())
	_, err = unix.Write(b, []byte("def"))
	require.NoError(t, err)
	n, err := rf.Poll(cx).Result().Unpack()
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	require.NoError(t, unix.Shutdown(b, unix.SHUT_WR))
	n, err = a.ReadFull(make([]byte, 4)).Poll(cx).Result().Unpack()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Zero(t, n)
}

func TestListenAcceptConnect(t *testing.T) {
	d := fake.NewDriver()
	l, err := tcp.Listen(d, "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	cx := task.NewContext(fake.NewWaker())

	af := l.Accept()
	require.True(t, af.Poll(cx).IsPending())
	calls := interestCalls(d)
	require.Len(t, calls, 1)
	assert.Equal(t, l.FD(), calls[0].FD)
	assert.Equal(t, api.InterestRead, calls[0].Interest)

	client, err := tcp.Connect(d, l.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, l.Addr().String(), client.RemoteAddr().String())

	server, err := pollUntilReady[*tcp.AsyncTCPStream](t, af, cx)
	require.NoError(t, err)
	defer server.Close()
	assert.NotEqual(t, client.ID(), server.ID())

	n, err := pollUntilReady[int](t, client.WriteAll([]byte("ping")), cx)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	buf := make([]byte, 4)
	_, err = pollUntilReady[int](t, server.ReadFull(buf), cx)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	require.NoError(t, l.Close())
	_, err = l.Accept().Poll(cx).Result().Unpack()
	assert.ErrorIs(t, err, api.ErrClosed)
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = tcp.Connect(fake.NewDriver(), addr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.ECONNREFUSED), "got %v", err)
}

func TestNilDriverRejected(t *testing.T) {
	_, err := tcp.Connect(nil, "127.0.0.1:1")
	assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err))
}

func TestReadEmptyBufferIsNotEOF(t *testing.T) {
	d := fake.NewDriver()
	s, _ := socketPair(t, d)
	f := s.Read(nil)
	n, err := f.Poll(task.NewContext(fake.NewWaker())).Result().Unpack()
	assert.Zero(t, n)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err))
	assert.Empty(t, interestCalls(d))
	assert.Panics(t, func() { f.Poll(task.NewContext(fake.NewWaker())) })
}
