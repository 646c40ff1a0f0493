//go:build linux
// +build linux

// File: reactor/selector_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based selector.

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reactor/api"
)

// wakeupID tags the eventfd used to interrupt EpollWait.
const wakeupID = api.ReservedEventIDs | 1

// epollSelector is an epoll-based Selector.
type epollSelector struct {
	epfd      int
	wakeFd    int
	raw       []unix.EpollEvent // touched by Wait only
	closeOnce sync.Once
	closeErr  error
}

// NewEpollSelector creates an epoll instance plus the eventfd used by Wakeup.
func NewEpollSelector() (Selector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	// The wakeup fd stays level-triggered so a pending wakeup is never lost.
	ev := unix.EpollEvent{Events: unix.EPOLLIN}
	setEventID(&ev, wakeupID)
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		_ = unix.Close(wakeFd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return &epollSelector{epfd: epfd, wakeFd: wakeFd}, nil
}

func newDefaultSelector() (Selector, error) {
	return NewEpollSelector()
}

// setEventID packs the 64-bit token into the epoll user data.
func setEventID(ev *unix.EpollEvent, id api.EventID) {
	ev.Fd = int32(uint32(id))
	ev.Pad = int32(uint32(id >> 32))
}

func eventID(ev *unix.EpollEvent) api.EventID {
	return api.EventID(uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32)
}

func epollFlags(in api.Interest) uint32 {
	flags := uint32(unix.EPOLLONESHOT | unix.EPOLLRDHUP)
	if in&api.InterestRead != 0 {
		flags |= unix.EPOLLIN
	}
	if in&api.InterestWrite != 0 {
		flags |= unix.EPOLLOUT
	}
	return flags
}

func readiness(flags uint32) api.Readiness {
	var r api.Readiness
	if flags&unix.EPOLLIN != 0 {
		r |= api.Readable
	}
	if flags&unix.EPOLLOUT != 0 {
		r |= api.Writable
	}
	if flags&unix.EPOLLERR != 0 {
		r |= api.ReadError
	}
	if flags&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		r |= api.Hangup
	}
	return r
}

// classify maps the errnos callers branch on to the api sentinels.
func classify(op string, fd int, err error) error {
	switch {
	case errors.Is(err, unix.EEXIST):
		return fmt.Errorf("epoll ctl %s fd %d: %w: %w", op, fd, api.ErrAlreadyExists, err)
	case errors.Is(err, unix.ENOENT):
		return fmt.Errorf("epoll ctl %s fd %d: %w: %w", op, fd, api.ErrNotFound, err)
	case errors.Is(err, unix.EBADF):
		return fmt.Errorf("epoll ctl %s fd %d: %w: %w", op, fd, api.ErrClosed, err)
	default:
		return fmt.Errorf("epoll ctl %s fd %d: %w", op, fd, err)
	}
}

func (s *epollSelector) ctl(op int, name string, fd int, id api.EventID, in api.Interest) error {
	ev := unix.EpollEvent{Events: epollFlags(in)}
	setEventID(&ev, id)
	if err := unix.EpollCtl(s.epfd, op, fd, &ev); err != nil {
		return classify(name, fd, err)
	}
	return nil
}

func (s *epollSelector) Add(fd int, id api.EventID, in api.Interest) error {
	return s.ctl(unix.EPOLL_CTL_ADD, "add", fd, id, in)
}

func (s *epollSelector) Modify(fd int, id api.EventID, in api.Interest) error {
	return s.ctl(unix.EPOLL_CTL_MOD, "mod", fd, id, in)
}

func (s *epollSelector) Delete(fd int) error {
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return classify("del", fd, err)
	}
	return nil
}

func timeoutMillis(timeout time.Duration) int {
	switch {
	case timeout < 0:
		return -1
	case timeout == 0:
		return 0
	case timeout < time.Millisecond:
		return 1
	default:
		return int(timeout / time.Millisecond)
	}
}

// Wait blocks in EpollWait. The wakeup eventfd is drained and filtered out.
func (s *epollSelector) Wait(events []api.Event, timeout time.Duration) (int, error) {
	if cap(s.raw) < len(events) {
		s.raw = make([]unix.EpollEvent, len(events))
	}
	raw := s.raw[:len(events)]
	n, err := unix.EpollWait(s.epfd, raw, timeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		if errors.Is(err, unix.EBADF) {
			return 0, fmt.Errorf("epoll wait: %w: %w", api.ErrClosed, err)
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	k := 0
	for i := 0; i < n; i++ {
		id := eventID(&raw[i])
		if id == wakeupID {
			s.drainWakeup()
			continue
		}
		events[k] = api.Event{ID: id, Readiness: readiness(raw[i].Events)}
		k++
	}
	return k, nil
}

func (s *epollSelector) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(s.wakeFd, buf[:]); err != nil {
			return
		}
	}
}

// Wakeup bumps the eventfd counter. A saturated counter already guarantees
// a wakeup, so EAGAIN is ignored.
func (s *epollSelector) Wakeup() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(s.wakeFd, buf[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Close closes the eventfd and the epoll instance.
func (s *epollSelector) Close() error {
	s.closeOnce.Do(func() {
		err1 := unix.Close(s.wakeFd)
		err2 := unix.Close(s.epfd)
		s.closeErr = errors.Join(err1, err2)
	})
	return s.closeErr
}
