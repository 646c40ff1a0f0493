//go:build linux
// +build linux

// File: transport/tcp/socket_linux.go
// Author: momentics <momentics@gmail.com>
//
// Raw socket syscalls for Linux.

package tcp

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

const defaultBacklog = 1024

func toSockaddr(ta *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := ta.IP.To4(); ip4 != nil || ta.IP == nil {
		sa := &unix.SockaddrInet4{Port: ta.Port}
		if ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: ta.Port}
	copy(sa.Addr[:], ta.IP.To16())
	if ta.Zone != "" {
		if ifi, err := net.InterfaceByName(ta.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return unix.AF_INET6, sa
}

func fromSockaddr(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), sa.Addr[:]...)), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), sa.Addr[:]...)), Port: sa.Port}
	default:
		return nil
	}
}

func localAddr(fd int) net.Addr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil
	}
	return fromSockaddr(sa)
}

func remoteAddr(fd int) net.Addr {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return nil
	}
	return fromSockaddr(sa)
}

// dialTCP resolves and connects with blocking syscalls, then switches the
// socket to non-blocking mode before anyone else can see the fd.
func dialTCP(addr string) (int, error) {
	ta, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, err
	}
	family, sa := toSockaddr(ta)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	for {
		err = unix.Connect(fd, sa)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if errors.Is(err, unix.EALREADY) || errors.Is(err, unix.EINPROGRESS) {
		// an interrupted connect keeps going in the background
		err = awaitConnect(fd)
	}
	if err != nil && !errors.Is(err, unix.EISCONN) {
		_ = unix.Close(fd)
		return -1, &net.OpError{Op: "dial", Net: "tcp", Addr: ta, Err: fmt.Errorf("connect: %w", err)}
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("set nonblock: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return fd, nil
}

func awaitConnect(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soErr != 0 {
		return unix.Errno(soErr)
	}
	return nil
}

// listenTCP opens a non-blocking listening socket.
func listenTCP(addr string, backlog int) (int, error) {
	ta, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, err
	}
	family, sa := toSockaddr(ta)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, &net.OpError{Op: "listen", Net: "tcp", Addr: ta, Err: fmt.Errorf("bind: %w", err)}
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, &net.OpError{Op: "listen", Net: "tcp", Addr: ta, Err: fmt.Errorf("listen: %w", err)}
	}
	return fd, nil
}

func acceptFD(fd int) (int, error) {
	nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	return nfd, err
}

func setNonblock(fd int) error { return unix.SetNonblock(fd, true) }

func readFD(fd int, buf []byte) (int, error) { return unix.Read(fd, buf) }

// writeFD never raises SIGPIPE; a reset peer surfaces as EPIPE.
func writeFD(fd int, buf []byte) (int, error) {
	return unix.SendmsgN(fd, buf, nil, nil, unix.MSG_NOSIGNAL)
}

func shutdownFD(fd int) error {
	err := unix.Shutdown(fd, unix.SHUT_RDWR)
	if errors.Is(err, unix.ENOTCONN) {
		return nil
	}
	return err
}

func closeFD(fd int) error { return unix.Close(fd) }

func wouldBlock(err error) bool { return errors.Is(err, unix.EAGAIN) }

func interrupted(err error) bool { return errors.Is(err, unix.EINTR) }

// retryAccept covers connections that died in the backlog.
func retryAccept(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.ECONNABORTED)
}
