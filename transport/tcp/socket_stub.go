//go:build !linux
// +build !linux

// File: transport/tcp/socket_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package tcp

import (
	"net"

	"github.com/momentics/hioload-reactor/api"
)

const defaultBacklog = 1024

func localAddr(int) net.Addr  { return nil }
func remoteAddr(int) net.Addr { return nil }

func dialTCP(string) (int, error)        { return -1, api.ErrNotSupported }
func listenTCP(string, int) (int, error) { return -1, api.ErrNotSupported }
func acceptFD(int) (int, error)          { return -1, api.ErrNotSupported }
func setNonblock(int) error              { return api.ErrNotSupported }
func readFD(int, []byte) (int, error)    { return 0, api.ErrNotSupported }
func writeFD(int, []byte) (int, error)   { return 0, api.ErrNotSupported }
func shutdownFD(int) error               { return api.ErrNotSupported }
func closeFD(int) error                  { return api.ErrNotSupported }
func wouldBlock(error) bool              { return false }
func interrupted(error) bool             { return false }
func retryAccept(error) bool             { return false }
