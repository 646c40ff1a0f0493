//go:build !linux
// +build !linux

// File: reactor/selector_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-reactor/api"
)

// NewEpollSelector returns an error for unsupported platforms.
func NewEpollSelector() (Selector, error) {
	return nil, fmt.Errorf("reactor: epoll: %w", api.ErrNotSupported)
}

func newDefaultSelector() (Selector, error) {
	return NewEpollSelector()
}
