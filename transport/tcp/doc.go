// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp wraps raw non-blocking TCP sockets as awaitable objects.
//
// An AsyncTCPStream owns its file descriptor exclusively. Read and Write
// return futures that attempt the syscall when polled and, on EAGAIN, store
// the polling task's waker and arm the fd with the reactor before reporting
// Pending. Close shuts the socket down, drops its registration and closes
// the fd; callers must not keep polling futures of a closed stream (they
// resolve with api.ErrClosed if they do).
package tcp
