// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer (Selector, Poll,
// Registry) and the Reactor that runs it on a dedicated OS thread, waking
// the futures whose file descriptors became ready.
//
// Linux epoll(7) is the only backend. Registrations are one-shot: once an fd
// reports ready it stays disarmed until the waiting future re-registers it,
// which happens naturally when its next non-blocking attempt would block.
package reactor
