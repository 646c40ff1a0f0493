// File: task/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package task holds the poll-based future vocabulary used by the reactor
// core: Future, Poll, Context, and the waker bridge (AtomicWaker,
// SharedState, WakerTable) that lets a goroutine outside the executor,
// usually the reactor thread, mark a suspended future as runnable.
//
// A future is polled by exactly one executor goroutine at a time. Wakers may
// fire from any goroutine, any number of times, including spuriously.
package task
