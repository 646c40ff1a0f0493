// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-goroutine executor for futures suspended on the reactor.
//
// Tasks are polled from a FIFO ready queue. A task's waker pushes it back
// onto the queue at most once until it is polled again, so any number of
// wakes between two polls costs one poll. The executor also keeps the
// callback table used when readiness is consumed as a stream of event ids
// rather than through wakers.
package concurrency
