// File: task/future.go
// Author: momentics <momentics@gmail.com>

package task

import "github.com/momentics/hioload-reactor/api"

// Context is handed to Future.Poll and carries the waker of the task doing
// the polling.
type Context struct {
	waker api.Waker
}

// NewContext binds w as the current task's waker.
func NewContext(w api.Waker) *Context {
	return &Context{waker: w}
}

// Waker returns the waker to store when the future cannot make progress.
func (c *Context) Waker() api.Waker {
	if c == nil || c.waker == nil {
		return noopWaker{}
	}
	return c.waker
}

type noopWaker struct{}

func (noopWaker) Wake() {}

// Poll is the outcome of one Future.Poll call.
type Poll[T any] struct {
	res   api.Result[T]
	ready bool
}

// Ready resolves with a value.
func Ready[T any](v T) Poll[T] {
	return Poll[T]{res: api.Result[T]{Value: v}, ready: true}
}

// ReadyErr resolves with an error.
func ReadyErr[T any](err error) Poll[T] {
	return Poll[T]{res: api.Result[T]{Err: err}, ready: true}
}

// Resolve resolves with both a value and an error, for results such as a
// short read that still carry data.
func Resolve[T any](v T, err error) Poll[T] {
	return Poll[T]{res: api.Result[T]{Value: v, Err: err}, ready: true}
}

// Pending reports that the future stored the context's waker and will be
// woken when it may progress.
func Pending[T any]() Poll[T] {
	return Poll[T]{}
}

func (p Poll[T]) IsReady() bool { return p.ready }

func (p Poll[T]) IsPending() bool { return !p.ready }

// Result is only meaningful when IsReady.
func (p Poll[T]) Result() api.Result[T] { return p.res }

// Future is a resumable computation. Poll must not block: it either returns
// a ready result or arranges for cx.Waker() to be woken and returns Pending.
// Polling a future again after it returned ready is a caller bug.
type Future[T any] interface {
	Poll(cx *Context) Poll[T]
}

// FutureFunc adapts a poll function to Future.
type FutureFunc[T any] func(cx *Context) Poll[T]

func (f FutureFunc[T]) Poll(cx *Context) Poll[T] { return f(cx) }

// Value is an already resolved future.
func Value[T any](v T) Future[T] {
	return FutureFunc[T](func(*Context) Poll[T] { return Ready(v) })
}

// Fail is an already failed future.
func Fail[T any](err error) Future[T] {
	return FutureFunc[T](func(*Context) Poll[T] { return ReadyErr[T](err) })
}
