// File: api/waker.go
// Author: momentics <momentics@gmail.com>

package api

// Waker schedules a suspended task to be polled again. Wake may be called
// from any goroutine, any number of times.
type Waker interface {
	Wake()
}

// WakerFunc adapts a plain function to Waker.
type WakerFunc func()

func (f WakerFunc) Wake() { f() }
