// File: task/combinators.go
// Author: momentics <momentics@gmail.com>
//
// Composition helpers. Each one owns its in-flight sub-future by value and
// tracks progress in an explicit state field rather than a self-reference.

package task

type thenState uint8

const (
	thenFirst thenState = iota
	thenSecond
	thenDone
)

// ThenFuture runs first, feeds its value to next and then runs the future
// next returns. Errors from first short-circuit.
type ThenFuture[A, B any] struct {
	first  Future[A]
	next   func(A) Future[B]
	second Future[B]
	state  thenState
}

// Then sequences two futures.
func Then[A, B any](first Future[A], next func(A) Future[B]) *ThenFuture[A, B] {
	return &ThenFuture[A, B]{first: first, next: next}
}

func (f *ThenFuture[A, B]) Poll(cx *Context) Poll[B] {
	for {
		switch f.state {
		case thenFirst:
			p := f.first.Poll(cx)
			if p.IsPending() {
				return Pending[B]()
			}
			v, err := p.Result().Unpack()
			f.first = nil
			if err != nil {
				f.state = thenDone
				return ReadyErr[B](err)
			}
			f.second = f.next(v)
			f.state = thenSecond
		case thenSecond:
			p := f.second.Poll(cx)
			if p.IsReady() {
				f.second = nil
				f.state = thenDone
			}
			return p
		default:
			panic("task: ThenFuture polled after completion")
		}
	}
}

// Map transforms the value of f once it resolves.
func Map[A, B any](f Future[A], fn func(A) (B, error)) Future[B] {
	done := false
	return FutureFunc[B](func(cx *Context) Poll[B] {
		if done {
			panic("task: mapped future polled after completion")
		}
		p := f.Poll(cx)
		if p.IsPending() {
			return Pending[B]()
		}
		done = true
		v, err := p.Result().Unpack()
		if err != nil {
			return ReadyErr[B](err)
		}
		out, err := fn(v)
		if err != nil {
			return ReadyErr[B](err)
		}
		return Ready(out)
	})
}

// Loop polls step repeatedly until it reports done. Each call to step is
// one resumable iteration; a pending step suspends the loop.
func Loop[S any](state S, step func(*S) Future[bool]) Future[S] {
	var cur Future[bool]
	return FutureFunc[S](func(cx *Context) Poll[S] {
		for {
			if cur == nil {
				cur = step(&state)
			}
			p := cur.Poll(cx)
			if p.IsPending() {
				return Pending[S]()
			}
			cur = nil
			done, err := p.Result().Unpack()
			if err != nil {
				return ReadyErr[S](err)
			}
			if done {
				return Ready(state)
			}
		}
	})
}
