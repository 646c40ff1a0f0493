// File: reactor/registry.go
// Author: momentics <momentics@gmail.com>
//
// fd -> interest bookkeeping on top of a Selector.

package reactor

import (
	"errors"
	"sync"

	"github.com/momentics/hioload-reactor/api"
)

type registration struct {
	id       api.EventID
	interest api.Interest
}

// Registry keeps at most one live registration per fd. The first call for
// an fd adds it to the selector, later calls modify it in place. It is safe
// for concurrent use, including while the owning Poll is blocked waiting.
type Registry struct {
	mu      sync.Mutex
	sel     Selector
	sources map[int]registration
}

func newRegistry(sel Selector) *Registry {
	return &Registry{sel: sel, sources: make(map[int]registration)}
}

// RegisterRead arms fd for readability, replacing any previous interest.
func (r *Registry) RegisterRead(fd int, id api.EventID) error {
	return r.Register(fd, id, api.InterestRead)
}

// RegisterWrite arms fd for writability, replacing any previous interest.
func (r *Registry) RegisterWrite(fd int, id api.EventID) error {
	return r.Register(fd, id, api.InterestWrite)
}

// Register arms fd for in under id. Syscall failures are returned as
// *api.Error with code ErrCodeRegistration; the bookkeeping is left as it
// was before the call.
func (r *Registry) Register(fd int, id api.EventID, in api.Interest) error {
	if fd < 0 || in&api.InterestBoth == 0 || in&^api.InterestBoth != 0 {
		return api.WrapError(api.ErrCodeInvalidArgument, "register", api.ErrInvalidArgument).
			WithContext("fd", fd).
			WithContext("interest", in.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if _, ok := r.sources[fd]; ok {
		err = r.sel.Modify(fd, id, in)
		if errors.Is(err, api.ErrNotFound) {
			// the fd number was closed and reused behind our back
			err = r.sel.Add(fd, id, in)
		}
	} else {
		err = r.sel.Add(fd, id, in)
		if errors.Is(err, api.ErrAlreadyExists) {
			err = r.sel.Modify(fd, id, in)
		}
	}
	if err != nil {
		return api.WrapError(api.ErrCodeRegistration, "register", err).
			WithContext("fd", fd).
			WithContext("id", uint64(id)).
			WithContext("interest", in.String())
	}
	r.sources[fd] = registration{id: id, interest: in}
	return nil
}

// RemoveInterests drops every registration for fd. Removing an fd that was
// never registered, or whose descriptor is already closed, succeeds.
func (r *Registry) RemoveInterests(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sources, fd)
	if fd < 0 {
		return nil
	}
	err := r.sel.Delete(fd)
	if err == nil || errors.Is(err, api.ErrNotFound) || errors.Is(err, api.ErrClosed) {
		return nil
	}
	return api.WrapError(api.ErrCodeRegistration, "remove interests", err).
		WithContext("fd", fd)
}

// Lookup returns the live registration for fd.
func (r *Registry) Lookup(fd int) (api.EventID, api.Interest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.sources[fd]
	return reg.id, reg.interest, ok
}

// Len returns the number of fds with a live registration.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}
