// File: task/waker_table.go
// Author: momentics <momentics@gmail.com>

package task

import (
	"sync"

	"github.com/momentics/hioload-reactor/api"
)

type tableEntry struct {
	waker api.Waker
}

// WakerTable routes readiness tokens to wakers. The reactor thread calls Wake
// for every id in a readiness batch; I/O primitives Watch their ids for as
// long as they own a registration.
type WakerTable struct {
	mu      sync.RWMutex
	entries map[api.EventID]*tableEntry
}

// NewWakerTable returns an empty table.
func NewWakerTable() *WakerTable {
	return &WakerTable{entries: make(map[api.EventID]*tableEntry)}
}

// Watch routes id to w, replacing any existing route. The returned func
// removes the route only if it has not been replaced since.
func (t *WakerTable) Watch(id api.EventID, w api.Waker) func() {
	e := &tableEntry{waker: w}
	t.mu.Lock()
	t.entries[id] = e
	t.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			if t.entries[id] == e {
				delete(t.entries, id)
			}
			t.mu.Unlock()
		})
	}
}

// Wake invokes the waker routed to id. Reports false for unknown ids.
func (t *WakerTable) Wake(id api.EventID) bool {
	t.mu.RLock()
	e := t.entries[id]
	t.mu.RUnlock()
	if e == nil {
		return false
	}
	e.waker.Wake()
	return true
}

// WakeAll wakes every routed waker once. Used when the reactor dies so that
// suspended futures re-poll and observe the failure.
func (t *WakerTable) WakeAll() int {
	t.mu.RLock()
	ws := make([]api.Waker, 0, len(t.entries))
	for _, e := range t.entries {
		ws = append(ws, e.waker)
	}
	t.mu.RUnlock()
	for _, w := range ws {
		w.Wake()
	}
	return len(ws)
}

// Len returns the number of routed ids.
func (t *WakerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
