// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations: readiness tokens, interests and events.

package api

import "strings"

// EventID is an opaque token correlating an OS readiness notification back to
// the waiter that asked for it. Zero is never allocated.
type EventID uint64

// ReservedEventIDs marks ids owned by the reactor itself (control descriptors).
// Allocators never hand out ids with this bit set.
const ReservedEventIDs EventID = 1 << 63

// Reserved reports whether the id belongs to the reactor's private range.
func (id EventID) Reserved() bool { return id&ReservedEventIDs != 0 }

// Interest selects which readiness condition a registration waits for.
type Interest uint8

const (
	InterestRead Interest = 1 << iota
	InterestWrite

	InterestBoth = InterestRead | InterestWrite
)

func (i Interest) String() string {
	switch i {
	case InterestRead:
		return "read"
	case InterestWrite:
		return "write"
	case InterestBoth:
		return "read|write"
	default:
		return "none"
	}
}

// Readiness is the bitmask reported back by the multiplexer.
type Readiness uint8

const (
	Readable Readiness = 1 << iota
	Writable
	ReadError
	Hangup
)

func (r Readiness) String() string {
	if r == 0 {
		return "none"
	}
	var parts []string
	if r&Readable != 0 {
		parts = append(parts, "readable")
	}
	if r&Writable != 0 {
		parts = append(parts, "writable")
	}
	if r&ReadError != 0 {
		parts = append(parts, "error")
	}
	if r&Hangup != 0 {
		parts = append(parts, "hangup")
	}
	return strings.Join(parts, "|")
}

// Event is one entry of a readiness batch.
type Event struct {
	ID        EventID
	Readiness Readiness
}
