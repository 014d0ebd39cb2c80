package kvstorage

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Handles
// --------------------------------------------------------------------------

// handle identifies an entry in the arena. The low 32 bits hold the slot
// index, the high 32 bits the generation of the slot when the entry was
// allocated. A handle outlives its entry safely: once the slot is released or
// reused the generation no longer matches and lookups fail.
type handle uint64

func makeHandle(index, generation uint32) handle {
	return handle(uint64(generation)<<32 | uint64(index))
}

func (h handle) index() uint32 { return uint32(h) }

func (h handle) generation() uint32 { return uint32(h >> 32) }

func (h handle) String() string {
	return fmt.Sprintf("%d@%d", h.index(), h.generation())
}

// --------------------------------------------------------------------------
// Entries
// --------------------------------------------------------------------------

// entry holds a live key with its value and expiration metadata.
// If hasTTL is set, the TTL index holds exactly one record for the entry's
// handle with priority expiresAt.
type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	hasTTL    bool
}

// expired reports whether the entry is logically expired at now
func (e *entry) expired(now time.Time) bool {
	return e.hasTTL && !e.expiresAt.After(now)
}

// --------------------------------------------------------------------------
// Arena (slot table)
// --------------------------------------------------------------------------

type slot struct {
	entry
	generation uint32
	used       bool
}

// arena stores entries in a slot table and recycles released slots.
//
// Pointers returned by get are only valid until the next alloc, because alloc
// may grow the slot slice.
type arena struct {
	slots []slot
	free  []uint32
}

// alloc stores e in a free slot and returns its handle
func (a *arena) alloc(e entry) handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}

	s := &a.slots[idx]
	s.generation++
	s.entry = e
	s.used = true

	return makeHandle(idx, s.generation)
}

// get resolves a handle to its entry
func (a *arena) get(h handle) (*entry, bool) {
	idx := h.index()
	if int(idx) >= len(a.slots) {
		return nil, false
	}

	s := &a.slots[idx]
	if !s.used || s.generation != h.generation() {
		return nil, false
	}
	return &s.entry, true
}

// release frees the slot of h. Stale handles are ignored.
func (a *arena) release(h handle) bool {
	if _, ok := a.get(h); !ok {
		return false
	}

	s := &a.slots[h.index()]
	s.entry = entry{} // help the go gc
	s.used = false
	a.free = append(a.free, h.index())
	return true
}

// live returns the number of used slots
func (a *arena) live() int {
	return len(a.slots) - len(a.free)
}
