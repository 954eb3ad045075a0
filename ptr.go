package messagebus

import (
	"sync"
	"sync/atomic"
)

// PtrTable backs the PTR flag: two trusted same-host processes can hand
// a payload across the bus by reference instead of copying bytes. A raw
// pointer has no meaning across Go runtimes (or even within one, once
// the garbage collector can move or collect what it refers to), so
// handles are opaque uint64 tokens registered here and resolved by the
// same process that registered them.
//
// Each MessageBus owns its own PtrTable (created in New): the handle
// travels inside the wire payload as a plain uint64 and resolves only
// through the bus instance that registered it.
// PTR only makes sense between processes sharing one address space.
type PtrTable struct {
	next    atomic.Uint64
	entries sync.Map
}

func newPtrTable() *PtrTable { return &PtrTable{} }

// Register stores payload under a freshly minted handle and returns it.
// The handle, not payload, is what travels on the wire in a FlagPtr frame.
func (t *PtrTable) Register(payload any) uint64 {
	h := t.next.Add(1)
	t.entries.Store(h, payload)
	return h
}

// Resolve returns the payload previously registered under handle, and
// whether it was found. It does not remove the entry; call Release once
// the receiver is done with it.
func (t *PtrTable) Resolve(handle uint64) (any, bool) {
	return t.entries.Load(handle)
}

// Release forgets handle. Safe to call on an already-released or unknown
// handle.
func (t *PtrTable) Release(handle uint64) {
	t.entries.Delete(handle)
}

// Take is Resolve and Release in one step, for the common case of a
// single-use handle that the receiver consumes exactly once.
func (t *PtrTable) Take(handle uint64) (any, bool) {
	v, ok := t.entries.LoadAndDelete(handle)
	return v, ok
}
