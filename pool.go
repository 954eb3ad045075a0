package messagebus

// reassembly is one in-flight, per-msg_id accumulation buffer. Its
// capacity is fixed at creation to header.Len and never grown ("Buffer
// growth") so interleaved partial writes into other pool entries never
// invalidate an outstanding slice.
type reassembly struct {
	payload []byte
	length  int
}

// Pool is the reassembly table: a flat map from msg_id to
// in-flight payload buffers, owned exclusively by one MessageBus
// instance (no internal locking). It has no TTL and is not
// LRU-bounded — a caller that never sends END for some msg_id leaks that
// entry; that responsibility falls to the caller, not the bus.
type Pool struct {
	allocator Allocator
	entries   map[uint64]*reassembly
}

func newPool(allocator Allocator) *Pool {
	return &Pool{allocator: allocator, entries: make(map[uint64]*reassembly)}
}

// GetOrCreate returns the existing buffer for header.MsgID, or allocates
// one sized to header.Len if this is a BEGIN chunk. A continuation chunk
// for an unknown msg_id (not IsBegin) is an orphan and returns nil — the
// caller is expected to treat that as an error condition.
func (p *Pool) GetOrCreate(header *FrameHeader) *reassembly {
	if e, ok := p.entries[header.MsgID]; ok {
		return e
	}
	if !header.IsBegin() {
		return nil
	}
	e := &reassembly{payload: p.allocator.Malloc(int(header.Len))}
	p.entries[header.MsgID] = e
	return e
}

// Peek returns the bytes accumulated so far for msgID without removing
// the entry from the pool, or nil if absent. Ownership stays with the
// pool; Reader.Packet's OBJ_PTR resolution uses MoveOut instead, which
// does transfer it.
func (p *Pool) Peek(msgID uint64) []byte {
	e, ok := p.entries[msgID]
	if !ok {
		return nil
	}
	return e.payload[:e.length]
}

// MoveOut removes msgID's entry and transfers ownership of its backing
// storage to the caller. Returns nil if absent. This is the sum-typed
// ownership transfer on END: once MoveOut returns, the map entry
// itself is gone rather than left behind with a null-patched pointer.
func (p *Pool) MoveOut(msgID uint64) []byte {
	e, ok := p.entries[msgID]
	if !ok {
		return nil
	}
	delete(p.entries, msgID)
	return e.payload[:e.length]
}

// Has reports whether msgID currently has an in-flight reassembly entry.
func (p *Pool) Has(msgID uint64) bool {
	_, ok := p.entries[msgID]
	return ok
}

// Len returns the number of in-flight reassembly entries.
func (p *Pool) Len() int { return len(p.entries) }

// Size returns buffer_size plus the capacities of all in-flight
// reassembly buffers, for memory reporting.
func (p *Pool) Size(bufferSize int) int {
	total := bufferSize
	for _, e := range p.entries {
		total += cap(e.payload)
	}
	return total
}
