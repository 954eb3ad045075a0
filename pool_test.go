package messagebus

import "testing"

func TestPoolGetOrCreateOrphanReturnsNil(t *testing.T) {
	p := newPool(NewPoolAllocator())
	h := &FrameHeader{MsgID: 99, Flags: FlagChunk, Len: 10}
	if e := p.GetOrCreate(h); e != nil {
		t.Fatalf("expected nil for continuation with no begin, got %v", e)
	}
	if p.Has(99) {
		t.Fatal("orphan lookup must not create an entry")
	}
}

func TestPoolGetOrCreateBeginAllocates(t *testing.T) {
	p := newPool(NewPoolAllocator())
	h := &FrameHeader{MsgID: 1, Flags: FlagChunk | FlagBegin, Len: 256}
	e := p.GetOrCreate(h)
	if e == nil {
		t.Fatal("expected entry for begin chunk")
	}
	if cap(e.payload) < 256 {
		t.Fatalf("payload capacity = %d, want >= 256", cap(e.payload))
	}
	if !p.Has(1) {
		t.Fatal("pool should report msg_id present after create")
	}

	again := p.GetOrCreate(&FrameHeader{MsgID: 1, Flags: FlagChunk})
	if again != e {
		t.Fatal("subsequent GetOrCreate for same msg_id must return the same entry")
	}
}

func TestPoolMoveOutRemovesEntry(t *testing.T) {
	p := newPool(NewPoolAllocator())
	h := &FrameHeader{MsgID: 5, Flags: FlagChunk | FlagBegin, Len: 4}
	e := p.GetOrCreate(h)
	copy(e.payload, []byte("abcd"))
	e.length = 4

	out := p.MoveOut(5)
	if string(out) != "abcd" {
		t.Fatalf("MoveOut = %q, want %q", out, "abcd")
	}
	if p.Has(5) {
		t.Fatal("entry must be gone after MoveOut")
	}
	if p.MoveOut(5) != nil {
		t.Fatal("second MoveOut on the same msg_id must return nil")
	}
}

func TestPoolSizeAccountsAllEntries(t *testing.T) {
	p := newPool(NewPoolAllocator())
	p.GetOrCreate(&FrameHeader{MsgID: 1, Flags: FlagChunk | FlagBegin, Len: 100})
	p.GetOrCreate(&FrameHeader{MsgID: 2, Flags: FlagChunk | FlagBegin, Len: 200})

	size := p.Size(1000)
	if size <= 1000 {
		t.Fatalf("Size() = %d, want > 1000 (base + entries)", size)
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
}
