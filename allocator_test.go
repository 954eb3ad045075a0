package messagebus

import "testing"

func TestPoolAllocatorMallocSize(t *testing.T) {
	a := NewPoolAllocator()
	buf := a.Malloc(100)
	if len(buf) != 100 {
		t.Fatalf("len = %d, want 100", len(buf))
	}
}

func TestPoolAllocatorCallocZeroed(t *testing.T) {
	a := NewPoolAllocator()
	buf := a.Malloc(64)
	for i := range buf {
		buf[i] = 0xff
	}
	a.Free(buf)

	zeroed := a.Calloc(64)
	for i, b := range zeroed {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, b)
		}
	}
}

func TestPoolAllocatorReallocGrows(t *testing.T) {
	a := NewPoolAllocator()
	buf := a.Malloc(10)
	copy(buf, []byte("hello"))

	grown := a.Realloc(buf, 1000)
	if len(grown) != 1000 {
		t.Fatalf("len = %d, want 1000", len(grown))
	}
	if string(grown[:5]) != "hello" {
		t.Fatalf("Realloc must preserve existing contents, got %q", grown[:5])
	}
}

func TestPoolAllocatorReallocShrinkReusesBacking(t *testing.T) {
	a := NewPoolAllocator()
	buf := a.Malloc(1000)
	shrunk := a.Realloc(buf, 10)
	if len(shrunk) != 10 {
		t.Fatalf("len = %d, want 10", len(shrunk))
	}
	if cap(shrunk) != cap(buf) {
		t.Fatal("Realloc to a smaller size should reuse the same backing array")
	}
}

func TestPoolAllocatorOversizeFallsBackToPlainAllocation(t *testing.T) {
	a := NewPoolAllocator()
	huge := a.Malloc(poolSizes[len(poolSizes)-1] + 1)
	if len(huge) != poolSizes[len(poolSizes)-1]+1 {
		t.Fatalf("len = %d, want %d", len(huge), poolSizes[len(poolSizes)-1]+1)
	}
	// Must not panic or corrupt pool state when freed.
	a.Free(huge)
}

func TestPoolAllocatorFreeReusesBuffer(t *testing.T) {
	a := NewPoolAllocator()
	first := a.Malloc(256)
	a.Free(first)
	second := a.Malloc(256)
	if &first[0] != &second[0] {
		t.Skip("pool reuse is best-effort, not guaranteed under concurrent use")
	}
}
