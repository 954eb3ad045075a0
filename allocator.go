package messagebus

import "sync"

// Allocator is the buffer-lifecycle capability the bus depends on instead
// of a module-level allocator singleton: reassembly
// buffers are obtained and released through it, never through a
// package-level malloc. The scratch buffer is a plain allocation made
// once in New.
type Allocator interface {
	Malloc(n int) []byte
	Calloc(n int) []byte
	Realloc(buf []byte, n int) []byte
	Free(buf []byte)
}

// poolSizes are the size classes PoolAllocator buckets buffers into,
// grounded on the size-classed sync.Pool approach surveyed from
// firefly-research-flydb's zero-copy buffer pool: a handful of
// power-of-two classes spanning typical reassembly sizes up to the
// largest message the bus is expected to carry.
var poolSizes = []int{
	256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216,
}

// PoolAllocator is the default Allocator: one sync.Pool per size class,
// so repeatedly reassembling similarly sized messages reuses backing
// storage instead of churning the garbage collector.
type PoolAllocator struct {
	pools []sync.Pool
}

// NewPoolAllocator constructs a PoolAllocator with the standard size
// classes.
func NewPoolAllocator() *PoolAllocator {
	a := &PoolAllocator{pools: make([]sync.Pool, len(poolSizes))}
	for i := range poolSizes {
		size := poolSizes[i]
		a.pools[i].New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	}
	return a
}

func (a *PoolAllocator) classFor(n int) int {
	for i, size := range poolSizes {
		if size >= n {
			return i
		}
	}
	return -1
}

// Malloc returns a slice of exactly n bytes, backed by a pooled
// size-classed buffer when n fits one, or a fresh allocation otherwise.
// Contents are not guaranteed to be zeroed; use Calloc for that.
func (a *PoolAllocator) Malloc(n int) []byte {
	idx := a.classFor(n)
	if idx < 0 {
		return make([]byte, n)
	}
	bufPtr := a.pools[idx].Get().(*[]byte)
	return (*bufPtr)[:n]
}

// Calloc returns a zeroed slice of exactly n bytes.
func (a *PoolAllocator) Calloc(n int) []byte {
	buf := a.Malloc(n)
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Realloc returns a slice of n bytes containing buf's original contents,
// reusing buf's storage if its capacity already suffices.
func (a *PoolAllocator) Realloc(buf []byte, n int) []byte {
	if cap(buf) >= n {
		return buf[:n]
	}
	next := a.Malloc(n)
	copy(next, buf)
	a.Free(buf)
	return next
}

// Free returns buf to its size-class pool when its capacity matches one
// exactly, so the next Malloc of that class can reuse it. Buffers from
// outside the pooled classes are left for the garbage collector.
func (a *PoolAllocator) Free(buf []byte) {
	c := cap(buf)
	idx := a.classFor(c)
	if idx < 0 || poolSizes[idx] != c {
		return
	}
	full := buf[:0:c]
	a.pools[idx].Put(&full)
}
