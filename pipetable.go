package messagebus

import (
	"sync"

	"golang.org/x/sys/unix"
)

// PipeSocketTable is a registry mapping pipe/connection file
// descriptors to the Socket wrapping them, keyed by fd in a map rather
// than a dense slice, since fds here are not guaranteed dense or small.
type PipeSocketTable struct {
	mu      sync.RWMutex
	sockets map[int]Socket
}

// NewPipeSocketTable returns an empty PipeSocketTable.
func NewPipeSocketTable() *PipeSocketTable {
	return &PipeSocketTable{sockets: make(map[int]Socket)}
}

// InitPipeSocket registers sock under fd, forcing the underlying fd into
// non-blocking mode first. It is a no-op if fd is already registered.
func (t *PipeSocketTable) InitPipeSocket(fd int, sock Socket) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sockets[fd]; ok {
		return nil
	}
	if fd >= 0 {
		if err := unix.SetNonblock(fd, true); err != nil {
			return err
		}
	}
	t.sockets[fd] = sock
	return nil
}

// Lookup returns the Socket registered for fd, if any.
func (t *PipeSocketTable) Lookup(fd int) (Socket, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sockets[fd]
	return s, ok
}

// Remove forgets fd's entry without closing it; the fd's owner remains
// responsible for the actual close.
func (t *PipeSocketTable) Remove(fd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sockets, fd)
}

// Len returns the number of registered pipe sockets.
func (t *PipeSocketTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sockets)
}

// Clear forgets every registered entry without closing any of them.
func (t *PipeSocketTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sockets = make(map[int]Socket)
}
