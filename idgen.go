package messagebus

import "sync/atomic"

// IDGenerator assigns msg_id values to outgoing messages, chunked or not.
// Injected so callers that need globally unique IDs across multiple
// MessageBus instances (e.g. a shared sequence fed from a central
// counter) can supply their own.
type IDGenerator interface {
	NextMsgID() uint64
}

// AtomicIDGenerator is the default IDGenerator: a process-local counter
// starting at 1, so 0 remains available as a caller-visible "no message
// in flight" sentinel.
type AtomicIDGenerator struct {
	counter atomic.Uint64
}

// NewAtomicIDGenerator returns an AtomicIDGenerator.
func NewAtomicIDGenerator() *AtomicIDGenerator {
	return &AtomicIDGenerator{}
}

func (g *AtomicIDGenerator) NextMsgID() uint64 {
	return g.counter.Add(1)
}
