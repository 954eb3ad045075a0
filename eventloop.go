package messagebus

// EventProbe is the bus's hook into a host reactor/event loop: it is
// told when a read hits the chunk-count cap and when a write reduces its
// chunk size, so a host can apply backpressure or surface metrics,
// without the bus importing any particular reactor implementation.
type EventProbe interface {
	// OnChunkCapReached fires when a single Read call has consumed
	// MaxRecvChunkCount chunks without completing a message (the
	// fairness cap), so the caller can yield back to its own event loop
	// before resuming.
	OnChunkCapReached(msgID uint64, chunksConsumed int)

	// OnChunkSizeReduced fires when Writer.Write falls back to a smaller
	// chunk size after a write is rejected as too large for the
	// transport (WriteReduceSize).
	OnChunkSizeReduced(msgID uint64, from, to int)

	// OnPoolGrowth receives the reassembly pool's entry count and memory
	// usage. No code in this package calls it; MessageBus.MemorySize and
	// MessageBus.PendingCount report the same figures on demand.
	OnPoolGrowth(poolEntries int, totalBytes int)
}

// NoopEventProbe is the default EventProbe: it observes nothing.
type NoopEventProbe struct{}

func (NoopEventProbe) OnChunkCapReached(uint64, int)    {}
func (NoopEventProbe) OnChunkSizeReduced(uint64, int, int) {}
func (NoopEventProbe) OnPoolGrowth(int, int)            {}
