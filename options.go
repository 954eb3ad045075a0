package messagebus

// config holds the configuration for a MessageBus.
type config struct {
	bufferSize           int
	maxRecvChunkCount    int
	ipcBufferSize        int
	alwaysChunkedTransfer bool

	allocator   Allocator
	idGenerator IDGenerator
	eventProbe  EventProbe
	logger      Logger
}

// Default configuration values.
const (
	// defaultBufferSize is the default scratch/frame buffer size,
	// large enough to hold a header plus a few kilobytes of payload.
	defaultBufferSize = 65536
	// defaultMaxRecvChunkCount bounds how many chunks a single Read call
	// will consume before yielding, so one message can never starve a
	// host event loop of other work ("fairness cap").
	defaultMaxRecvChunkCount = 1024
	// defaultIPCBufferSize is the floor Writer.Write falls back to when a
	// write is rejected as too large for the peer's socket buffer; it
	// must be smaller than defaultBufferSize for the fallback to ever
	// make progress.
	defaultIPCBufferSize = 8192
)

// Option configures a MessageBus.
type Option func(*config)

// BufferSizeOption sets the size of the shared scratch buffer, and so
// the largest payload a single non-chunked frame can carry
// (BufferSize - HeaderSize).
func BufferSizeOption(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// MaxRecvChunkCountOption sets the fairness cap: the number of chunks
// Read will consume across all in-flight messages before returning
// ReadWouldBlock-equivalent progress, even if more data is available.
func MaxRecvChunkCountOption(n int) Option {
	return func(c *config) {
		c.maxRecvChunkCount = n
	}
}

// IPCBufferSizeOption sets the floor Writer.Write reduces its chunk size
// to after a write fails as oversized for the peer's socket buffer.
func IPCBufferSizeOption(n int) Option {
	return func(c *config) {
		c.ipcBufferSize = n
	}
}

// AlwaysChunkedTransferOption forces every non-empty Write, even ones
// that would fit in a single frame, through the chunked path. Mainly
// useful for exercising reassembly in tests without large payloads.
func AlwaysChunkedTransferOption(always bool) Option {
	return func(c *config) {
		c.alwaysChunkedTransfer = always
	}
}

// AllocatorOption overrides the buffer allocator used for reassembly
// buffers. Defaults to a size-classed sync.Pool allocator.
func AllocatorOption(a Allocator) Option {
	return func(c *config) {
		c.allocator = a
	}
}

// IDGeneratorOption overrides how outgoing messages are
// assigned msg_id values. Defaults to a process-local atomic counter.
func IDGeneratorOption(g IDGenerator) Option {
	return func(c *config) {
		c.idGenerator = g
	}
}

// EventProbeOption overrides the bus's event/metrics hook. Defaults to
// one that observes nothing.
func EventProbeOption(p EventProbe) Option {
	return func(c *config) {
		c.eventProbe = p
	}
}

// LoggerOption overrides the logger. Defaults to slog.Default().
func LoggerOption(l Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// validate fills in defaults and rejects configurations that cannot be
// satisfied.
func (c *config) validate() error {
	if c.bufferSize <= 0 {
		c.bufferSize = defaultBufferSize
	}
	if c.bufferSize <= HeaderSize {
		return ErrInvalidBufferSize
	}
	if c.maxRecvChunkCount <= 0 {
		c.maxRecvChunkCount = defaultMaxRecvChunkCount
	}
	if c.ipcBufferSize <= 0 {
		c.ipcBufferSize = defaultIPCBufferSize
	}
	if c.ipcBufferSize >= c.bufferSize-HeaderSize {
		c.ipcBufferSize = (c.bufferSize - HeaderSize) / 2
	}
	if c.allocator == nil {
		c.allocator = NewPoolAllocator()
	}
	if c.idGenerator == nil {
		c.idGenerator = NewAtomicIDGenerator()
	}
	if c.eventProbe == nil {
		c.eventProbe = NoopEventProbe{}
	}
	if c.logger == nil {
		c.logger = defaultLogger()
	}
	return nil
}
