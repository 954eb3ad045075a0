package messagebus

import "context"

// MessageBus is a framed, chunked message transport over a single
// socket at a time: reassembling incoming frames into complete Records
// and slicing outgoing Records into frames, with no internal locking
// (one instance serves one connection). Construct with New.
type MessageBus struct {
	cfg *config

	scratch  *scratchBuffer
	pool     *Pool
	ptrTable *PtrTable
	pipes    *PipeSocketTable

	reader *Reader
	writer *Writer
}

// New builds a MessageBus from the given options, applying defaults for
// anything unset.
func New(opts ...Option) (*MessageBus, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	scratch := newScratchBuffer(cfg.bufferSize)
	pool := newPool(cfg.allocator)
	ptrTable := newPtrTable()

	return &MessageBus{
		cfg:      cfg,
		scratch:  scratch,
		pool:     pool,
		ptrTable: ptrTable,
		pipes:    NewPipeSocketTable(),
		reader:   newReader(scratch, pool, ptrTable, cfg),
		writer:   newWriter(cfg),
	}, nil
}

// Read attempts to read one complete message from a stream socket. See
// Reader.Read for the exact return convention.
func (b *MessageBus) Read(ctx context.Context, sock StreamSocket) (int, error) {
	return b.reader.Read(ctx, sock)
}

// ReadWithBuffer attempts to read one complete message from a datagram
// socket. See Reader.ReadWithBuffer for the exact return convention.
func (b *MessageBus) ReadWithBuffer(ctx context.Context, sock DatagramSocket) (int, error) {
	return b.reader.ReadWithBuffer(ctx, sock)
}

// Write sends rec over sock, chunking and adaptively reducing chunk size
// as needed. See Writer.Write.
func (b *MessageBus) Write(ctx context.Context, sock Socket, rec *Record) error {
	return b.writer.Write(ctx, sock, rec)
}

// Packet returns a view over the message most recently completed by
// Read/ReadWithBuffer.
func (b *MessageBus) Packet() PacketView {
	return b.reader.Packet()
}

// LastHeader returns the header of the message most recently completed
// by Read/ReadWithBuffer.
func (b *MessageBus) LastHeader() FrameHeader {
	return b.scratch.Info
}

// MoveOut transfers ownership of msgID's in-flight reassembly buffer to
// the caller without going through Packet's flag interpretation. Used
// when a caller wants to manage ownership transfer itself rather than
// relying on the OBJ_PTR convention.
func (b *MessageBus) MoveOut(msgID uint64) []byte {
	return b.pool.MoveOut(msgID)
}

// RegisterPtr registers payload in this bus's pointer table and
// returns the handle a FlagPtr frame should carry.
func (b *MessageBus) RegisterPtr(payload []byte) uint64 {
	return b.ptrTable.Register(payload)
}

// MemorySize reports the scratch buffer size plus the capacity of every
// in-flight reassembly buffer, for memory accounting
// get_memory_size).
func (b *MessageBus) MemorySize() int {
	return b.pool.Size(b.cfg.bufferSize)
}

// PendingCount returns the number of in-flight (not-yet-completed)
// reassembly entries.
func (b *MessageBus) PendingCount() int {
	return b.pool.Len()
}

// InitPipeSocket registers sock's fd with the bus's PipeSocketTable,
// forcing it non-blocking.
func (b *MessageBus) InitPipeSocket(fd int, sock Socket) error {
	return b.pipes.InitPipeSocket(fd, sock)
}

// PipeSocket looks up a previously registered pipe socket by fd.
func (b *MessageBus) PipeSocket(fd int) (Socket, bool) {
	return b.pipes.Lookup(fd)
}

// Close releases resources the bus owns directly (the pipe socket
// table's bookkeeping). It does not close any Socket passed to
// Read/Write/ReadWithBuffer — those remain caller-owned.
func (b *MessageBus) Close() error {
	b.pipes.Clear()
	return nil
}
