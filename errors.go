package messagebus

import "github.com/pkg/errors"

// Sentinel errors returned (possibly wrapped with additional context via
// github.com/pkg/errors.Wrap) by the bus. The bus never panics or
// exits the process; these are always surfaced through return values.
var (
	// ErrShortHeader is returned when fewer than HeaderSize bytes are
	// available to decode a FrameHeader.
	ErrShortHeader = errors.New("messagebus: short frame header")

	// ErrPeerClosed indicates the peer performed an orderly shutdown
	// mid-frame or mid-chunk; fatal for the socket.
	ErrPeerClosed = errors.New("messagebus: peer closed the connection")

	// ErrOversizeFrame indicates a non-chunked frame declares a length
	// that would not fit in the scratch buffer, a chunk declares more
	// bytes than one frame or its reassembly entry can hold, or a
	// datagram is shorter than its header declares. The bus does not cap
	// message length itself (oversize framing is the caller's
	// concern) but a frame that cannot physically fit the scratch
	// buffer is a protocol violation, not a sizing policy decision.
	ErrOversizeFrame = errors.New("messagebus: frame exceeds scratch buffer capacity")

	// ErrOrphanContinuation indicates a chunk arrived for a msg_id with
	// no prior BEGIN chunk. On stream sockets this is recovered from by
	// discarding one header's worth of bytes; on datagram
	// sockets it is fatal.
	ErrOrphanContinuation = errors.New("messagebus: continuation chunk with no matching begin")

	// ErrInvalidBufferSize is returned by New when the configured buffer
	// size cannot hold even an empty frame.
	ErrInvalidBufferSize = errors.New("messagebus: buffer size must exceed the frame header size")

	// ErrInvalidHandler is returned by NewBusConn when no Handler is
	// supplied.
	ErrInvalidHandler = errors.New("messagebus: handler is required")

	// ErrBusConnClosed is returned by BusConn write methods once the
	// connection has been closed.
	ErrBusConnClosed = errors.New("messagebus: connection closed")

	// ErrSendBufferFull is returned by BusConn.WriteRecord when the
	// outgoing queue is saturated and the caller asked not to block.
	ErrSendBufferFull = errors.New("messagebus: send buffer full")

	// ErrWriteFailed is returned when Writer.Write reports failure
	// without an underlying socket error to wrap (e.g. short write).
	ErrWriteFailed = errors.New("messagebus: write failed")
)
