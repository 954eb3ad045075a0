package messagebus

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// pollDeadline is the SetReadDeadline trick used throughout this file to
// turn a blocking net.Conn into a pollable one: a deadline one millisecond
// ahead makes the next read return at once with data already buffered by
// the kernel, or after that millisecond with os.ErrDeadlineExceeded,
// which this package treats as the would-block case of a non-blocking fd.
// (A deadline of exactly "now" has already passed when the read starts,
// so the runtime reports a timeout without attempting the read at all.)
var pollDeadline = func() time.Time { return time.Now().Add(time.Millisecond) }

// netStreamSocket adapts a net.Conn (TCP or Unix-stream) to StreamSocket.
type netStreamSocket struct {
	conn net.Conn
	br   *bufio.Reader
	fd   int
}

// NewStreamSocket wraps conn for use as a StreamSocket. bufSize sizes the
// internal bufio.Reader; it should be at least as large as the bus's
// configured frame buffer size so a full frame is never split across
// bufio's own refills in a way that defeats Peek.
func NewStreamSocket(conn net.Conn, bufSize int) (StreamSocket, error) {
	s := &netStreamSocket{
		conn: conn,
		br:   bufio.NewReaderSize(conn, bufSize),
		fd:   -1,
	}
	if fd, err := fdOf(conn); err == nil {
		s.fd = fd
	}
	return s, nil
}

func (s *netStreamSocket) Fd() int { return s.fd }

func (s *netStreamSocket) Peek(ctx context.Context, n int) ([]byte, ReadOutcome, error) {
	if err := s.applyDeadline(ctx); err != nil {
		return nil, ReadError, err
	}
	buf, err := s.br.Peek(n)
	if err == nil {
		return buf, ReadOK, nil
	}
	if isWouldBlock(err) {
		return buf, ReadWouldBlock, nil
	}
	if errors.Is(err, os.ErrClosed) {
		return buf, ReadClosed, ErrPeerClosed
	}
	return buf, ReadError, err
}

func (s *netStreamSocket) Discard(n int) error {
	_, err := s.br.Discard(n)
	return err
}

func (s *netStreamSocket) WriteV(ctx context.Context, bufs [][]byte) (int, WriteOutcome, error) {
	if err := s.applyWriteDeadline(ctx); err != nil {
		return 0, WriteError, err
	}
	nb := net.Buffers(bufs)
	written, err := nb.WriteTo(s.conn)
	if err == nil {
		return int(written), WriteOK, nil
	}
	return int(written), classifyWriteError(err), err
}

func (s *netStreamSocket) Close() error { return s.conn.Close() }

// applyDeadline arranges for the next read to return promptly instead
// of blocking forever, so callers can poll cooperatively. When ctx has a
// deadline later than the poll deadline, ctx's deadline is used and the
// read may wait until then; otherwise the poll deadline applies, matching
// a single non-blocking read attempt.
func (s *netStreamSocket) applyDeadline(ctx context.Context) error {
	d := pollDeadline()
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.After(d) {
		d = ctxDeadline
	}
	return s.conn.SetReadDeadline(d)
}

func (s *netStreamSocket) applyWriteDeadline(ctx context.Context) error {
	d := pollDeadline()
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.After(d) {
		d = ctxDeadline
	}
	return s.conn.SetWriteDeadline(d)
}

func isWouldBlock(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
		return true
	}
	return false
}

// classifyWriteError maps a write failure to the outcome the Writer acts
// on. EMSGSIZE/ENOBUFS mean the chunk itself was too large for the
// transport and should be retried smaller; would-block means the peer's
// buffer is full and is a hard failure instead, since shrinking the
// chunk would not help.
func classifyWriteError(err error) WriteOutcome {
	if errors.Is(err, unix.EMSGSIZE) || errors.Is(err, unix.ENOBUFS) {
		return WriteReduceSize
	}
	if isWouldBlock(err) {
		return WriteWouldBlock
	}
	return WriteError
}

// fdOf extracts the raw file descriptor from a net.Conn purely for
// logging/table-keying purposes. The socket wrappers read it once at
// construction and never use it for I/O or to change fd state.
func fdOf(conn net.Conn) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1, errUnsupportedConn
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	cerr := raw.Control(func(u uintptr) { fd = int(u) })
	if cerr != nil {
		return -1, cerr
	}
	return fd, nil
}

var errUnsupportedConn = errors.New("messagebus: connection type does not expose a raw fd")
