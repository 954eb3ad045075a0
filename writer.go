package messagebus

import (
	"context"

	"github.com/pkg/errors"
)

// Writer slices a Record into one or more frames and writes them to a
// Socket, reducing its chunk size on backpressure.
type Writer struct {
	cfg *config
}

func newWriter(cfg *config) *Writer {
	return &Writer{cfg: cfg}
}

// Write sends rec over sock. An empty payload is sent as a single
// zero-length frame. A payload that fits in one frame is sent
// unchunked unless AlwaysChunkedTransferOption is set. Anything larger
// is sent as a BEGIN/.../END chunk sequence, with the chunk size backed
// off to the configured IPC floor the first time a write is rejected as
// too large for the peer's socket buffer.
func (w *Writer) Write(ctx context.Context, sock Socket, rec *Record) error {
	msgID := w.cfg.idGenerator.NextMsgID()
	header := rec.header()
	header.MsgID = msgID

	payload := rec.Payload
	total := len(payload)

	if total == 0 {
		header.Flags = 0
		header.Len = 0
		header.ChunkLen = 0
		return w.writeFrame(ctx, sock, &header, nil)
	}

	maxLen := w.cfg.bufferSize - HeaderSize

	if !w.cfg.alwaysChunkedTransfer && total <= maxLen {
		header.Flags = 0
		header.Len = uint32(total)
		header.ChunkLen = uint32(total)
		err := w.writeFrame(ctx, sock, &header, payload)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errShouldReduceSize) || maxLen <= w.cfg.ipcBufferSize {
			return err
		}
		maxLen = w.cfg.ipcBufferSize
		w.cfg.eventProbe.OnChunkSizeReduced(msgID, w.cfg.bufferSize-HeaderSize, maxLen)
	}

	header.Flags = FlagChunk | FlagBegin
	header.Len = uint32(total)

	offset := 0
	remaining := total
	for remaining > 0 {
		chunkLen := maxLen
		if remaining <= maxLen {
			chunkLen = remaining
			header.Flags |= FlagEnd
		}
		header.ChunkLen = uint32(chunkLen)

		err := w.writeFrame(ctx, sock, &header, payload[offset:offset+chunkLen])
		if err != nil {
			if errors.Is(err, errShouldReduceSize) && maxLen > w.cfg.ipcBufferSize {
				w.cfg.eventProbe.OnChunkSizeReduced(msgID, maxLen, w.cfg.ipcBufferSize)
				maxLen = w.cfg.ipcBufferSize
				header.Flags &^= FlagEnd
				continue
			}
			return err
		}

		header.Flags &^= FlagBegin
		offset += chunkLen
		remaining -= chunkLen
	}

	return nil
}

// errShouldReduceSize marks a write failure classified as "the peer's
// socket buffer is too small for this chunk, retry smaller" rather than
// a hard failure. Write handles it internally by reducing the chunk
// size, and returns it to the caller only when a write is rejected again
// after the chunk size is already at the IPC floor.
var errShouldReduceSize = errors.New("messagebus: write rejected, reduce chunk size")

func (w *Writer) writeFrame(ctx context.Context, sock Socket, header *FrameHeader, payload []byte) error {
	hdrBytes, err := header.MarshalBinary()
	if err != nil {
		return err
	}

	bufs := [][]byte{hdrBytes}
	want := len(hdrBytes)
	if payload != nil {
		bufs = append(bufs, payload)
		want += len(payload)
	}

	n, outcome, err := sock.WriteV(ctx, bufs)
	switch outcome {
	case WriteOK:
		if n != want {
			return errors.Wrap(ErrWriteFailed, "short write")
		}
		return nil
	case WriteReduceSize:
		return errShouldReduceSize
	case WriteWouldBlock:
		return errors.Wrap(ErrWriteFailed, "would block")
	default:
		if err != nil {
			return errors.Wrap(err, "write frame")
		}
		return ErrWriteFailed
	}
}
