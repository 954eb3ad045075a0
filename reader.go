package messagebus

import (
	"context"

	"github.com/pkg/errors"
)

// Reader reassembles frames read from a Socket back into Records. It
// owns no Socket itself; each call is handed one to read from,
// so a MessageBus can freely switch which connection it is servicing.
type Reader struct {
	scratch  *scratchBuffer
	pool     *Pool
	ptrTable *PtrTable
	cfg      *config
}

func newReader(scratch *scratchBuffer, pool *Pool, ptrTable *PtrTable, cfg *config) *Reader {
	return &Reader{scratch: scratch, pool: pool, ptrTable: ptrTable, cfg: cfg}
}

// Read drives the stream reassembly state machine over sock. It returns
// (n, nil) with n > 0 once a full message (chunked or not) has landed in
// the scratch buffer or reassembly pool and is ready via Packet(); (0,
// nil) means no complete message is available yet and the caller should
// retry later; any non-nil error is fatal for sock.
//
// Every peek attempted here is non-destructive until a full frame (or
// chunk) is confirmed present: Discard is only called once every byte of
// what's being consumed has actually been observed, so a short arrival
// never leaves the stream mid-frame on the next call.
func (r *Reader) Read(ctx context.Context, sock StreamSocket) (int, error) {
	chunkCount := 0
	for {
		hdrBuf, outcome, err := sock.Peek(ctx, HeaderSize)
		switch outcome {
		case ReadWouldBlock:
			return 0, nil
		case ReadClosed:
			return 0, err
		case ReadError:
			return 0, errors.Wrap(err, "peek frame header")
		}

		var header FrameHeader
		if err := header.UnmarshalBinary(hdrBuf); err != nil {
			return 0, err
		}

		if !header.IsChunked() {
			total := HeaderSize + int(header.Len)
			if total > len(r.scratch.raw) {
				return 0, errors.Wrapf(ErrOversizeFrame, "len=%d capacity=%d", header.Len, r.scratch.maxChunkBytes())
			}
			full, outcome, err := sock.Peek(ctx, total)
			if outcome == ReadWouldBlock || (outcome == ReadOK && len(full) < total) {
				return 0, nil
			}
			if outcome == ReadClosed {
				return 0, err
			}
			if outcome == ReadError {
				return 0, errors.Wrap(err, "peek frame body")
			}
			copy(r.scratch.raw[:total], full)
			if err := sock.Discard(total); err != nil {
				return 0, errors.Wrap(err, "discard frame")
			}
			r.scratch.Info = header
			return total, nil
		}

		entry := r.pool.GetOrCreate(&header)
		if entry == nil {
			r.cfg.logger.Warn("abnormal pipeline data: continuation with no begin",
				"msg_id", header.MsgID, "fd", sock.Fd(), "reactor_id", header.ReactorID)
			if err := sock.Discard(HeaderSize); err != nil {
				return 0, errors.Wrap(err, "discard orphan header")
			}
			return 0, nil
		}

		chunkLen := int(header.ChunkLen)
		if chunkLen > r.scratch.maxChunkBytes() {
			return 0, errors.Wrapf(ErrOversizeFrame, "chunk_len=%d capacity=%d", chunkLen, r.scratch.maxChunkBytes())
		}
		if entry.length+chunkLen > len(entry.payload) {
			return 0, errors.Wrapf(ErrOversizeFrame, "chunk_len=%d offset=%d capacity=%d",
				chunkLen, entry.length, len(entry.payload))
		}
		total := HeaderSize + chunkLen

		full, outcome, err := sock.Peek(ctx, total)
		if outcome == ReadWouldBlock || (outcome == ReadOK && len(full) < total) {
			return 0, nil
		}
		if outcome == ReadClosed {
			return 0, err
		}
		if outcome == ReadError {
			return 0, errors.Wrap(err, "peek chunk")
		}

		copy(entry.payload[entry.length:entry.length+chunkLen], full[HeaderSize:total])
		entry.length += chunkLen
		if err := sock.Discard(total); err != nil {
			return 0, errors.Wrap(err, "discard chunk")
		}

		chunkCount++
		if !header.IsEnd() {
			if chunkCount >= r.cfg.maxRecvChunkCount {
				r.cfg.eventProbe.OnChunkCapReached(header.MsgID, chunkCount)
				return 0, nil
			}
			continue
		}

		header.Flags |= FlagObjPtr
		r.scratch.Info = header
		r.scratch.objMsgID = header.MsgID
		return total, nil
	}
}

// ReadWithBuffer drives the datagram reassembly state machine over sock
// Only datagram sockets can use it: each receive is one atomic
// message, so unlike Read there is no peek/discard split, and an orphan
// continuation is unrecoverable rather than merely logged.
func (r *Reader) ReadWithBuffer(ctx context.Context, sock DatagramSocket) (int, error) {
	chunkCount := 0
	for {
		n, outcome, err := sock.ReadDatagram(ctx, r.scratch.raw)
		switch outcome {
		case ReadWouldBlock:
			return 0, nil
		case ReadClosed:
			return 0, err
		case ReadError:
			return 0, errors.Wrap(err, "read datagram")
		}
		if n < HeaderSize {
			return 0, errors.Wrap(ErrShortHeader, "datagram shorter than header")
		}

		var header FrameHeader
		if err := header.UnmarshalBinary(r.scratch.raw[:HeaderSize]); err != nil {
			return 0, err
		}
		if n < HeaderSize+int(header.ChunkLen) {
			return 0, errors.Wrapf(ErrOversizeFrame, "chunk_len=%d received=%d", header.ChunkLen, n-HeaderSize)
		}
		chunkCount++

		if !header.IsChunked() {
			r.scratch.Info = header
			return n, nil
		}

		entry := r.pool.GetOrCreate(&header)
		if entry == nil {
			return 0, errors.Wrapf(ErrOrphanContinuation, "msg_id=%d fd=%d reactor_id=%d",
				header.MsgID, sock.Fd(), header.ReactorID)
		}

		copy(entry.payload[entry.length:], r.scratch.raw[HeaderSize:n])
		entry.length += n - HeaderSize

		if !header.IsEnd() {
			if chunkCount >= r.cfg.maxRecvChunkCount {
				r.cfg.eventProbe.OnChunkCapReached(header.MsgID, chunkCount)
				return 0, nil
			}
			continue
		}

		header.Flags |= FlagObjPtr
		r.scratch.Info = header
		r.scratch.objMsgID = header.MsgID
		return n, nil
	}
}

// Packet returns a view over the most recently completed read, resolving
// PTR and OBJ_PTR payloads the way the flags require
// get_packet): a plain frame aliases the scratch buffer, an OBJ_PTR
// frame takes ownership of its reassembly buffer, and a PTR frame
// resolves a previously registered local handle.
func (r *Reader) Packet() PacketView {
	header := r.scratch.Info
	switch {
	case header.IsObjPtr():
		payload := r.pool.MoveOut(r.scratch.objMsgID)
		return PacketView{Header: header, Payload: payload, Owned: true, allocator: r.cfg.allocator}
	case header.IsPtr():
		payload := r.scratch.payload()
		if len(payload) < 8 {
			return PacketView{Header: header}
		}
		handle := frameByteOrder.Uint64(payload[:8])
		v, ok := r.ptrTable.Take(handle)
		if !ok {
			return PacketView{Header: header}
		}
		b, _ := v.([]byte)
		return PacketView{Header: header, Payload: b, Owned: false}
	default:
		return PacketView{Header: header, Payload: r.scratch.payload()[:header.Len], Owned: false}
	}
}
