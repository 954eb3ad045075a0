package messagebus

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Flag bits carried on the wire in FrameHeader.Flags.
const (
	// FlagChunk marks a frame as part of a chunked (multi-frame) message.
	// Its presence alone triggers reassembly.
	FlagChunk uint8 = 1 << iota
	// FlagBegin marks the first chunk of a chunked message.
	FlagBegin
	// FlagEnd marks the final chunk of a chunked message.
	FlagEnd
	// FlagPtr marks a payload that carries a locally meaningful pointer
	// handle instead of inline bytes. Never set by MessageBus on send,
	// only interpreted on receive. See ptr.go.
	FlagPtr
	// FlagObjPtr is a local-only marker (never sent on the wire) set by
	// the reader to indicate the scratch buffer's payload area refers to
	// an owned, reassembled buffer still held by the pool.
	FlagObjPtr
)

// HeaderSize is the fixed wire size of a FrameHeader: 8+8+4+4+2+2+1+1+2+8 bytes.
const HeaderSize = 40

// frameByteOrder is the byte order frames are marshaled with. Peers on the
// same host must agree on it; native order avoids needless byte-swapping
// for same-host IPC, matching a host byte order requirement.
var frameByteOrder = binary.NativeEndian

// FrameHeader is the fixed-layout descriptor prefixing every chunk on the
// wire. Len is the total length of the logical message this frame
// belongs to (constant across every chunk of one message); ChunkLen is
// the number of payload bytes carried by this particular frame, which a
// reader needs to find the next frame's boundary on a byte stream when
// a sender's chunk size is smaller than the receiver's own buffer would
// otherwise lead it to assume. Fields beyond fd/msg_id/len/chunk_len/flags
// are opaque to the bus and are only ever carried through.
type FrameHeader struct {
	FD        int64
	MsgID     uint64
	Len       uint32
	ChunkLen  uint32
	ReactorID int16
	ServerFD  uint16
	Type      uint8
	Flags     uint8
	ExtFlags  uint16
	Time      float64
}

// IsChunked reports whether this frame belongs to a chunked message.
func (h *FrameHeader) IsChunked() bool { return h.Flags&FlagChunk != 0 }

// IsBegin reports whether this is the first chunk of a chunked message.
func (h *FrameHeader) IsBegin() bool { return h.Flags&FlagBegin != 0 }

// IsEnd reports whether this is the final chunk of a chunked message.
func (h *FrameHeader) IsEnd() bool { return h.Flags&FlagEnd != 0 }

// IsPtr reports whether the payload carries a local pointer handle.
func (h *FrameHeader) IsPtr() bool { return h.Flags&FlagPtr != 0 }

// IsObjPtr reports whether the payload area holds a local reference to an
// owned, reassembled pool buffer.
func (h *FrameHeader) IsObjPtr() bool { return h.Flags&FlagObjPtr != 0 }

// MarshalBinary writes the header in its fixed wire layout. The returned
// slice is always HeaderSize bytes.
func (h *FrameHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	frameByteOrder.PutUint64(buf[0:8], uint64(h.FD))
	frameByteOrder.PutUint64(buf[8:16], h.MsgID)
	frameByteOrder.PutUint32(buf[16:20], h.Len)
	frameByteOrder.PutUint32(buf[20:24], h.ChunkLen)
	frameByteOrder.PutUint16(buf[24:26], uint16(h.ReactorID))
	frameByteOrder.PutUint16(buf[26:28], h.ServerFD)
	buf[28] = h.Type
	buf[29] = h.Flags
	frameByteOrder.PutUint16(buf[30:32], h.ExtFlags)
	frameByteOrder.PutUint64(buf[32:40], math.Float64bits(h.Time))
	return buf, nil
}

// UnmarshalBinary decodes a header from its fixed wire layout. buf must be
// at least HeaderSize bytes; trailing bytes are ignored.
func (h *FrameHeader) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize {
		return errors.Wrapf(ErrShortHeader, "got %d bytes, want %d", len(buf), HeaderSize)
	}
	h.FD = int64(frameByteOrder.Uint64(buf[0:8]))
	h.MsgID = frameByteOrder.Uint64(buf[8:16])
	h.Len = frameByteOrder.Uint32(buf[16:20])
	h.ChunkLen = frameByteOrder.Uint32(buf[20:24])
	h.ReactorID = int16(frameByteOrder.Uint16(buf[24:26]))
	h.ServerFD = frameByteOrder.Uint16(buf[26:28])
	h.Type = buf[28]
	h.Flags = buf[29]
	h.ExtFlags = frameByteOrder.Uint16(buf[30:32])
	h.Time = math.Float64frombits(frameByteOrder.Uint64(buf[32:40]))
	return nil
}
