package messagebus

// scratchBuffer is the single contiguous receive/peek area owned by a
// MessageBus. It is reused across frames and never
// handed to callers directly; PacketView and Pool.MoveOut are the only
// sanctioned ways to observe or take ownership of its contents.
//
// Invariant: its contents are valid only between a successful read and
// the next read call, callers must finish with the
// previous frame (via Packet/MoveOut) before invoking Read again.
type scratchBuffer struct {
	// Info is the header decoded from the most recently read frame.
	Info FrameHeader

	raw      []byte
	objMsgID uint64
}

func newScratchBuffer(bufferSize int) *scratchBuffer {
	return &scratchBuffer{raw: make([]byte, bufferSize)}
}

// maxChunkBytes is buffer_size - sizeof(FrameHeader), the largest payload
// slice that fits alongside a header in one frame.
func (s *scratchBuffer) maxChunkBytes() int { return len(s.raw) - HeaderSize }

// header returns the HeaderSize-byte slot used for peeking/reading the
// wire header, aliasing the front of raw.
func (s *scratchBuffer) header() []byte { return s.raw[:HeaderSize] }

// payload returns the bytes after the header slot, used as the target
// for single-shot non-chunked reads and as scratch for PTR/OBJ_PTR markers.
func (s *scratchBuffer) payload() []byte { return s.raw[HeaderSize:] }
