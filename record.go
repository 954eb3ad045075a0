package messagebus

// Record is the caller-facing shape of one logical message, chunked or
// not. Writer.Write slices Payload into wire frames; Reader.Read
// reassembles wire frames back into one.
type Record struct {
	FD        int64
	ReactorID int16
	ServerFD  uint16
	Type      uint8
	ExtFlags  uint16
	Time      float64
	Payload   []byte
}

// header builds the FrameHeader shared by every chunk of this record;
// Len, ChunkLen, Flags and MsgID are filled in per chunk by the writer.
func (r *Record) header() FrameHeader {
	return FrameHeader{
		FD:        r.FD,
		ReactorID: r.ReactorID,
		ServerFD:  r.ServerFD,
		Type:      r.Type,
		ExtFlags:  r.ExtFlags,
		Time:      r.Time,
	}
}

// PacketView is the result of a completed Reader.Read: a header plus a
// view over its payload bytes. The view aliases either the scratch
// buffer (non-chunked frames) or a reassembly pool entry (chunked
// frames) — Owned reports which, since only the latter must be released
// back to the Allocator once the caller is done with it.
type PacketView struct {
	Header  FrameHeader
	Payload []byte
	Owned   bool

	allocator Allocator
}

// Release returns Payload to the Allocator it came from. It is a no-op
// for non-owned views (aliases into the scratch buffer, valid only until
// the next Read) and safe to call more than once.
func (p *PacketView) Release() {
	if !p.Owned || p.Payload == nil {
		return
	}
	p.allocator.Free(p.Payload)
	p.Payload = nil
	p.Owned = false
}
