package messagebus

import (
	"bytes"
	"context"
	"testing"
)

// TestWriter_EmptyPayload covers the empty-payload policy: a
// header-only frame with zero flags and zero length.
func TestWriter_EmptyPayload(t *testing.T) {
	bus, err := New(BufferSizeOption(4096))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sock := newFakeStreamSocket()
	ctx := context.Background()

	if err := bus.Write(ctx, sock, &Record{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(sock.writes) != 1 || len(sock.writes[0]) != HeaderSize {
		t.Fatalf("expected exactly one HeaderSize write, got %v", sock.writes)
	}

	var h FrameHeader
	if err := h.UnmarshalBinary(sock.writes[0]); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if h.Flags != 0 || h.Len != 0 {
		t.Fatalf("header = %+v, want zero flags/len", h)
	}
}

// TestWriter_AdaptiveReduce verifies that a REDUCE_SIZE failure on the
// fast path forces the chunked path with max_chunk_bytes reduced to the
// configured IPC floor, and that the peer still reassembles the
// identical payload.
func TestWriter_AdaptiveReduce(t *testing.T) {
	bufSize := 4096
	ipcFloor := 512
	bus, err := New(BufferSizeOption(bufSize), IPCBufferSizeOption(ipcFloor))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sock := newFakeStreamSocket()
	ctx := context.Background()

	maxChunk := bufSize - HeaderSize
	payload := payloadOf(maxChunk / 2)

	failedOnce := false
	sock.writeResult = func(bufs [][]byte) (int, WriteOutcome, error) {
		whole := concatAll(bufs)
		if !failedOnce {
			failedOnce = true
			return 0, WriteReduceSize, nil
		}
		sock.feed(whole)
		return len(whole), WriteOK, nil
	}

	if err := bus.Write(ctx, sock, &Record{Payload: payload}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !failedOnce {
		t.Fatal("fast path was never attempted")
	}

	// Every chunk actually written to the wire after the fallback must
	// be no larger than the IPC floor.
	for _, w := range sock.writes[1:] {
		chunkPayloadLen := len(w) - HeaderSize
		if chunkPayloadLen > ipcFloor {
			t.Fatalf("chunk payload = %d bytes, want <= IPC floor %d", chunkPayloadLen, ipcFloor)
		}
	}

	n, err := bus.Read(ctx, sock)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n == 0 {
		t.Fatal("expected a completed message on the peer side")
	}
	view := bus.Packet()
	defer view.Release()
	if !bytes.Equal(view.Payload, payload) {
		t.Fatal("reassembled payload mismatch after adaptive reduce")
	}
}

// TestWriter_AlwaysChunkedTransfer forces the chunked path even for
// payloads that would otherwise fit in one frame.
func TestWriter_AlwaysChunkedTransfer(t *testing.T) {
	bus, err := New(BufferSizeOption(4096), AlwaysChunkedTransferOption(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sock := newFakeStreamSocket()
	ctx := context.Background()

	payload := payloadOf(10)
	if err := bus.Write(ctx, sock, &Record{Payload: payload}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var h FrameHeader
	if err := h.UnmarshalBinary(sock.writes[0]); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if !h.IsChunked() {
		t.Fatal("AlwaysChunkedTransferOption must force the chunked path")
	}
}

// TestWriter_PersistentErrorFails verifies that a write failure which
// isn't classified as REDUCE_SIZE is returned to the caller (wrapped)
// without a retry.
func TestWriter_PersistentErrorFails(t *testing.T) {
	bus, err := New(BufferSizeOption(4096))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sock := newFakeStreamSocket()
	ctx := context.Background()

	sock.writeResult = func(bufs [][]byte) (int, WriteOutcome, error) {
		return 0, WriteError, ErrWriteFailed
	}

	err = bus.Write(ctx, sock, &Record{Payload: payloadOf(10)})
	if err == nil {
		t.Fatal("expected an error for a persistent write failure")
	}
}
