package messagebus

import "testing"

func TestNewRejectsUndersizedBuffer(t *testing.T) {
	_, err := New(BufferSizeOption(HeaderSize))
	if err == nil {
		t.Fatal("expected an error when buffer size cannot hold even an empty frame")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	bus, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if bus.cfg.bufferSize != defaultBufferSize {
		t.Fatalf("bufferSize = %d, want default %d", bus.cfg.bufferSize, defaultBufferSize)
	}
	if bus.cfg.maxRecvChunkCount != defaultMaxRecvChunkCount {
		t.Fatalf("maxRecvChunkCount = %d, want default %d", bus.cfg.maxRecvChunkCount, defaultMaxRecvChunkCount)
	}
}

func TestMessageBusMemorySize(t *testing.T) {
	bus, err := New(BufferSizeOption(4096))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base := bus.MemorySize()
	if base != 4096 {
		t.Fatalf("MemorySize() = %d, want 4096 with an empty pool", base)
	}

	bus.pool.GetOrCreate(&FrameHeader{MsgID: 1, Flags: FlagChunk | FlagBegin, Len: 1000})
	if grown := bus.MemorySize(); grown <= base {
		t.Fatalf("MemorySize() = %d, want > %d once a reassembly entry exists", grown, base)
	}
}

func TestMessageBusPipeSocketTable(t *testing.T) {
	bus, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sock := newFakeStreamSocket()
	if err := bus.InitPipeSocket(sock.Fd(), sock); err != nil {
		t.Fatalf("InitPipeSocket: %v", err)
	}

	got, ok := bus.PipeSocket(sock.Fd())
	if !ok || got != Socket(sock) {
		t.Fatal("expected to find the registered pipe socket")
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := bus.PipeSocket(sock.Fd()); ok {
		t.Fatal("Close must clear registered pipe sockets")
	}
}

func TestMessageBusRegisterAndResolvePtr(t *testing.T) {
	bus, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	payload := []byte("hello")
	handle := bus.RegisterPtr(payload)

	v, ok := bus.ptrTable.Take(handle)
	if !ok {
		t.Fatal("expected to resolve a registered handle")
	}
	b, _ := v.([]byte)
	if string(b) != "hello" {
		t.Fatalf("resolved payload = %q, want %q", b, "hello")
	}

	if _, ok := bus.ptrTable.Take(handle); ok {
		t.Fatal("Take should remove the handle after first use")
	}
}
