package messagebus

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"
)

// createTestTCPPair creates a connected pair of TCP connections for
// testing, modeled after a connection-pair test helper of the same
// name.
func createTestTCPPair(t *testing.T) (*net.TCPConn, *net.TCPConn) {
	t.Helper()

	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer listener.Close()

	clientChan := make(chan *net.TCPConn, 1)
	errChan := make(chan error, 1)
	go func() {
		conn, err := net.DialTCP("tcp", nil, listener.Addr().(*net.TCPAddr))
		if err != nil {
			errChan <- err
			return
		}
		clientChan <- conn
	}()

	serverConn, err := listener.AcceptTCP()
	if err != nil {
		t.Fatalf("failed to accept: %v", err)
	}

	select {
	case clientConn := <-clientChan:
		return serverConn, clientConn
	case err := <-errChan:
		serverConn.Close()
		t.Fatalf("client dial failed: %v", err)
		return nil, nil
	case <-time.After(5 * time.Second):
		serverConn.Close()
		t.Fatal("timeout waiting for client connection")
		return nil, nil
	}
}

func TestStreamSocketRoundTripOverTCP(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	bufSize := 8192
	serverSock, err := NewStreamSocket(serverConn, bufSize)
	if err != nil {
		t.Fatalf("NewStreamSocket (server): %v", err)
	}
	clientSock, err := NewStreamSocket(clientConn, bufSize)
	if err != nil {
		t.Fatalf("NewStreamSocket (client): %v", err)
	}

	writer, err := New(BufferSizeOption(bufSize))
	if err != nil {
		t.Fatalf("New (writer bus): %v", err)
	}
	reader, err := New(BufferSizeOption(bufSize))
	if err != nil {
		t.Fatalf("New (reader bus): %v", err)
	}

	payload := payloadOf(500)
	ctx := context.Background()
	if err := writer.Write(ctx, clientSock, &Record{FD: 1, Type: 9, Payload: payload}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var n int
	for time.Now().Before(deadline) {
		n, err = reader.Read(ctx, serverSock)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if n == 0 {
		t.Fatal("timed out waiting for the message to arrive")
	}

	view := reader.Packet()
	defer view.Release()
	if !bytes.Equal(view.Payload, payload) {
		t.Fatal("payload mismatch over a real TCP connection")
	}
	if view.Header.FD != 1 || view.Header.Type != 9 {
		t.Fatalf("header mismatch: %+v", view.Header)
	}
}

func TestStreamSocketFdExposesRawDescriptor(t *testing.T) {
	serverConn, clientConn := createTestTCPPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	sock, err := NewStreamSocket(serverConn, 4096)
	if err != nil {
		t.Fatalf("NewStreamSocket: %v", err)
	}
	if sock.Fd() < 0 {
		t.Fatal("expected a non-negative fd for a real TCP connection")
	}
}
