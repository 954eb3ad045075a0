// Command busdemo runs a small echo service on top of a MessageBus: each
// connection gets its own BusConn, and every completed Record is sent
// straight back to its sender, chunked transparently for payloads
// larger than one frame.
package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/zereker/messagebus"
)

type echoHandler struct {
	connID int64

	mu    sync.RWMutex
	conns map[int64]*messagebus.BusConn
}

func newEchoHandler() *echoHandler {
	return &echoHandler{conns: make(map[int64]*messagebus.BusConn)}
}

func (h *echoHandler) Handle(conn net.Conn) {
	id := atomic.AddInt64(&h.connID, 1)

	bus, err := messagebus.New()
	if err != nil {
		slog.Error("failed to create bus", "error", err)
		return
	}

	sock, err := messagebus.NewStreamSocket(conn, 65536)
	if err != nil {
		slog.Error("failed to wrap connection", "error", err)
		return
	}

	busConn, err := messagebus.NewBusConn(sock, bus,
		messagebus.BusConnHandlerOption(echoOf(h, id)))
	if err != nil {
		slog.Error("failed to create bus connection", "error", err)
		return
	}

	h.add(id, busConn)
	defer h.remove(id)

	if err := busConn.Run(context.Background()); err != nil {
		slog.Debug("connection ended", "conn_id", id, "error", err)
	}
}

// echoOf returns a Handler that writes every record it sees straight
// back to the connection it arrived on.
func echoOf(h *echoHandler, id int64) messagebus.Handler {
	return handlerFunc(func(conn *messagebus.BusConn, view messagebus.PacketView) error {
		rec := &messagebus.Record{
			FD:      view.Header.FD,
			Type:    view.Header.Type,
			Payload: append([]byte(nil), view.Payload...),
		}
		return conn.WriteRecord(rec)
	})
}

// handlerFunc adapts a plain function to messagebus.Handler.
type handlerFunc func(*messagebus.BusConn, messagebus.PacketView) error

func (f handlerFunc) OnRecord(conn *messagebus.BusConn, view messagebus.PacketView) error {
	return f(conn, view)
}

func (h *echoHandler) add(id int64, conn *messagebus.BusConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = conn
}

func (h *echoHandler) remove(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

func main() {
	listener, err := net.Listen("tcp", "127.0.0.1:12345")
	if err != nil {
		slog.Error("failed to listen", "error", err)
		return
	}

	server := messagebus.NewServer(listener)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down server...")
		cancel()
	}()

	slog.Info("server start", "addr", listener.Addr().String())
	if err := server.Serve(ctx, newEchoHandler()); err != nil {
		slog.Error("server error", "error", err)
	}
}
