package messagebus

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// ConnHandler is the interface for handling incoming connections
// accepted by a Server. Implementations are responsible for wrapping
// conn in a BusConn (or equivalent) and managing its lifecycle.
type ConnHandler interface {
	Handle(conn net.Conn)
}

// Server listens for incoming connections on any net.Listener (TCP,
// Unix-stream, ...) and dispatches each accepted connection to a
// ConnHandler, generalized to any net.Listener so it can also
// serve Unix-domain sockets, the transport a MessageBus most commonly
// runs over.
type Server struct {
	listener        net.Listener
	logger          Logger
	shutdownTimeout time.Duration

	mu          sync.Mutex
	shutdown    bool
	shutdownNow chan struct{}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout: once
// the context passed to Serve is canceled, the server waits up to this
// duration before stopping the accept loop, giving in-flight Accept
// dispatches time to settle. Default is 0 (immediate shutdown).
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// NewServer wraps an already-listening net.Listener. Callers construct
// the listener themselves (net.Listen("tcp", ...), net.Listen("unix",
// ...), ...) so Server stays transport-agnostic.
func NewServer(listener net.Listener, opts ...ServerOption) *Server {
	s := &Server{
		listener:    listener,
		logger:      slog.Default(),
		shutdownNow: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections and dispatches them to handler. It blocks
// until ctx is canceled or the listener returns an unrecoverable error.
func (s *Server) Serve(ctx context.Context, handler ConnHandler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	go func() {
		<-ctx.Done()

		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			select {
			case <-time.After(s.shutdownTimeout):
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			}
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()

		if tl, ok := s.listener.(interface{ SetDeadline(time.Time) error }); ok {
			_ = tl.SetDeadline(time.Now())
		} else {
			_ = s.listener.Close()
		}
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return err
		}

		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}
		go handler.Handle(conn)
	}
}

// Close stops the server by closing the underlying listener, bypassing
// any configured shutdown timeout.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	select {
	case s.shutdownNow <- struct{}{}:
	default:
	}

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
