package messagebus

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Handler processes a complete message read off a BusConn. Returning a
// non-nil error terminates the connection.
type Handler interface {
	OnRecord(conn *BusConn, view PacketView) error
}

// busConnOptions holds BusConn configuration.
type busConnOptions struct {
	handler     Handler
	logger      Logger
	bufferSize  int
	idleTimeout time.Duration
	pollEvery   time.Duration
}

// BusConnOption configures a BusConn.
type BusConnOption func(*busConnOptions)

// Default configuration values for BusConn, mirrored from conn.go.
const (
	defaultSendBufferSize = 8
	defaultIdleTimeout    = 30 * time.Second
	defaultPollInterval   = time.Millisecond
)

// BusConnHandlerOption sets the required message handler.
func BusConnHandlerOption(h Handler) BusConnOption {
	return func(o *busConnOptions) { o.handler = h }
}

// BusConnBufferSizeOption sets the size of the outgoing record channel.
func BusConnBufferSizeOption(size int) BusConnOption {
	return func(o *busConnOptions) { o.bufferSize = size }
}

// BusConnIdleTimeoutOption sets the idle timeout stored in the
// connection's options. readLoop and writeLoop do not apply it, so it
// does not close an idle connection or bound a read or write.
func BusConnIdleTimeoutOption(d time.Duration) BusConnOption {
	return func(o *busConnOptions) { o.idleTimeout = d }
}

// BusConnLoggerOption sets the logger.
func BusConnLoggerOption(l Logger) BusConnOption {
	return func(o *busConnOptions) { o.logger = l }
}

// BusConnPollIntervalOption sets how long readLoop sleeps between
// would-block polls of the underlying socket.
func BusConnPollIntervalOption(d time.Duration) BusConnOption {
	return func(o *busConnOptions) { o.pollEvery = d }
}

func checkBusConnOptions(o *busConnOptions) error {
	if o.handler == nil {
		return ErrInvalidHandler
	}
	if o.bufferSize <= 0 {
		o.bufferSize = defaultSendBufferSize
	}
	if o.idleTimeout <= 0 {
		o.idleTimeout = defaultIdleTimeout
	}
	if o.pollEvery <= 0 {
		o.pollEvery = defaultPollInterval
	}
	if o.logger == nil {
		o.logger = defaultLogger()
	}
	return nil
}

// BusConn pairs one StreamSocket with one MessageBus and drives
// concurrent read/write loops over it: a buffered outbound channel, an
// errgroup-driven read/write pair, and an idempotent Close.
type BusConn struct {
	sock StreamSocket
	bus  *MessageBus

	opts busConnOptions

	sendMsg chan *Record
	closed  atomic.Bool
	cancel  context.CancelFunc
}

// NewBusConn wraps conn (already adapted to a StreamSocket) with bus and
// the given options.
func NewBusConn(sock StreamSocket, bus *MessageBus, opt ...BusConnOption) (*BusConn, error) {
	var opts busConnOptions
	for _, o := range opt {
		o(&opts)
	}
	if err := checkBusConnOptions(&opts); err != nil {
		return nil, err
	}

	return &BusConn{
		sock:    sock,
		bus:     bus,
		opts:    opts,
		sendMsg: make(chan *Record, opts.bufferSize),
	}, nil
}

// Run starts the connection's read and write loops and blocks until one
// of them returns or ctx is canceled. The connection is closed before
// Run returns.
func (c *BusConn) Run(ctx context.Context) error {
	c.opts.logger.Info("bus connection established", "fd", c.sock.Fd())

	ctx, c.cancel = context.WithCancel(ctx)
	group, child := errgroup.WithContext(ctx)

	group.Go(func() error { return c.readLoop(child) })
	group.Go(func() error { return c.writeLoop(child) })

	err := group.Wait()
	c.closeConn()

	if err != nil && err != context.Canceled {
		c.opts.logger.Info("bus connection closed with error", "fd", c.sock.Fd(), "error", err)
	} else {
		c.opts.logger.Info("bus connection closed", "fd", c.sock.Fd())
	}

	return err
}

// Close gracefully closes the connection. Safe to call multiple times.
func (c *BusConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	return c.sock.Close()
}

// IsClosed reports whether the connection has been closed.
func (c *BusConn) IsClosed() bool {
	return c.closed.Load()
}

// WriteRecord queues rec for sending without blocking. Returns
// ErrSendBufferFull if the outgoing queue is saturated,
// ErrBusConnClosed if the connection is closed.
func (c *BusConn) WriteRecord(rec *Record) error {
	if c.closed.Load() {
		return ErrBusConnClosed
	}
	select {
	case c.sendMsg <- rec:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// WriteRecordBlocking queues rec for sending, blocking until there is
// room or ctx is done.
func (c *BusConn) WriteRecordBlocking(ctx context.Context, rec *Record) error {
	if c.closed.Load() {
		return ErrBusConnClosed
	}
	select {
	case c.sendMsg <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop polls the socket for complete messages, dispatching each to
// the handler. A would-block result (0, nil) yields briefly before
// retrying, since the underlying Socket is always polled non-blockingly.
func (c *BusConn) readLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := c.bus.Read(ctx, c.sock)
		if err != nil {
			c.opts.logger.Debug("read error", "fd", c.sock.Fd(), "error", err)
			return err
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			continue
		}

		view := c.bus.Packet()
		if err := c.opts.handler.OnRecord(c, view); err != nil {
			view.Release()
			return err
		}
		view.Release()
	}
}

// writeLoop sends queued records to the socket until ctx is done.
func (c *BusConn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-c.sendMsg:
			if err := c.bus.Write(ctx, c.sock, rec); err != nil {
				c.opts.logger.Debug("write error", "fd", c.sock.Fd(), "error", err)
				return err
			}
		}
	}
}

func (c *BusConn) closeConn() {
	c.closed.Store(true)
	_ = c.sock.Close()
}
