package p2p

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runziggurat/zcash/log"
	"github.com/runziggurat/zcash/wire"
)

// defaultOutboundQueueDepth bounds the writer's outbound FIFO. Enqueue
// returns ErrQueueFull rather than blocking once it is reached.
const defaultOutboundQueueDepth = 64

// countingConn wraps a net.Conn, tallying every byte actually moved over the
// socket so callers can report real traffic volume rather than a count of
// messages.
type countingConn struct {
	net.Conn
	bytesRead    uint64
	bytesWritten uint64
}

func (c *countingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	atomic.AddUint64(&c.bytesRead, uint64(n))
	return n, err
}

func (c *countingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	atomic.AddUint64(&c.bytesWritten, uint64(n))
	return n, err
}

// Envelope is one inbound frame delivered to a Connection's owner, in
// arrival order. Err is set, and Message nil, for a non-fatal framing error:
// the frame was dropped but the connection stays open.
type Envelope struct {
	Message wire.Message
	Err     error
}

// Connection owns one TCP socket's reader and writer tasks. It cannot be
// resurrected once closed; callers establish a new Connection for a new
// attempt.
type Connection struct {
	conn       *countingConn
	magic      wire.Magic
	maxPayload uint32
	direction  Direction
	remote     *net.TCPAddr
	createdAt  time.Time
	nonce      uint64
	log        log.Logger

	mu          sync.Mutex
	state       State
	closeReason error

	outq  chan wire.Message
	inbox chan Envelope

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Config bundles the construction-time parameters a Connection needs beyond
// the raw socket.
type Config struct {
	Magic              wire.Magic
	MaxPayload         uint32 // 0 uses wire.MaxPayloadSize
	OutboundQueueDepth int    // 0 uses defaultOutboundQueueDepth
	InboxDepth         int    // 0 uses defaultOutboundQueueDepth
	Nonce              uint64
	Logger             log.Logger
}

// NewConnection wraps conn, ready for Start.
func NewConnection(conn net.Conn, direction Direction, cfg Config) *Connection {
	outDepth := cfg.OutboundQueueDepth
	if outDepth <= 0 {
		outDepth = defaultOutboundQueueDepth
	}
	inDepth := cfg.InboxDepth
	if inDepth <= 0 {
		inDepth = defaultOutboundQueueDepth
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Root()
	}

	remote, _ := conn.RemoteAddr().(*net.TCPAddr)
	return &Connection{
		conn:       &countingConn{Conn: conn},
		magic:      cfg.Magic,
		maxPayload: cfg.MaxPayload,
		direction:  direction,
		remote:     remote,
		createdAt:  time.Now(),
		nonce:      cfg.Nonce,
		log:        logger.New("remote", conn.RemoteAddr(), "dir", direction),
		state:      StateConnecting,
		outq:       make(chan wire.Message, outDepth),
		inbox:      make(chan Envelope, inDepth),
		done:       make(chan struct{}),
	}
}

// Start launches the reader and writer goroutines. ctx cancellation (or
// Close) stops both; Start returns immediately.
func (c *Connection) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.wg.Add(2)
	go c.readLoop(ctx, cancel)
	go c.writeLoop(ctx, cancel)
	go func() {
		c.wg.Wait()
		close(c.inbox)
		close(c.done)
	}()
}

// Done reports when both tasks have exited.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Inbox delivers decoded frames (and non-fatal decode errors) in arrival
// order.
func (c *Connection) Inbox() <-chan Envelope { return c.inbox }

// State returns the connection's current FSM state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState transitions the connection's FSM state. It is exported for the
// handshake driver (package p2p itself), which owns the transition logic.
func (c *Connection) SetState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Direction reports which side dialed.
func (c *Connection) Direction() Direction { return c.direction }

// RemoteAddr is the peer's TCP address.
func (c *Connection) RemoteAddr() *net.TCPAddr { return c.remote }

// CreatedAt is this Connection's construction time.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// Nonce is the locally generated handshake nonce used to detect
// self-connection.
func (c *Connection) Nonce() uint64 { return c.nonce }

// BytesRead is the total number of raw bytes read from the socket so far.
func (c *Connection) BytesRead() uint64 { return atomic.LoadUint64(&c.conn.bytesRead) }

// BytesWritten is the total number of raw bytes written to the socket so far.
func (c *Connection) BytesWritten() uint64 { return atomic.LoadUint64(&c.conn.bytesWritten) }

// Enqueue queues m for the writer task. It never blocks: a full queue
// returns ErrQueueFull immediately. Enqueue is also used internally to drive
// the handshake itself, so it does not require Established; callers sending
// application payloads should use SendApplication instead.
func (c *Connection) Enqueue(m wire.Message) error {
	if c.State() >= StateClosing {
		return ErrClosed
	}
	select {
	case c.outq <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

// SendApplication enqueues m like Enqueue, but refuses to send unless the
// handshake has completed, returning ErrNotEstablished otherwise.
func (c *Connection) SendApplication(m wire.Message) error {
	if c.State() != StateEstablished {
		return ErrNotEstablished
	}
	return c.Enqueue(m)
}

// Close transitions the connection to Closing (if not already past it),
// closes the socket, and returns once both tasks have exited.
func (c *Connection) Close(reason error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosing
		c.closeReason = reason
		c.mu.Unlock()
		_ = c.conn.Close()
	})
	<-c.done
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
}

// CloseReason returns the error that triggered Close, if any.
func (c *Connection) CloseReason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}

func (c *Connection) readLoop(ctx context.Context, cancel context.CancelFunc) {
	defer c.wg.Done()
	defer cancel()
	for {
		msg, err := wire.Decode(c.conn, c.magic, c.maxPayload)
		if err != nil {
			if isSoftFramingError(err) {
				c.log.Debug("dropping malformed frame", "err", err)
				select {
				case c.inbox <- Envelope{Err: err}:
				case <-ctx.Done():
					return
				}
				continue
			}
			// ErrWrongMagic, ErrOversize, or an I/O error: fatal to the
			// connection.
			c.log.Debug("closing connection on framing error", "err", err)
			go c.Close(err)
			return
		}
		select {
		case c.inbox <- Envelope{Message: msg}:
		case <-ctx.Done():
			return
		}
	}
}

// isSoftFramingError reports whether err is one of the non-fatal framing
// errors that only drop the offending frame: BadChecksum, UnknownCommand, or
// BadPayload.
func isSoftFramingError(err error) bool {
	if errors.Is(err, wire.ErrBadChecksum) {
		return true
	}
	var unknown *wire.UnknownCommandError
	if errors.As(err, &unknown) {
		return true
	}
	var bad *wire.BadPayloadError
	if errors.As(err, &bad) {
		return true
	}
	return false
}

func (c *Connection) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	defer c.wg.Done()
	defer cancel()
	for {
		select {
		case msg := <-c.outq:
			if err := wire.Encode(c.conn, c.magic, msg); err != nil {
				if !errors.Is(err, io.EOF) {
					c.log.Debug("write error, closing connection", "err", err)
				}
				go c.Close(err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
