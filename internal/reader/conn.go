package reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"circles_go/internal/protocol/llrp"
)

const (
	DefaultFallbackTimeout = 5 * time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultInboxSize       = 256
)

var ErrClosed = errors.New("connection closed")

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type Options struct {
	Port            int
	FallbackTimeout time.Duration
	WriteTimeout    time.Duration
	InboxSize       int
	Dial            DialFunc
	Logger          *zerolog.Logger
}

func (o Options) normalized() Options {
	if o.Port <= 0 {
		o.Port = llrp.DefaultPort
	}
	if o.FallbackTimeout <= 0 {
		o.FallbackTimeout = DefaultFallbackTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.InboxSize <= 0 {
		o.InboxSize = DefaultInboxSize
	}
	if o.Dial == nil {
		var d net.Dialer
		o.Dial = d.DialContext
	}
	return o
}

// DialError is returned when neither the hostname nor the derived
// link-local address accepted a connection.
type DialError struct {
	Device   string
	Tried    []Endpoint
	Direct   error
	Fallback error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("dial %s: %v", e.Device, e.Fallback)
}

func (e *DialError) Unwrap() error {
	return e.Fallback
}

// Frame is one decoded message received from the reader.
type Frame struct {
	When    time.Time
	Message llrp.Message
	Body    llrp.Body
}

// Conn owns a single reader TCP session. A pump goroutine reads and decodes
// frames into Inbox; writers share a buffered writer behind a mutex.
type Conn struct {
	endpoint Endpoint
	conn     net.Conn
	log      zerolog.Logger
	timeout  time.Duration

	wmu sync.Mutex
	w   *bufio.Writer

	inbox    chan Frame
	done     chan struct{}
	pumpDone chan struct{}
	once     sync.Once
	nextID   atomic.Uint32

	errMu   sync.Mutex
	readErr error
}

// Dial validates the device id, connects to <id>:port and falls back to the
// derived link-local address with a bounded timeout.
func Dial(ctx context.Context, device string, opts Options) (*Conn, error) {
	opts = opts.normalized()
	candidates, err := Candidates(device, opts.Port)
	if err != nil {
		return nil, err
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "reader").Str("device", device).Logger()

	direct := candidates[0]
	conn, directErr := opts.Dial(ctx, "tcp", direct.Address())
	if directErr == nil {
		logger.Info().Str("addr", direct.Address()).Msg("connected")
		return newConn(conn, direct, opts, logger), nil
	}
	logger.Debug().Err(directErr).Str("addr", direct.Address()).Msg("direct dial failed, trying link-local")

	fallback := candidates[1]
	fctx, cancel := context.WithTimeout(ctx, opts.FallbackTimeout)
	defer cancel()
	conn, fallbackErr := opts.Dial(fctx, "tcp", fallback.Address())
	if fallbackErr != nil {
		return nil, &DialError{
			Device:   device,
			Tried:    candidates,
			Direct:   directErr,
			Fallback: fallbackErr,
		}
	}
	logger.Info().Str("addr", fallback.Address()).Msg("connected via link-local")
	return newConn(conn, fallback, opts, logger), nil
}

// NewConn wraps an established connection and starts its pump.
func NewConn(conn net.Conn, endpoint Endpoint, opts Options) *Conn {
	opts = opts.normalized()
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return newConn(conn, endpoint, opts, logger.With().Str("component", "reader").Logger())
}

func newConn(conn net.Conn, endpoint Endpoint, opts Options, logger zerolog.Logger) *Conn {
	c := &Conn{
		endpoint: endpoint,
		conn:     conn,
		log:      logger,
		timeout:  opts.WriteTimeout,
		w:        bufio.NewWriter(conn),
		inbox:    make(chan Frame, opts.InboxSize),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	go c.pump()
	return c
}

func (c *Conn) pump() {
	defer func() {
		close(c.inbox)
		close(c.pumpDone)
	}()

	r := bufio.NewReader(c.conn)
	for {
		msg, err := llrp.ReadMessage(r)
		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.Debug().Err(err).Msg("read loop stopped")
			}
			c.errMu.Lock()
			c.readErr = err
			c.errMu.Unlock()
			return
		}

		body, err := llrp.Decode(msg)
		if err != nil {
			c.log.Warn().Err(err).Stringer("type", msg.Type).Msg("dropping undecodable frame")
			continue
		}

		select {
		case c.inbox <- Frame{When: time.Now(), Message: msg, Body: body}:
		case <-c.done:
			return
		}
	}
}

// Inbox is closed once the pump exits.
func (c *Conn) Inbox() <-chan Frame {
	return c.inbox
}

// Done is closed once the pump exits.
func (c *Conn) Done() <-chan struct{} {
	return c.pumpDone
}

// Err returns the error that stopped the pump, if any.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.readErr
}

func (c *Conn) Endpoint() Endpoint {
	return c.endpoint
}

// NextID returns a fresh message id.
func (c *Conn) NextID() uint32 {
	return c.nextID.Add(1)
}

// Write buffers one message without flushing.
func (c *Conn) Write(m llrp.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}
	return llrp.WriteMessage(c.w, m)
}

// Flush pushes buffered messages out on the socket.
func (c *Conn) Flush() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.flushLocked()
}

func (c *Conn) flushLocked() error {
	if c.isClosed() {
		return ErrClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.w.Flush()
}

// Send frames b with a fresh id, writes and flushes it.
func (c *Conn) Send(b llrp.Body) (uint32, error) {
	id := c.NextID()
	return id, c.SendWithID(id, b)
}

// SendWithID is Send for replies that must echo a request id.
func (c *Conn) SendWithID(id uint32, b llrp.Body) error {
	m, err := llrp.Build(id, b)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}
	if err := llrp.WriteMessage(c.w, m); err != nil {
		return err
	}
	if err := c.flushLocked(); err != nil {
		return fmt.Errorf("send %s: %w", m.Type, err)
	}
	c.log.Trace().Stringer("type", m.Type).Uint32("id", id).Msg("sent")
	return nil
}

// Close closes the socket, which unblocks the pump, and waits briefly for it.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	select {
	case <-c.pumpDone:
	case <-time.After(1200 * time.Millisecond):
	}
	return err
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
