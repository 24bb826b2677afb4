package sdk

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Backend string

const (
	BackendLLRP Backend = "llrp"
	BackendMock Backend = "mock"
)

// Session is the handle of one running reader.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Device    string    `json:"device"`
	Backend   Backend   `json:"backend"`
	StartedAt time.Time `json:"started_at"`

	reader Reader
}

// Reader exposes the backend driving this session.
func (s *Session) Reader() Reader {
	return s.reader
}

// Controller owns at most one active Session.
type Controller struct {
	sink EventSink
	opts Options
	mock bool
	log  zerolog.Logger

	start      sync.Mutex
	mu         sync.Mutex
	current    *Session
	connecting context.CancelFunc
}

// NewController selects the mock backend when mock is set.
func NewController(sink EventSink, opts Options, mock bool) *Controller {
	opts = normalizeOptions(opts)
	if sink == nil {
		sink = discardSink{}
	}
	return &Controller{
		sink: sink,
		opts: opts,
		mock: mock,
		log:  opts.logger().With().Str("component", "controller").Logger(),
	}
}

func (c *Controller) Mock() bool {
	return c.mock
}

// StartReading tears down any previous session, connects a new backend and
// starts it. Connection and configuration failures are returned; nothing is
// left running on error. Without a ctx deadline the start is bounded by
// Options.StartTimeout.
func (c *Controller) StartReading(ctx context.Context, device string) (*Session, error) {
	c.start.Lock()
	defer c.start.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, c.opts.StartTimeout())
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	prev := c.current
	c.current = nil
	c.connecting = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.connecting = nil
		c.mu.Unlock()
	}()

	if prev != nil {
		_ = prev.reader.Close()
		c.log.Info().Str("session", prev.ID.String()).Msg("previous session replaced")
	}

	id := uuid.New()
	var ended atomic.Bool
	sink := sessionSink{id: id.String(), sink: c.sink, ended: func() {
		ended.Store(true)
		c.release(id)
	}}
	backend := BackendLLRP
	var r Reader
	if c.mock {
		backend = BackendMock
		r = NewMockReader(sink, c.opts)
	} else {
		lr, err := NewLLRPReader(ctx, device, sink, c.opts)
		if err != nil {
			return nil, err
		}
		r = lr
	}

	if err := r.StartReading(); err != nil {
		_ = r.Close()
		return nil, AsReaderError(err)
	}

	s := &Session{
		ID:        id,
		Device:    device,
		Backend:   backend,
		StartedAt: time.Now(),
		reader:    r,
	}
	c.mu.Lock()
	switch {
	case ctx.Err() != nil:
		c.mu.Unlock()
		_ = r.Close()
		return nil, unknownError(ctx.Err(), "start reading")
	case ended.Load():
		c.mu.Unlock()
		_ = r.Close()
		return nil, &ReaderError{Kind: KindLostConnection, Device: device}
	}
	c.current = s
	c.mu.Unlock()
	c.log.Info().Str("session", id.String()).Str("device", device).Str("backend", string(backend)).Msg("session started")
	return s, nil
}

// StopReading stops and releases the current session and aborts a start in
// progress. With no session it is a no-op.
func (c *Controller) StopReading(await bool) error {
	c.mu.Lock()
	s := c.current
	c.current = nil
	if c.connecting != nil {
		c.connecting()
	}
	c.mu.Unlock()
	if s == nil {
		return nil
	}

	err := s.reader.StopReading(await)
	_ = s.reader.Close()
	c.log.Info().Str("session", s.ID.String()).Bool("await", await).Msg("session stopped")
	if err != nil {
		return AsReaderError(err)
	}
	return nil
}

// release drops session id after its backend reported a terminal error.
// The reader is closed off the caller's goroutine, which is the backend's
// own dispatch loop.
func (c *Controller) release(id uuid.UUID) {
	c.mu.Lock()
	s := c.current
	if s == nil || s.ID != id {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.mu.Unlock()

	c.log.Warn().Str("session", id.String()).Msg("session ended by reader")
	go func() { _ = s.reader.Close() }()
}

// Current returns the active session, or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close releases the current session without waiting for the reader and
// aborts a connection attempt in progress.
func (c *Controller) Close() error {
	c.mu.Lock()
	s := c.current
	c.current = nil
	if c.connecting != nil {
		c.connecting()
	}
	c.mu.Unlock()
	if s != nil {
		_ = s.reader.Close()
	}
	return nil
}
