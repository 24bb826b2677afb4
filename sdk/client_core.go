package sdk

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"circles_go/internal/reader"
)

// LLRPReader drives one physical reader over LLRP. Construction runs the
// connection and configuration handshakes; a returned reader is ready for
// StartReading.
type LLRPReader struct {
	device string
	opts   Options
	sink   EventSink
	conn   *reader.Conn
	log    zerolog.Logger

	// ctl serializes StartReading, StopReading and Close.
	ctl     sync.Mutex
	mu      sync.Mutex
	session *dispatchSession
	closed  bool

	// draining is the done channel of a loop cancelled without a join.
	draining chan struct{}
}

// NewLLRPReader connects to device and arms it for continuous inventory.
// ctx bounds the handshakes; without a deadline they wait for the device.
func NewLLRPReader(ctx context.Context, device string, sink EventSink, opts Options) (*LLRPReader, error) {
	opts = normalizeOptions(opts)
	if sink == nil {
		sink = discardSink{}
	}
	logger := opts.logger().With().Str("component", "llrp").Str("device", device).Logger()

	if err := reader.ValidateDevice(device); err != nil {
		return nil, connectError(device, err)
	}
	conn, err := reader.Dial(ctx, device, opts.transport())
	if err != nil {
		return nil, connectError(device, err)
	}

	r := &LLRPReader{
		device: device,
		opts:   opts,
		sink:   sink,
		conn:   conn,
		log:    logger,
	}
	if err := r.handshake(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := r.configure(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Info().Str("addr", conn.Endpoint().Address()).Msg("reader configured")
	return r, nil
}

func (r *LLRPReader) Device() string {
	return r.device
}

func (r *LLRPReader) Endpoint() reader.Endpoint {
	return r.conn.Endpoint()
}

// Reading reports whether a dispatch session is active.
func (r *LLRPReader) Reading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}
