package sdk

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"circles_go/internal/tags"
)

// MockDetections is how many random detections each mock snapshot reduces.
const MockDetections = 10

// MockReader emits random snapshots on the refresh cadence instead of
// talking to hardware.
type MockReader struct {
	sink     EventSink
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMockReader(sink EventSink, opts Options) *MockReader {
	opts = normalizeOptions(opts)
	if sink == nil {
		sink = discardSink{}
	}
	return &MockReader{
		sink:     sink,
		interval: opts.RefreshInterval,
		log:      opts.logger().With().Str("component", "mock").Logger(),
	}
}

func (m *MockReader) StartReading() error {
	m.stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.run(ctx, done)
	m.log.Info().Dur("interval", m.interval).Msg("mock reading started")
	return nil
}

func (m *MockReader) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		m.sink.EmitSnapshot(SnapshotEvent{When: time.Now(), Tags: tags.RandomMap(MockDetections)})
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// StopReading has nothing to confirm, await only waits for the emitter.
func (m *MockReader) StopReading(await bool) error {
	done := m.stop()
	if await && done != nil {
		<-done
	}
	return nil
}

func (m *MockReader) stop() chan struct{} {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return done
}

func (m *MockReader) Close() error {
	return m.StopReading(false)
}

func (m *MockReader) Reading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}
