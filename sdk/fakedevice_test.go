package sdk

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"circles_go/internal/protocol/llrp"
)

const testDevice = "fx9600749620"

// fakeDevice plays the reader side of an LLRP session over net.Pipe.
type fakeDevice struct {
	t    *testing.T
	conn net.Conn
	wmu  sync.Mutex

	mu       sync.Mutex
	received []llrp.Message
	status   map[llrp.MessageType]llrp.StatusCode
	silent   map[llrp.MessageType]bool
	preamble []llrp.Body
}

func newFakeDevice(t *testing.T) *fakeDevice {
	return &fakeDevice{
		t:      t,
		status: make(map[llrp.MessageType]llrp.StatusCode),
		silent: make(map[llrp.MessageType]bool),
	}
}

var responses = map[llrp.MessageType]func(llrp.LLRPStatus) llrp.Body{
	llrp.TypeSetReaderConfig: func(s llrp.LLRPStatus) llrp.Body {
		return &llrp.SetReaderConfigResponse{Response: llrp.Response{Status: s}}
	},
	llrp.TypeDeleteROSpec: func(s llrp.LLRPStatus) llrp.Body {
		return &llrp.DeleteROSpecResponse{Response: llrp.Response{Status: s}}
	},
	llrp.TypeAddROSpec: func(s llrp.LLRPStatus) llrp.Body {
		return &llrp.AddROSpecResponse{Response: llrp.Response{Status: s}}
	},
	llrp.TypeEnableROSpec: func(s llrp.LLRPStatus) llrp.Body {
		return &llrp.EnableROSpecResponse{Response: llrp.Response{Status: s}}
	},
	llrp.TypeStartROSpec: func(s llrp.LLRPStatus) llrp.Body {
		return &llrp.StartROSpecResponse{Response: llrp.Response{Status: s}}
	},
	llrp.TypeStopROSpec: func(s llrp.LLRPStatus) llrp.Body {
		return &llrp.StopROSpecResponse{Response: llrp.Response{Status: s}}
	},
	llrp.TypeCloseConnection: func(s llrp.LLRPStatus) llrp.Body {
		return &llrp.CloseConnectionResponse{Response: llrp.Response{Status: s}}
	},
}

// dial hands the client side of a fresh pipe to the reader under test and
// starts serving the device side.
func (d *fakeDevice) dial(_ context.Context, _, _ string) (net.Conn, error) {
	client, device := net.Pipe()
	d.conn = device
	d.t.Cleanup(func() { _ = device.Close() })
	go d.serve()
	return client, nil
}

func (d *fakeDevice) serve() {
	for _, b := range d.preamble {
		if err := d.send(0, b); err != nil {
			return
		}
	}
	accepted := &llrp.ReaderEventNotification{Data: llrp.ReaderEventNotificationData{
		TimestampMicros:   uint64(time.Now().UnixMicro()),
		ConnectionAttempt: &llrp.ConnectionAttemptEvent{Status: llrp.ConnectionSuccess},
	}}
	if err := d.send(0, accepted); err != nil {
		return
	}

	for {
		m, err := llrp.ReadMessage(d.conn)
		if err != nil {
			return
		}
		d.mu.Lock()
		d.received = append(d.received, m)
		code := d.status[m.Type]
		silent := d.silent[m.Type]
		d.mu.Unlock()

		build, ok := responses[m.Type]
		if !ok || silent {
			continue
		}
		if err := d.send(m.ID, build(llrp.LLRPStatus{Code: code})); err != nil {
			return
		}
	}
}

func (d *fakeDevice) send(id uint32, b llrp.Body) error {
	m, err := llrp.Build(id, b)
	if err != nil {
		return err
	}
	d.wmu.Lock()
	defer d.wmu.Unlock()
	return llrp.WriteMessage(d.conn, m)
}

func (d *fakeDevice) mustSend(id uint32, b llrp.Body) {
	d.t.Helper()
	require.NoError(d.t, d.send(id, b))
}

func (d *fakeDevice) types() []llrp.MessageType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]llrp.MessageType, 0, len(d.received))
	for _, m := range d.received {
		out = append(out, m.Type)
	}
	return out
}

func (d *fakeDevice) count(typ llrp.MessageType) int {
	n := 0
	for _, got := range d.types() {
		if got == typ {
			n++
		}
	}
	return n
}

func (d *fakeDevice) first(typ llrp.MessageType) (llrp.Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.received {
		if m.Type == typ {
			return m, true
		}
	}
	return llrp.Message{}, false
}

func testOptions(d *fakeDevice) Options {
	return Options{
		RefreshInterval:    50 * time.Millisecond,
		LivenessMultiplier: 100,
		ConfirmTimeout:     2 * time.Second,
		Dial:               d.dial,
	}
}

func tagReport(epc []byte, antenna uint16, rssi int8) *llrp.ROAccessReport {
	return &llrp.ROAccessReport{Tags: []llrp.TagReportData{{
		EPC:       epc,
		AntennaID: &antenna,
		PeakRSSI:  &rssi,
	}}}
}
