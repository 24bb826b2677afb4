package sdk

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circles_go/internal/protocol/llrp"
	"circles_go/internal/tags"
)

func TestConnectRunsConfigurationInOrder(t *testing.T) {
	dev := newFakeDevice(t)
	r, err := NewLLRPReader(context.Background(), testDevice, nil, testOptions(dev))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []llrp.MessageType{
		llrp.TypeSetReaderConfig,
		llrp.TypeDeleteROSpec,
		llrp.TypeAddROSpec,
		llrp.TypeEnableROSpec,
	}, dev.types())

	m, ok := dev.first(llrp.TypeSetReaderConfig)
	require.True(t, ok)
	cfg, err := llrp.As[*llrp.SetReaderConfig](m)
	require.NoError(t, err)
	assert.True(t, cfg.ResetToFactoryDefault)
	require.NotNil(t, cfg.Keepalive)
	assert.Equal(t, llrp.KeepalivePeriodic, cfg.Keepalive.Trigger)
	assert.Equal(t, uint32(25), cfg.Keepalive.PeriodMS)

	m, _ = dev.first(llrp.TypeDeleteROSpec)
	del, err := llrp.As[*llrp.DeleteROSpec](m)
	require.NoError(t, err)
	assert.Zero(t, del.ROSpecID)

	m, _ = dev.first(llrp.TypeAddROSpec)
	add, err := llrp.As[*llrp.AddROSpec](m)
	require.NoError(t, err)
	assert.Equal(t, ROSpecID, add.ROSpec.ID)
	assert.Equal(t, llrp.ROSpecDisabled, add.ROSpec.CurrentState)
	require.Len(t, add.ROSpec.AISpecs, 1)
	assert.Equal(t, []uint16{1, 2, 3}, add.ROSpec.AISpecs[0].AntennaIDs)
	assert.Empty(t, add.ROSpec.AISpecs[0].Inventory[0].Antennas)
	require.NotNil(t, add.ROSpec.Report)
	assert.Equal(t, uint16(1), add.ROSpec.Report.N)
	assert.True(t, add.ROSpec.Report.Content.EnablePeakRSSI)
	assert.False(t, add.ROSpec.Report.Content.EnableROSpecID)

	m, _ = dev.first(llrp.TypeEnableROSpec)
	en, err := llrp.As[*llrp.EnableROSpec](m)
	require.NoError(t, err)
	assert.Equal(t, ROSpecID, en.ROSpecID)
}

func TestHandshakeSkipsUntilConnectionSuccess(t *testing.T) {
	dev := newFakeDevice(t)
	dev.preamble = []llrp.Body{
		&llrp.ReaderEventNotification{Data: llrp.ReaderEventNotificationData{
			ConnectionAttempt: &llrp.ConnectionAttemptEvent{Status: llrp.ConnectionFailedAnotherAttemptMade},
		}},
		&llrp.ReaderEventNotification{},
	}
	r, err := NewLLRPReader(context.Background(), testDevice, nil, testOptions(dev))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 1, dev.count(llrp.TypeEnableROSpec))
}

func TestHandshakeAnswersKeepalive(t *testing.T) {
	dev := newFakeDevice(t)
	dev.preamble = []llrp.Body{&llrp.Keepalive{}}
	r, err := NewLLRPReader(context.Background(), testDevice, nil, testOptions(dev))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 1, dev.count(llrp.TypeKeepaliveAck))
}

func TestHandshakeBoundedByContext(t *testing.T) {
	client, device := net.Pipe()
	defer device.Close()
	opts := Options{Dial: func(context.Context, string, string) (net.Conn, error) { return client, nil }}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := NewLLRPReader(ctx, testDevice, nil, opts)
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestConfigurationFailureAbortsRemainingSteps(t *testing.T) {
	dev := newFakeDevice(t)
	dev.status[llrp.TypeAddROSpec] = llrp.StatusFieldError

	_, err := NewLLRPReader(context.Background(), testDevice, nil, testOptions(dev))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknown)
	assert.Contains(t, err.Error(), "ADD_ROSPEC")

	assert.Equal(t, []llrp.MessageType{
		llrp.TypeSetReaderConfig,
		llrp.TypeDeleteROSpec,
		llrp.TypeAddROSpec,
	}, dev.types())
}

func TestInvalidDeviceNeverDials(t *testing.T) {
	dialed := 0
	opts := Options{Dial: func(context.Context, string, string) (net.Conn, error) {
		dialed++
		return nil, errors.New("unexpected dial")
	}}
	for _, id := range []string{"", "fx96007496", "fx9600749620ff", "fx960074962g"} {
		_, err := NewLLRPReader(context.Background(), id, nil, opts)
		assert.ErrorIs(t, err, ErrIncorrectHostname, id)
	}
	assert.Zero(t, dialed)
}

func TestCouldNotConnect(t *testing.T) {
	opts := Options{Dial: func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("no route to host")
	}}
	_, err := NewLLRPReader(context.Background(), testDevice, nil, opts)
	require.ErrorIs(t, err, ErrCouldNotConnect)
	assert.Equal(t, "Could not connect to hostname fx9600749620. Original error: no route to host", err.Error())
}

func waitSnapshot(t *testing.T, sink *ChannelSink, match func(tags.TagsMap) bool) tags.TagsMap {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-sink.Snapshots():
			if match(ev.Tags) {
				return ev.Tags
			}
		case <-deadline:
			t.Fatal("no matching snapshot")
			return nil
		}
	}
}

func TestScriptedSessionKeepsStrongestAndAcksOnce(t *testing.T) {
	dev := newFakeDevice(t)
	sink := NewChannelSink(256)
	r, err := NewLLRPReader(context.Background(), testDevice, sink, testOptions(dev))
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.StartReading())
	assert.True(t, r.Reading())

	abc := []byte{0xAB, 0xC0}
	dev.mustSend(100, tagReport(abc, 1, -30))
	dev.mustSend(101, &llrp.Keepalive{})
	second := tagReport(abc, 1, -65)
	def := int8(-50)
	antenna := uint16(2)
	second.Tags = append(second.Tags, llrp.TagReportData{EPC: []byte{0xDE, 0xF0}, AntennaID: &antenna, PeakRSSI: &def})
	dev.mustSend(102, second)

	snap := waitSnapshot(t, sink, func(m tags.TagsMap) bool {
		_, ok := m["DEF0"]
		return ok
	})
	assert.Equal(t, tags.Tag{ID: "ABC0", Antenna: 1, Strength: -30}, snap["ABC0"])

	require.Eventually(t, func() bool {
		return dev.count(llrp.TypeKeepaliveAck) == 1
	}, 2*time.Second, 10*time.Millisecond)
	ack, _ := dev.first(llrp.TypeKeepaliveAck)
	assert.Equal(t, uint32(101), ack.ID)

	require.NoError(t, r.StopReading(true))
	assert.Equal(t, 1, dev.count(llrp.TypeKeepaliveAck))
}

func TestStopReadingAwaitsConfirmation(t *testing.T) {
	dev := newFakeDevice(t)
	r, err := NewLLRPReader(context.Background(), testDevice, nil, testOptions(dev))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.StartReading())
	require.NoError(t, r.StopReading(true))
	assert.False(t, r.Reading())
	assert.Equal(t, 1, dev.count(llrp.TypeStopROSpec))
}

func TestStopReadingWithoutSession(t *testing.T) {
	dev := newFakeDevice(t)
	r, err := NewLLRPReader(context.Background(), testDevice, nil, testOptions(dev))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.StopReading(true))
	assert.Equal(t, 1, dev.count(llrp.TypeStopROSpec))
}

func TestStopReadingRejected(t *testing.T) {
	dev := newFakeDevice(t)
	dev.status[llrp.TypeStopROSpec] = llrp.StatusDeviceError
	r, err := NewLLRPReader(context.Background(), testDevice, nil, testOptions(dev))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.StartReading())
	err = r.StopReading(true)
	assert.ErrorIs(t, err, ErrUnknown)
	assert.False(t, r.Reading())
}

func TestStopReadingTimesOutWithoutConfirmation(t *testing.T) {
	dev := newFakeDevice(t)
	dev.silent[llrp.TypeStopROSpec] = true
	opts := testOptions(dev)
	opts.ConfirmTimeout = 150 * time.Millisecond
	r, err := NewLLRPReader(context.Background(), testDevice, nil, opts)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.StartReading())
	start := time.Now()
	err = r.StopReading(true)
	assert.ErrorIs(t, err, ErrUnknown)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStopReadingNoAwaitReturnsImmediately(t *testing.T) {
	dev := newFakeDevice(t)
	dev.silent[llrp.TypeStopROSpec] = true
	r, err := NewLLRPReader(context.Background(), testDevice, nil, testOptions(dev))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.StartReading())
	require.NoError(t, r.StopReading(false))
	assert.False(t, r.Reading())
}

func TestStartReadingRestartsSession(t *testing.T) {
	dev := newFakeDevice(t)
	r, err := NewLLRPReader(context.Background(), testDevice, nil, testOptions(dev))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.StartReading())
	require.NoError(t, r.StartReading())
	want := []llrp.MessageType{llrp.TypeStartROSpec, llrp.TypeStopROSpec, llrp.TypeStartROSpec}
	require.Eventually(t, func() bool {
		return len(dev.types()) == 4+len(want)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, dev.types()[4:])
}

func TestLivenessTimeoutEmitsLostConnection(t *testing.T) {
	dev := newFakeDevice(t)
	sink := NewChannelSink(256)
	opts := testOptions(dev)
	opts.RefreshInterval = 20 * time.Millisecond
	opts.LivenessMultiplier = 5
	r, err := NewLLRPReader(context.Background(), testDevice, sink, opts)
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.StartReading())

	select {
	case ev := <-sink.Errors():
		assert.Equal(t, "LostConnection", ev.Kind)
		assert.Equal(t, "Connection with the reader was lost!", ev.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("no liveness error")
	}
	assert.False(t, r.Reading(), "a lost session must leave the reader idle")
}

func TestPeerCloseEndsSession(t *testing.T) {
	dev := newFakeDevice(t)
	sink := NewChannelSink(256)
	r, err := NewLLRPReader(context.Background(), testDevice, sink, testOptions(dev))
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.StartReading())
	require.True(t, r.Reading())

	require.NoError(t, dev.conn.Close())
	select {
	case ev := <-sink.Errors():
		assert.Equal(t, "LostConnection", ev.Kind)
	case <-time.After(3 * time.Second):
		t.Fatal("no error after peer close")
	}
	assert.False(t, r.Reading())
}

func TestHandshakeRetriesErrorMessage(t *testing.T) {
	dev := newFakeDevice(t)
	dev.preamble = []llrp.Body{
		&llrp.ErrorMessage{Response: llrp.Response{Status: llrp.LLRPStatus{Code: llrp.StatusFieldError}}},
	}
	r, err := NewLLRPReader(context.Background(), testDevice, nil, testOptions(dev))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 1, dev.count(llrp.TypeEnableROSpec))
}

func TestRestartAfterUnawaitedStopJoinsPreviousLoop(t *testing.T) {
	dev := newFakeDevice(t)
	r, err := NewLLRPReader(context.Background(), testDevice, nil, testOptions(dev))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.StartReading())
	r.mu.Lock()
	first := r.session
	r.mu.Unlock()
	require.NotNil(t, first)

	require.NoError(t, r.StopReading(false))
	require.NoError(t, r.StartReading())
	select {
	case <-first.done:
	default:
		t.Fatal("previous dispatch loop still running after restart")
	}
	assert.True(t, r.Reading())
}

func TestCloseSendsCloseConnection(t *testing.T) {
	dev := newFakeDevice(t)
	r, err := NewLLRPReader(context.Background(), testDevice, nil, testOptions(dev))
	require.NoError(t, err)
	require.NoError(t, r.StartReading())

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
	require.Eventually(t, func() bool {
		return dev.count(llrp.TypeCloseConnection) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Error(t, r.StartReading())
}

func TestZebraDwellParameter(t *testing.T) {
	spec := inventoryPlan(normalizeOptions(Options{ZebraDwell: 250 * time.Millisecond}))
	inv := spec.AISpecs[0].Inventory[0]
	require.Len(t, inv.Antennas, 1)
	assert.Zero(t, inv.Antennas[0].AntennaID)
	require.NotNil(t, inv.Antennas[0].C1G2)
	require.Len(t, inv.Antennas[0].C1G2.Custom, 1)

	outer := inv.Antennas[0].C1G2.Custom[0]
	assert.Equal(t, uint32(161), outer.VendorID)
	assert.Equal(t, uint32(703), outer.Subtype)
	// Inner TLV: type 1023, length 15, vendor 161, subtype 704, trigger 0, 250ms.
	assert.Equal(t, []byte{
		0x03, 0xFF, 0x00, 0x0F,
		0x00, 0x00, 0x00, 0xA1,
		0x00, 0x00, 0x02, 0xC0,
		0x00, 0x00, 0xFA,
	}, outer.Data)
}
