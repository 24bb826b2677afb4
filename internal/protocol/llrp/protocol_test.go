package llrp

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestBuildKeepaliveAckHeader(t *testing.T) {
	m, err := Build(7, &KeepaliveAck{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	raw, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := []byte{0x04, 0x48, 0, 0, 0, 10, 0, 0, 0, 7}
	if !bytes.Equal(raw, want) {
		t.Fatalf("frame mismatch: got % X want % X", raw, want)
	}
}

func TestReadMessageRejectsShortAndBadFrames(t *testing.T) {
	if _, err := ReadMessage(bytes.NewReader([]byte{0x04, 0x48, 0})); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
	bad := []byte{0x04, 0x48, 0, 0, 0, 4, 0, 0, 0, 1}
	if _, err := ReadMessage(bytes.NewReader(bad)); !errors.Is(err, ErrBadLength) {
		t.Fatalf("expected ErrBadLength, got %v", err)
	}
	cut := []byte{0x04, 0x3D, 0, 0, 0, 20, 0, 0, 0, 1, 0xAA}
	if _, err := ReadMessage(bytes.NewReader(cut)); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestReadMessageSplitsConsecutiveFrames(t *testing.T) {
	var stream bytes.Buffer
	for id := uint32(1); id <= 3; id++ {
		m, err := Build(id, &Keepalive{})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if err := WriteMessage(&stream, m); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	for id := uint32(1); id <= 3; id++ {
		m, err := ReadMessage(&stream)
		if err != nil {
			t.Fatalf("read %d: %v", id, err)
		}
		if m.Type != TypeKeepalive || m.ID != id || m.Version != ProtocolVersion {
			t.Fatalf("unexpected frame: %+v", m)
		}
	}
}

func TestDecodeROAccessReportWithTVFields(t *testing.T) {
	epc := []byte{0xE2, 0x00, 0x00, 0x17, 0x22, 0x11, 0x01, 0x44, 0x12, 0x30, 0xAB, 0xCD}
	payload := []byte{0x00, 0xF0, 0x00, 0x16, 0x8D}
	payload = append(payload, epc...)
	payload = append(payload, 0x81, 0x00, 0x02, 0x86, 0xC4)

	report, err := As[*ROAccessReport](Message{Type: TypeROAccessReport, ID: 9, Payload: payload})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Tags) != 1 {
		t.Fatalf("tag count mismatch: got %d want 1", len(report.Tags))
	}
	tag := report.Tags[0]
	if !bytes.Equal(tag.EPC, epc) {
		t.Fatalf("epc mismatch: got % X", tag.EPC)
	}
	if tag.AntennaID == nil || *tag.AntennaID != 2 {
		t.Fatalf("antenna mismatch: %v", tag.AntennaID)
	}
	if tag.PeakRSSI == nil || *tag.PeakRSSI != -60 {
		t.Fatalf("rssi mismatch: %v", tag.PeakRSSI)
	}
	if tag.ROSpecID != nil || tag.LastSeenUTC != nil {
		t.Fatalf("unexpected optional fields set: %+v", tag)
	}
}

func TestDecodeEPCDataTLV(t *testing.T) {
	in := &ROAccessReport{Tags: []TagReportData{{EPC: []byte{0xAB, 0xC1, 0x23}}}}
	m, err := Build(1, in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := As[*ROAccessReport](m)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(out.Tags[0].EPC, []byte{0xAB, 0xC1, 0x23}) {
		t.Fatalf("epc mismatch: got % X", out.Tags[0].EPC)
	}
}

func TestUnknownTVParameterFails(t *testing.T) {
	payload := []byte{0x00, 0xF0, 0x00, 0x06, 0xFF, 0x00}
	if _, err := Decode(Message{Type: TypeROAccessReport, Payload: payload}); !errors.Is(err, ErrUnknownTV) {
		t.Fatalf("expected ErrUnknownTV, got %v", err)
	}
}

func TestAddROSpecKeepsStructure(t *testing.T) {
	spec := ROSpec{
		ID:           1234,
		CurrentState: ROSpecDisabled,
		Boundary:     ROBoundarySpec{StartTrigger: StartTriggerNull, StopTrigger: StopTriggerNull},
		AISpecs: []AISpec{{
			AntennaIDs:  []uint16{1, 2, 3},
			StopTrigger: AIStopTriggerNull,
			Inventory: []InventoryParameterSpec{{
				ID:       1,
				Protocol: AirProtocolEPCGlobalClass1Gen2,
				Antennas: []AntennaConfiguration{{
					AntennaID: 0,
					C1G2: &C1G2InventoryCommand{
						Custom: []Custom{{VendorID: 161, Subtype: 703, Data: []byte{1, 2}}},
					},
				}},
			}},
		}},
		Report: &ROReportSpec{
			Trigger: ReportTriggerUponNTagsOrEndOfAISpec,
			N:       1,
			Content: TagReportContentSelector{EnableAntennaID: true, EnablePeakRSSI: true},
		},
	}
	m, err := Build(3, &AddROSpec{ROSpec: spec})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got, err := As[*AddROSpec](m)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got.ROSpec, spec) {
		t.Fatalf("rospec mismatch:\ngot  %+v\nwant %+v", got.ROSpec, spec)
	}
}

func TestContentSelectorBitOrder(t *testing.T) {
	s := TagReportContentSelector{EnableROSpecID: true, EnableAntennaID: true, EnablePeakRSSI: true}
	if got := s.flags(); got != 0x9400 {
		t.Fatalf("flags mismatch: got %04X want 9400", got)
	}
	if back := selectorFromFlags(0x9400); back != s {
		t.Fatalf("selector mismatch: %+v", back)
	}
}

func TestResponseStatusDescription(t *testing.T) {
	m, err := Build(5, &StartROSpecResponse{Response{Status: LLRPStatus{Code: StatusFieldError, Description: "bad id"}}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	resp, err := As[*StartROSpecResponse](m)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result().Success() || resp.Result().Description != "bad id" {
		t.Fatalf("status mismatch: %s", resp.Result())
	}
}

func TestResponseWithoutStatusFails(t *testing.T) {
	if _, err := Decode(Message{Type: TypeAddROSpecResponse}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestReaderEventNotificationConnectionAttempt(t *testing.T) {
	in := &ReaderEventNotification{Data: ReaderEventNotificationData{
		TimestampMicros:   1_700_000_000_000_000,
		ConnectionAttempt: &ConnectionAttemptEvent{Status: ConnectionSuccess},
	}}
	m, err := Build(0, in)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := As[*ReaderEventNotification](m)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Data.ConnectionAttempt == nil || out.Data.ConnectionAttempt.Status != ConnectionSuccess {
		t.Fatalf("connection attempt missing: %+v", out.Data)
	}
	if out.Data.TimestampMicros != in.Data.TimestampMicros || out.Data.Uptime {
		t.Fatalf("timestamp mismatch: %+v", out.Data)
	}
}

func TestAsRejectsOtherType(t *testing.T) {
	m, err := Build(1, &Keepalive{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := As[*KeepaliveAck](m); !errors.Is(err, ErrUnexpectedType) {
		t.Fatalf("expected ErrUnexpectedType, got %v", err)
	}
}

func TestUnknownMessageKeepsPayload(t *testing.T) {
	b, err := Decode(Message{Type: MessageType(999), Payload: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	u, ok := b.(*Unknown)
	if !ok {
		t.Fatalf("expected *Unknown, got %T", b)
	}
	if u.Type() != 999 || !bytes.Equal(u.Payload, []byte{1, 2, 3}) {
		t.Fatalf("unknown mismatch: %+v", u)
	}
}

func TestSetReaderConfigResetBit(t *testing.T) {
	m, err := Build(2, &SetReaderConfig{
		ResetToFactoryDefault: true,
		Keepalive:             &KeepaliveSpec{Trigger: KeepalivePeriodic, PeriodMS: 250},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.Payload[0] != 0x80 {
		t.Fatalf("reset flag not set: %02X", m.Payload[0])
	}
	out, err := As[*SetReaderConfig](m)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Keepalive == nil || out.Keepalive.PeriodMS != 250 || out.Keepalive.Trigger != KeepalivePeriodic {
		t.Fatalf("keepalive mismatch: %+v", out.Keepalive)
	}
}
