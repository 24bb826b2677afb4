package llrp

import "fmt"

// ParamType is a TLV (10-bit) or TV (7-bit) parameter type.
type ParamType uint16

// TV parameter types.
const (
	ParamAntennaID                 ParamType = 1
	ParamFirstSeenTimestampUTC     ParamType = 2
	ParamFirstSeenTimestampUptime  ParamType = 3
	ParamLastSeenTimestampUTC      ParamType = 4
	ParamLastSeenTimestampUptime   ParamType = 5
	ParamPeakRSSI                  ParamType = 6
	ParamChannelIndex              ParamType = 7
	ParamTagSeenCount              ParamType = 8
	ParamROSpecID                  ParamType = 9
	ParamInventoryParameterSpecID  ParamType = 10
	ParamC1G2CRC                   ParamType = 11
	ParamC1G2PC                    ParamType = 12
	ParamEPC96                     ParamType = 13
	ParamSpecIndex                 ParamType = 14
	ParamClientRequestOpSpecResult ParamType = 15
	ParamAccessSpecID              ParamType = 16
	ParamOpSpecID                  ParamType = 17
	ParamC1G2SingulationDetails    ParamType = 18
	ParamC1G2XPCW1                 ParamType = 19
	ParamC1G2XPCW2                 ParamType = 20
)

// TLV parameter types.
const (
	ParamUTCTimestamp                ParamType = 128
	ParamUptime                      ParamType = 129
	ParamROSpec                      ParamType = 177
	ParamROBoundarySpec              ParamType = 178
	ParamROSpecStartTrigger          ParamType = 179
	ParamROSpecStopTrigger           ParamType = 182
	ParamAISpec                      ParamType = 183
	ParamAISpecStopTrigger           ParamType = 184
	ParamInventoryParameterSpec      ParamType = 186
	ParamKeepaliveSpec               ParamType = 220
	ParamAntennaConfiguration        ParamType = 222
	ParamROReportSpec                ParamType = 237
	ParamTagReportContentSelector    ParamType = 238
	ParamTagReportData               ParamType = 240
	ParamEPCData                     ParamType = 241
	ParamReaderEventNotificationData ParamType = 246
	ParamConnectionAttemptEvent      ParamType = 256
	ParamLLRPStatus                  ParamType = 287
	ParamC1G2InventoryCommand        ParamType = 330
	ParamCustom                      ParamType = 1023
)

// StatusCode is the LLRPStatus result code.
type StatusCode uint16

const (
	StatusSuccess         StatusCode = 0
	StatusParameterError  StatusCode = 100
	StatusFieldError      StatusCode = 101
	StatusUnexpectedParam StatusCode = 102
	StatusMissingParam    StatusCode = 103
	StatusUnsupportedMsg  StatusCode = 109
	StatusDeviceError     StatusCode = 401
)

// ConnectionAttemptStatus is the status carried by a ConnectionAttemptEvent.
type ConnectionAttemptStatus uint16

const (
	ConnectionSuccess                   ConnectionAttemptStatus = 0
	ConnectionFailedReaderInitiated     ConnectionAttemptStatus = 1
	ConnectionFailedClientInitiated     ConnectionAttemptStatus = 2
	ConnectionFailedOtherReasonThanBusy ConnectionAttemptStatus = 3
	ConnectionFailedAnotherAttemptMade  ConnectionAttemptStatus = 4
)

type ROSpecState uint8

const (
	ROSpecDisabled ROSpecState = 0
	ROSpecInactive ROSpecState = 1
	ROSpecActive   ROSpecState = 2
)

type ROSpecStartTriggerType uint8

const (
	StartTriggerNull      ROSpecStartTriggerType = 0
	StartTriggerImmediate ROSpecStartTriggerType = 1
	StartTriggerPeriodic  ROSpecStartTriggerType = 2
	StartTriggerGPI       ROSpecStartTriggerType = 3
)

type ROSpecStopTriggerType uint8

const (
	StopTriggerNull     ROSpecStopTriggerType = 0
	StopTriggerDuration ROSpecStopTriggerType = 1
	StopTriggerGPI      ROSpecStopTriggerType = 2
)

type AISpecStopTriggerType uint8

const (
	AIStopTriggerNull     AISpecStopTriggerType = 0
	AIStopTriggerDuration AISpecStopTriggerType = 1
)

type AirProtocol uint8

const (
	AirProtocolUnspecified         AirProtocol = 0
	AirProtocolEPCGlobalClass1Gen2 AirProtocol = 1
)

type ROReportTriggerType uint8

const (
	ReportTriggerNone                   ROReportTriggerType = 0
	ReportTriggerUponNTagsOrEndOfAISpec ROReportTriggerType = 1
	ReportTriggerUponNTagsOrEndOfROSpec ROReportTriggerType = 2
)

type KeepaliveTriggerType uint8

const (
	KeepaliveNull     KeepaliveTriggerType = 0
	KeepalivePeriodic KeepaliveTriggerType = 1
)

// LLRPStatus is the result block carried by every response.
type LLRPStatus struct {
	Code        StatusCode
	Description string
}

func (s LLRPStatus) Success() bool {
	return s.Code == StatusSuccess
}

func (s LLRPStatus) String() string {
	if s.Description == "" {
		return fmt.Sprintf("status=%d", s.Code)
	}
	return fmt.Sprintf("status=%d %q", s.Code, s.Description)
}

func (s LLRPStatus) encode(w *writer) {
	w.tlv(ParamLLRPStatus, func(w *writer) {
		w.u16(uint16(s.Code))
		w.u16(uint16(len(s.Description)))
		w.raw([]byte(s.Description))
	})
}

func decodeStatus(body []byte) (LLRPStatus, error) {
	c := newCursor(body)
	code := c.u16()
	n := c.u16()
	desc := c.take(int(n))
	if c.err != nil {
		return LLRPStatus{}, c.err
	}
	return LLRPStatus{Code: StatusCode(code), Description: string(desc)}, nil
}

// findStatus scans a parameter list for the mandatory LLRPStatus.
func findStatus(c *cursor) (LLRPStatus, error) {
	for {
		p, ok := c.next()
		if !ok {
			break
		}
		if p.typ == ParamLLRPStatus {
			return decodeStatus(p.body)
		}
	}
	if c.err != nil {
		return LLRPStatus{}, c.err
	}
	return LLRPStatus{}, fmt.Errorf("%w: missing LLRPStatus", ErrTruncated)
}

// KeepaliveSpec asks the reader to emit periodic KEEPALIVE messages.
type KeepaliveSpec struct {
	Trigger  KeepaliveTriggerType
	PeriodMS uint32
}

func (k KeepaliveSpec) encode(w *writer) {
	w.tlv(ParamKeepaliveSpec, func(w *writer) {
		w.u8(uint8(k.Trigger))
		w.u32(k.PeriodMS)
	})
}

func decodeKeepaliveSpec(body []byte) (KeepaliveSpec, error) {
	c := newCursor(body)
	k := KeepaliveSpec{Trigger: KeepaliveTriggerType(c.u8()), PeriodMS: c.u32()}
	return k, c.err
}

// ConnectionAttemptEvent is sent unsolicited right after a client connects.
type ConnectionAttemptEvent struct {
	Status ConnectionAttemptStatus
}

// ReaderEventNotificationData carries the timestamp and any events of a notification.
type ReaderEventNotificationData struct {
	TimestampMicros   uint64
	Uptime            bool
	ConnectionAttempt *ConnectionAttemptEvent
}

func (d ReaderEventNotificationData) encode(w *writer) {
	w.tlv(ParamReaderEventNotificationData, func(w *writer) {
		typ := ParamUTCTimestamp
		if d.Uptime {
			typ = ParamUptime
		}
		w.tlv(typ, func(w *writer) { w.u64(d.TimestampMicros) })
		if d.ConnectionAttempt != nil {
			w.tlv(ParamConnectionAttemptEvent, func(w *writer) {
				w.u16(uint16(d.ConnectionAttempt.Status))
			})
		}
	})
}

func decodeNotificationData(body []byte) (ReaderEventNotificationData, error) {
	var d ReaderEventNotificationData
	c := newCursor(body)
	for {
		p, ok := c.next()
		if !ok {
			break
		}
		switch p.typ {
		case ParamUTCTimestamp, ParamUptime:
			pc := newCursor(p.body)
			d.TimestampMicros = pc.u64()
			d.Uptime = p.typ == ParamUptime
			if pc.err != nil {
				return d, pc.err
			}
		case ParamConnectionAttemptEvent:
			pc := newCursor(p.body)
			status := ConnectionAttemptStatus(pc.u16())
			if pc.err != nil {
				return d, pc.err
			}
			d.ConnectionAttempt = &ConnectionAttemptEvent{Status: status}
		}
	}
	return d, c.err
}

// Custom is a vendor extension parameter.
type Custom struct {
	VendorID uint32
	Subtype  uint32
	Data     []byte
}

func (cu Custom) encode(w *writer) {
	w.tlv(ParamCustom, func(w *writer) {
		w.u32(cu.VendorID)
		w.u32(cu.Subtype)
		w.raw(cu.Data)
	})
}

// MarshalBinary encodes the parameter on its own, as needed when a vendor
// extension nests one custom parameter inside another one's data.
func (cu Custom) MarshalBinary() ([]byte, error) {
	w := &writer{}
	cu.encode(w)
	return w.buf, nil
}

func decodeCustom(body []byte) (Custom, error) {
	c := newCursor(body)
	cu := Custom{VendorID: c.u32(), Subtype: c.u32()}
	cu.Data = c.bytes(c.remaining())
	return cu, c.err
}

// ROSpec is the reader operation specification (the inventory plan).
type ROSpec struct {
	ID           uint32
	Priority     uint8
	CurrentState ROSpecState
	Boundary     ROBoundarySpec
	AISpecs      []AISpec
	Report       *ROReportSpec
}

type ROBoundarySpec struct {
	StartTrigger   ROSpecStartTriggerType
	StopTrigger    ROSpecStopTriggerType
	StopDurationMS uint32
}

type AISpec struct {
	AntennaIDs     []uint16
	StopTrigger    AISpecStopTriggerType
	StopDurationMS uint32
	Inventory      []InventoryParameterSpec
}

type InventoryParameterSpec struct {
	ID       uint16
	Protocol AirProtocol
	Antennas []AntennaConfiguration
}

// AntennaConfiguration applies to every antenna when AntennaID is 0.
type AntennaConfiguration struct {
	AntennaID uint16
	C1G2      *C1G2InventoryCommand
}

type C1G2InventoryCommand struct {
	TagInventoryStateAware bool
	Custom                 []Custom
}

type ROReportSpec struct {
	Trigger ROReportTriggerType
	N       uint16
	Content TagReportContentSelector
}

type TagReportContentSelector struct {
	EnableROSpecID                 bool
	EnableSpecIndex                bool
	EnableInventoryParameterSpecID bool
	EnableAntennaID                bool
	EnableChannelIndex             bool
	EnablePeakRSSI                 bool
	EnableFirstSeenTimestamp       bool
	EnableLastSeenTimestamp        bool
	EnableTagSeenCount             bool
	EnableAccessSpecID             bool
}

func (s TagReportContentSelector) flags() uint16 {
	bits := []bool{
		s.EnableROSpecID,
		s.EnableSpecIndex,
		s.EnableInventoryParameterSpecID,
		s.EnableAntennaID,
		s.EnableChannelIndex,
		s.EnablePeakRSSI,
		s.EnableFirstSeenTimestamp,
		s.EnableLastSeenTimestamp,
		s.EnableTagSeenCount,
		s.EnableAccessSpecID,
	}
	var out uint16
	for i, on := range bits {
		if on {
			out |= 1 << (15 - i)
		}
	}
	return out
}

func selectorFromFlags(v uint16) TagReportContentSelector {
	bit := func(i int) bool { return v&(1<<(15-i)) != 0 }
	return TagReportContentSelector{
		EnableROSpecID:                 bit(0),
		EnableSpecIndex:                bit(1),
		EnableInventoryParameterSpecID: bit(2),
		EnableAntennaID:                bit(3),
		EnableChannelIndex:             bit(4),
		EnablePeakRSSI:                 bit(5),
		EnableFirstSeenTimestamp:       bit(6),
		EnableLastSeenTimestamp:        bit(7),
		EnableTagSeenCount:             bit(8),
		EnableAccessSpecID:             bit(9),
	}
}

func (r ROSpec) encode(w *writer) {
	w.tlv(ParamROSpec, func(w *writer) {
		w.u32(r.ID)
		w.u8(r.Priority)
		w.u8(uint8(r.CurrentState))
		w.tlv(ParamROBoundarySpec, func(w *writer) {
			w.tlv(ParamROSpecStartTrigger, func(w *writer) {
				w.u8(uint8(r.Boundary.StartTrigger))
			})
			w.tlv(ParamROSpecStopTrigger, func(w *writer) {
				w.u8(uint8(r.Boundary.StopTrigger))
				w.u32(r.Boundary.StopDurationMS)
			})
		})
		for _, ai := range r.AISpecs {
			ai.encode(w)
		}
		if r.Report != nil {
			r.Report.encode(w)
		}
	})
}

func (a AISpec) encode(w *writer) {
	w.tlv(ParamAISpec, func(w *writer) {
		w.u16(uint16(len(a.AntennaIDs)))
		for _, id := range a.AntennaIDs {
			w.u16(id)
		}
		w.tlv(ParamAISpecStopTrigger, func(w *writer) {
			w.u8(uint8(a.StopTrigger))
			w.u32(a.StopDurationMS)
		})
		for _, inv := range a.Inventory {
			w.tlv(ParamInventoryParameterSpec, func(w *writer) {
				w.u16(inv.ID)
				w.u8(uint8(inv.Protocol))
				for _, ant := range inv.Antennas {
					ant.encode(w)
				}
			})
		}
	})
}

func (a AntennaConfiguration) encode(w *writer) {
	w.tlv(ParamAntennaConfiguration, func(w *writer) {
		w.u16(a.AntennaID)
		if a.C1G2 != nil {
			w.tlv(ParamC1G2InventoryCommand, func(w *writer) {
				w.bool8(a.C1G2.TagInventoryStateAware)
				for _, cu := range a.C1G2.Custom {
					cu.encode(w)
				}
			})
		}
	})
}

func (r ROReportSpec) encode(w *writer) {
	w.tlv(ParamROReportSpec, func(w *writer) {
		w.u8(uint8(r.Trigger))
		w.u16(r.N)
		w.tlv(ParamTagReportContentSelector, func(w *writer) {
			w.u16(r.Content.flags())
		})
	})
}

func decodeROSpec(body []byte) (ROSpec, error) {
	c := newCursor(body)
	spec := ROSpec{
		ID:           c.u32(),
		Priority:     c.u8(),
		CurrentState: ROSpecState(c.u8()),
	}
	for {
		p, ok := c.next()
		if !ok {
			break
		}
		switch p.typ {
		case ParamROBoundarySpec:
			b, err := decodeBoundary(p.body)
			if err != nil {
				return spec, err
			}
			spec.Boundary = b
		case ParamAISpec:
			ai, err := decodeAISpec(p.body)
			if err != nil {
				return spec, err
			}
			spec.AISpecs = append(spec.AISpecs, ai)
		case ParamROReportSpec:
			rep, err := decodeReportSpec(p.body)
			if err != nil {
				return spec, err
			}
			spec.Report = &rep
		}
	}
	return spec, c.err
}

func decodeBoundary(body []byte) (ROBoundarySpec, error) {
	var b ROBoundarySpec
	c := newCursor(body)
	for {
		p, ok := c.next()
		if !ok {
			break
		}
		pc := newCursor(p.body)
		switch p.typ {
		case ParamROSpecStartTrigger:
			b.StartTrigger = ROSpecStartTriggerType(pc.u8())
		case ParamROSpecStopTrigger:
			b.StopTrigger = ROSpecStopTriggerType(pc.u8())
			b.StopDurationMS = pc.u32()
		}
		if pc.err != nil {
			return b, pc.err
		}
	}
	return b, c.err
}

func decodeAISpec(body []byte) (AISpec, error) {
	var ai AISpec
	c := newCursor(body)
	count := int(c.u16())
	for i := 0; i < count && c.err == nil; i++ {
		ai.AntennaIDs = append(ai.AntennaIDs, c.u16())
	}
	for {
		p, ok := c.next()
		if !ok {
			break
		}
		pc := newCursor(p.body)
		switch p.typ {
		case ParamAISpecStopTrigger:
			ai.StopTrigger = AISpecStopTriggerType(pc.u8())
			ai.StopDurationMS = pc.u32()
		case ParamInventoryParameterSpec:
			inv := InventoryParameterSpec{ID: pc.u16(), Protocol: AirProtocol(pc.u8())}
			for {
				ap, ok := pc.next()
				if !ok {
					break
				}
				if ap.typ != ParamAntennaConfiguration {
					continue
				}
				ant, err := decodeAntennaConfiguration(ap.body)
				if err != nil {
					return ai, err
				}
				inv.Antennas = append(inv.Antennas, ant)
			}
			ai.Inventory = append(ai.Inventory, inv)
		}
		if pc.err != nil {
			return ai, pc.err
		}
	}
	return ai, c.err
}

func decodeAntennaConfiguration(body []byte) (AntennaConfiguration, error) {
	c := newCursor(body)
	ant := AntennaConfiguration{AntennaID: c.u16()}
	for {
		p, ok := c.next()
		if !ok {
			break
		}
		if p.typ != ParamC1G2InventoryCommand {
			continue
		}
		pc := newCursor(p.body)
		cmd := &C1G2InventoryCommand{TagInventoryStateAware: pc.u8()&0x80 != 0}
		for {
			cp, ok := pc.next()
			if !ok {
				break
			}
			if cp.typ != ParamCustom {
				continue
			}
			cu, err := decodeCustom(cp.body)
			if err != nil {
				return ant, err
			}
			cmd.Custom = append(cmd.Custom, cu)
		}
		if pc.err != nil {
			return ant, pc.err
		}
		ant.C1G2 = cmd
	}
	return ant, c.err
}

func decodeReportSpec(body []byte) (ROReportSpec, error) {
	c := newCursor(body)
	rep := ROReportSpec{Trigger: ROReportTriggerType(c.u8()), N: c.u16()}
	for {
		p, ok := c.next()
		if !ok {
			break
		}
		if p.typ == ParamTagReportContentSelector {
			pc := newCursor(p.body)
			rep.Content = selectorFromFlags(pc.u16())
			if pc.err != nil {
				return rep, pc.err
			}
		}
	}
	return rep, c.err
}

// TagReportData is one tag observation inside an RO_ACCESS_REPORT.
// Optional fields are nil when the reader did not include them.
type TagReportData struct {
	EPC                      []byte
	ROSpecID                 *uint32
	SpecIndex                *uint16
	InventoryParameterSpecID *uint16
	AntennaID                *uint16
	PeakRSSI                 *int8
	ChannelIndex             *uint16
	FirstSeenUTC             *uint64
	FirstSeenUptime          *uint64
	LastSeenUTC              *uint64
	LastSeenUptime           *uint64
	TagSeenCount             *uint16
	AccessSpecID             *uint32
}

func (t TagReportData) encode(w *writer) {
	w.tlv(ParamTagReportData, func(w *writer) {
		if len(t.EPC) == tvLengths[ParamEPC96] {
			w.tv(ParamEPC96)
			w.raw(t.EPC)
		} else {
			w.tlv(ParamEPCData, func(w *writer) {
				w.u16(uint16(len(t.EPC) * 8))
				w.raw(t.EPC)
			})
		}
		if t.ROSpecID != nil {
			w.tv(ParamROSpecID)
			w.u32(*t.ROSpecID)
		}
		if t.SpecIndex != nil {
			w.tv(ParamSpecIndex)
			w.u16(*t.SpecIndex)
		}
		if t.InventoryParameterSpecID != nil {
			w.tv(ParamInventoryParameterSpecID)
			w.u16(*t.InventoryParameterSpecID)
		}
		if t.AntennaID != nil {
			w.tv(ParamAntennaID)
			w.u16(*t.AntennaID)
		}
		if t.PeakRSSI != nil {
			w.tv(ParamPeakRSSI)
			w.u8(uint8(*t.PeakRSSI))
		}
		if t.ChannelIndex != nil {
			w.tv(ParamChannelIndex)
			w.u16(*t.ChannelIndex)
		}
		if t.FirstSeenUTC != nil {
			w.tv(ParamFirstSeenTimestampUTC)
			w.u64(*t.FirstSeenUTC)
		}
		if t.FirstSeenUptime != nil {
			w.tv(ParamFirstSeenTimestampUptime)
			w.u64(*t.FirstSeenUptime)
		}
		if t.LastSeenUTC != nil {
			w.tv(ParamLastSeenTimestampUTC)
			w.u64(*t.LastSeenUTC)
		}
		if t.LastSeenUptime != nil {
			w.tv(ParamLastSeenTimestampUptime)
			w.u64(*t.LastSeenUptime)
		}
		if t.TagSeenCount != nil {
			w.tv(ParamTagSeenCount)
			w.u16(*t.TagSeenCount)
		}
		if t.AccessSpecID != nil {
			w.tv(ParamAccessSpecID)
			w.u32(*t.AccessSpecID)
		}
	})
}

func decodeTagReportData(body []byte) (TagReportData, error) {
	var t TagReportData
	c := newCursor(body)
	for {
		p, ok := c.next()
		if !ok {
			break
		}
		pc := newCursor(p.body)
		switch p.typ {
		case ParamEPC96:
			t.EPC = pc.bytes(len(p.body))
		case ParamEPCData:
			bits := int(pc.u16())
			t.EPC = pc.bytes((bits + 7) / 8)
		case ParamROSpecID:
			v := pc.u32()
			t.ROSpecID = &v
		case ParamSpecIndex:
			v := pc.u16()
			t.SpecIndex = &v
		case ParamInventoryParameterSpecID:
			v := pc.u16()
			t.InventoryParameterSpecID = &v
		case ParamAntennaID:
			v := pc.u16()
			t.AntennaID = &v
		case ParamPeakRSSI:
			v := int8(pc.u8())
			t.PeakRSSI = &v
		case ParamChannelIndex:
			v := pc.u16()
			t.ChannelIndex = &v
		case ParamFirstSeenTimestampUTC:
			v := pc.u64()
			t.FirstSeenUTC = &v
		case ParamFirstSeenTimestampUptime:
			v := pc.u64()
			t.FirstSeenUptime = &v
		case ParamLastSeenTimestampUTC:
			v := pc.u64()
			t.LastSeenUTC = &v
		case ParamLastSeenTimestampUptime:
			v := pc.u64()
			t.LastSeenUptime = &v
		case ParamTagSeenCount:
			v := pc.u16()
			t.TagSeenCount = &v
		case ParamAccessSpecID:
			v := pc.u32()
			t.AccessSpecID = &v
		}
		if pc.err != nil {
			return t, pc.err
		}
	}
	return t, c.err
}
