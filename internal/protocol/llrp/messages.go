package llrp

import "fmt"

// Body is a typed message payload.
type Body interface {
	Type() MessageType
	encode(w *writer)
	decode(c *cursor) error
}

// StatusResponse is implemented by every message carrying an LLRPStatus.
type StatusResponse interface {
	Body
	Result() LLRPStatus
}

// Response is embedded by the *_RESPONSE messages.
type Response struct {
	Status LLRPStatus
}

func (r *Response) Result() LLRPStatus { return r.Status }

func (r *Response) encode(w *writer) { r.Status.encode(w) }

func (r *Response) decode(c *cursor) error {
	s, err := findStatus(c)
	if err != nil {
		return err
	}
	r.Status = s
	return nil
}

func decodeSpecID(c *cursor, id *uint32) error {
	*id = c.u32()
	return c.err
}

type empty struct{}

func (*empty) encode(*writer)       {}
func (*empty) decode(*cursor) error { return nil }

type SetReaderConfig struct {
	ResetToFactoryDefault bool
	Keepalive             *KeepaliveSpec
	Custom                []Custom
}

func (*SetReaderConfig) Type() MessageType { return TypeSetReaderConfig }

func (m *SetReaderConfig) encode(w *writer) {
	w.bool8(m.ResetToFactoryDefault)
	if m.Keepalive != nil {
		m.Keepalive.encode(w)
	}
	for _, cu := range m.Custom {
		cu.encode(w)
	}
}

func (m *SetReaderConfig) decode(c *cursor) error {
	m.ResetToFactoryDefault = c.u8()&0x80 != 0
	for {
		p, ok := c.next()
		if !ok {
			break
		}
		switch p.typ {
		case ParamKeepaliveSpec:
			k, err := decodeKeepaliveSpec(p.body)
			if err != nil {
				return err
			}
			m.Keepalive = &k
		case ParamCustom:
			cu, err := decodeCustom(p.body)
			if err != nil {
				return err
			}
			m.Custom = append(m.Custom, cu)
		}
	}
	return c.err
}

type SetReaderConfigResponse struct{ Response }

func (*SetReaderConfigResponse) Type() MessageType { return TypeSetReaderConfigResponse }

type CloseConnection struct{ empty }

func (*CloseConnection) Type() MessageType { return TypeCloseConnection }

type CloseConnectionResponse struct{ Response }

func (*CloseConnectionResponse) Type() MessageType { return TypeCloseConnectionResponse }

type AddROSpec struct {
	ROSpec ROSpec
}

func (*AddROSpec) Type() MessageType { return TypeAddROSpec }

func (m *AddROSpec) encode(w *writer) { m.ROSpec.encode(w) }

func (m *AddROSpec) decode(c *cursor) error {
	for {
		p, ok := c.next()
		if !ok {
			break
		}
		if p.typ != ParamROSpec {
			continue
		}
		spec, err := decodeROSpec(p.body)
		if err != nil {
			return err
		}
		m.ROSpec = spec
		return nil
	}
	if c.err != nil {
		return c.err
	}
	return fmt.Errorf("%w: missing ROSpec", ErrTruncated)
}

type AddROSpecResponse struct{ Response }

func (*AddROSpecResponse) Type() MessageType { return TypeAddROSpecResponse }

// DeleteROSpec with ROSpecID 0 deletes every ROSpec on the reader.
type DeleteROSpec struct {
	ROSpecID uint32
}

func (*DeleteROSpec) Type() MessageType { return TypeDeleteROSpec }

func (m *DeleteROSpec) encode(w *writer) { w.u32(m.ROSpecID) }

func (m *DeleteROSpec) decode(c *cursor) error { return decodeSpecID(c, &m.ROSpecID) }

type DeleteROSpecResponse struct{ Response }

func (*DeleteROSpecResponse) Type() MessageType { return TypeDeleteROSpecResponse }

type StartROSpec struct {
	ROSpecID uint32
}

func (*StartROSpec) Type() MessageType { return TypeStartROSpec }

func (m *StartROSpec) encode(w *writer) { w.u32(m.ROSpecID) }

func (m *StartROSpec) decode(c *cursor) error { return decodeSpecID(c, &m.ROSpecID) }

type StartROSpecResponse struct{ Response }

func (*StartROSpecResponse) Type() MessageType { return TypeStartROSpecResponse }

type StopROSpec struct {
	ROSpecID uint32
}

func (*StopROSpec) Type() MessageType { return TypeStopROSpec }

func (m *StopROSpec) encode(w *writer) { w.u32(m.ROSpecID) }

func (m *StopROSpec) decode(c *cursor) error { return decodeSpecID(c, &m.ROSpecID) }

type StopROSpecResponse struct{ Response }

func (*StopROSpecResponse) Type() MessageType { return TypeStopROSpecResponse }

type EnableROSpec struct {
	ROSpecID uint32
}

func (*EnableROSpec) Type() MessageType { return TypeEnableROSpec }

func (m *EnableROSpec) encode(w *writer) { w.u32(m.ROSpecID) }

func (m *EnableROSpec) decode(c *cursor) error { return decodeSpecID(c, &m.ROSpecID) }

type EnableROSpecResponse struct{ Response }

func (*EnableROSpecResponse) Type() MessageType { return TypeEnableROSpecResponse }

// ROAccessReport carries the tags seen since the previous report.
type ROAccessReport struct {
	Tags []TagReportData
}

func (*ROAccessReport) Type() MessageType { return TypeROAccessReport }

func (m *ROAccessReport) encode(w *writer) {
	for _, t := range m.Tags {
		t.encode(w)
	}
}

func (m *ROAccessReport) decode(c *cursor) error {
	for {
		p, ok := c.next()
		if !ok {
			break
		}
		if p.typ != ParamTagReportData {
			continue
		}
		t, err := decodeTagReportData(p.body)
		if err != nil {
			return err
		}
		m.Tags = append(m.Tags, t)
	}
	return c.err
}

type Keepalive struct{ empty }

func (*Keepalive) Type() MessageType { return TypeKeepalive }

type KeepaliveAck struct{ empty }

func (*KeepaliveAck) Type() MessageType { return TypeKeepaliveAck }

type ReaderEventNotification struct {
	Data ReaderEventNotificationData
}

func (*ReaderEventNotification) Type() MessageType { return TypeReaderEventNotification }

func (m *ReaderEventNotification) encode(w *writer) { m.Data.encode(w) }

func (m *ReaderEventNotification) decode(c *cursor) error {
	for {
		p, ok := c.next()
		if !ok {
			break
		}
		if p.typ != ParamReaderEventNotificationData {
			continue
		}
		d, err := decodeNotificationData(p.body)
		if err != nil {
			return err
		}
		m.Data = d
		return nil
	}
	if c.err != nil {
		return c.err
	}
	return fmt.Errorf("%w: missing ReaderEventNotificationData", ErrTruncated)
}

// ErrorMessage is sent by the reader for messages it could not process.
type ErrorMessage struct{ Response }

func (*ErrorMessage) Type() MessageType { return TypeErrorMessage }

// Unknown keeps the raw payload of message types this package does not model.
type Unknown struct {
	MsgType MessageType
	Payload []byte
}

func (u *Unknown) Type() MessageType { return u.MsgType }

func (u *Unknown) encode(w *writer) { w.raw(u.Payload) }

func (u *Unknown) decode(c *cursor) error {
	u.Payload = c.bytes(c.remaining())
	return c.err
}

var newBody = map[MessageType]func() Body{
	TypeSetReaderConfig:         func() Body { return &SetReaderConfig{} },
	TypeSetReaderConfigResponse: func() Body { return &SetReaderConfigResponse{} },
	TypeCloseConnection:         func() Body { return &CloseConnection{} },
	TypeCloseConnectionResponse: func() Body { return &CloseConnectionResponse{} },
	TypeAddROSpec:               func() Body { return &AddROSpec{} },
	TypeAddROSpecResponse:       func() Body { return &AddROSpecResponse{} },
	TypeDeleteROSpec:            func() Body { return &DeleteROSpec{} },
	TypeDeleteROSpecResponse:    func() Body { return &DeleteROSpecResponse{} },
	TypeStartROSpec:             func() Body { return &StartROSpec{} },
	TypeStartROSpecResponse:     func() Body { return &StartROSpecResponse{} },
	TypeStopROSpec:              func() Body { return &StopROSpec{} },
	TypeStopROSpecResponse:      func() Body { return &StopROSpecResponse{} },
	TypeEnableROSpec:            func() Body { return &EnableROSpec{} },
	TypeEnableROSpecResponse:    func() Body { return &EnableROSpecResponse{} },
	TypeROAccessReport:          func() Body { return &ROAccessReport{} },
	TypeKeepalive:               func() Body { return &Keepalive{} },
	TypeKeepaliveAck:            func() Body { return &KeepaliveAck{} },
	TypeReaderEventNotification: func() Body { return &ReaderEventNotification{} },
	TypeErrorMessage:            func() Body { return &ErrorMessage{} },
}

// Decode parses the payload of m into its typed body. Unmodelled types
// come back as *Unknown rather than an error.
func Decode(m Message) (Body, error) {
	ctor, ok := newBody[m.Type]
	if !ok {
		u := &Unknown{MsgType: m.Type}
		if err := u.decode(newCursor(m.Payload)); err != nil {
			return nil, err
		}
		return u, nil
	}
	b := ctor()
	if err := b.decode(newCursor(m.Payload)); err != nil {
		return nil, fmt.Errorf("decode %s id=%d: %w", m.Type, m.ID, err)
	}
	return b, nil
}

// As decodes m and asserts it is the body type T.
func As[T Body](m Message) (T, error) {
	var zero T
	b, err := Decode(m)
	if err != nil {
		return zero, err
	}
	t, ok := b.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %s", ErrUnexpectedType, m.Type)
	}
	return t, nil
}

// Build frames b as a message with the given id.
func Build(id uint32, b Body) (Message, error) {
	w := &writer{}
	b.encode(w)
	m := Message{Version: ProtocolVersion, Type: b.Type(), ID: id, Payload: w.buf}
	if m.Len() > MaxMessageSize {
		return Message{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, m.Type, m.Len())
	}
	return m, nil
}
