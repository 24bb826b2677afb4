package llrp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ProtocolVersion is the LLRP 1.0.1 header version.
const ProtocolVersion = 1

// DefaultPort is the IANA port for LLRP readers.
const DefaultPort = 5084

// HeaderLen is the fixed message header: Rsvd(3) Ver(3) Type(10), Length(32), ID(32).
const HeaderLen = 10

// MaxMessageSize bounds a single frame read from the wire.
const MaxMessageSize = 1 << 20

var (
	ErrShortHeader    = errors.New("llrp: short message header")
	ErrBadLength      = errors.New("llrp: invalid message length")
	ErrTooLarge       = errors.New("llrp: message too large")
	ErrTruncated      = errors.New("llrp: truncated payload")
	ErrUnexpectedType = errors.New("llrp: unexpected message type")
	ErrUnknownTV      = errors.New("llrp: unknown tv parameter")
)

// MessageType is the 10-bit message kind tag.
type MessageType uint16

const (
	TypeSetReaderConfig         MessageType = 3
	TypeCloseConnectionResponse MessageType = 4
	TypeSetReaderConfigResponse MessageType = 13
	TypeCloseConnection         MessageType = 14
	TypeAddROSpec               MessageType = 20
	TypeDeleteROSpec            MessageType = 21
	TypeStartROSpec             MessageType = 22
	TypeStopROSpec              MessageType = 23
	TypeEnableROSpec            MessageType = 24
	TypeAddROSpecResponse       MessageType = 30
	TypeDeleteROSpecResponse    MessageType = 31
	TypeStartROSpecResponse     MessageType = 32
	TypeStopROSpecResponse      MessageType = 33
	TypeEnableROSpecResponse    MessageType = 34
	TypeROAccessReport          MessageType = 61
	TypeKeepalive               MessageType = 62
	TypeReaderEventNotification MessageType = 63
	TypeKeepaliveAck            MessageType = 72
	TypeErrorMessage            MessageType = 100
)

var messageTypeNames = map[MessageType]string{
	TypeSetReaderConfig:         "SET_READER_CONFIG",
	TypeCloseConnectionResponse: "CLOSE_CONNECTION_RESPONSE",
	TypeSetReaderConfigResponse: "SET_READER_CONFIG_RESPONSE",
	TypeCloseConnection:         "CLOSE_CONNECTION",
	TypeAddROSpec:               "ADD_ROSPEC",
	TypeDeleteROSpec:            "DELETE_ROSPEC",
	TypeStartROSpec:             "START_ROSPEC",
	TypeStopROSpec:              "STOP_ROSPEC",
	TypeEnableROSpec:            "ENABLE_ROSPEC",
	TypeAddROSpecResponse:       "ADD_ROSPEC_RESPONSE",
	TypeDeleteROSpecResponse:    "DELETE_ROSPEC_RESPONSE",
	TypeStartROSpecResponse:     "START_ROSPEC_RESPONSE",
	TypeStopROSpecResponse:      "STOP_ROSPEC_RESPONSE",
	TypeEnableROSpecResponse:    "ENABLE_ROSPEC_RESPONSE",
	TypeROAccessReport:          "RO_ACCESS_REPORT",
	TypeKeepalive:               "KEEPALIVE",
	TypeReaderEventNotification: "READER_EVENT_NOTIFICATION",
	TypeKeepaliveAck:            "KEEPALIVE_ACK",
	TypeErrorMessage:            "ERROR_MESSAGE",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MESSAGE_%d", uint16(t))
}

// Message is one framed message in its generic (undecoded) form.
type Message struct {
	Version uint8
	Type    MessageType
	ID      uint32
	Payload []byte
}

// Len is the on-wire size including the header.
func (m Message) Len() int {
	return HeaderLen + len(m.Payload)
}

// MarshalBinary frames the message.
func (m Message) MarshalBinary() ([]byte, error) {
	total := m.Len()
	if total > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, total, MaxMessageSize)
	}
	version := m.Version
	if version == 0 {
		version = ProtocolVersion
	}
	out := make([]byte, total)
	binary.BigEndian.PutUint16(out[0:2], uint16(version&0x07)<<10|uint16(m.Type)&0x03FF)
	binary.BigEndian.PutUint32(out[2:6], uint32(total))
	binary.BigEndian.PutUint32(out[6:10], m.ID)
	copy(out[HeaderLen:], m.Payload)
	return out, nil
}

// ReadMessage blocks until one complete frame has been read from r.
func ReadMessage(r io.Reader) (Message, error) {
	var header [HeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Message{}, ErrShortHeader
		}
		return Message{}, err
	}

	first := binary.BigEndian.Uint16(header[0:2])
	length := binary.BigEndian.Uint32(header[2:6])
	if length < HeaderLen {
		return Message{}, fmt.Errorf("%w: %d", ErrBadLength, length)
	}
	if length > MaxMessageSize {
		return Message{}, fmt.Errorf("%w: %d > %d", ErrTooLarge, length, MaxMessageSize)
	}

	payload := make([]byte, length-HeaderLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Message{}, ErrTruncated
		}
		return Message{}, err
	}

	return Message{
		Version: uint8((first >> 10) & 0x07),
		Type:    MessageType(first & 0x03FF),
		ID:      binary.BigEndian.Uint32(header[6:10]),
		Payload: payload,
	}, nil
}

// WriteMessage writes one complete frame to w.
func WriteMessage(w io.Writer, m Message) error {
	raw, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}
