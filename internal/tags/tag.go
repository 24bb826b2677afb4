package tags

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	MinAntenna  uint16 = 1
	MaxAntenna  uint16 = 3
	MinStrength int8   = -80
	MaxStrength int8   = 0
)

// Tag is one detection: the strongest reading of an id on one antenna.
type Tag struct {
	ID       string `json:"id" cbor:"id"`
	Antenna  uint16 `json:"antenna" cbor:"antenna"`
	Strength int8   `json:"strength" cbor:"strength"`
}

type ErrorKind int

const (
	Incomplete ErrorKind = iota
	IncorrectAntenna
	IncorrectStrength
)

func (k ErrorKind) String() string {
	switch k {
	case Incomplete:
		return "Incomplete"
	case IncorrectAntenna:
		return "IncorrectAntenna"
	case IncorrectStrength:
		return "IncorrectStrength"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// TagError reports a detection that failed validation.
type TagError struct {
	Kind  ErrorKind
	Value string
}

func (e *TagError) Error() string {
	switch e.Kind {
	case IncorrectAntenna:
		return fmt.Sprintf("tag antenna %s outside [%d,%d]", e.Value, MinAntenna, MaxAntenna)
	case IncorrectStrength:
		return fmt.Sprintf("tag strength %s outside [%d,%d]", e.Value, MinStrength, MaxStrength)
	default:
		return fmt.Sprintf("tag report incomplete: missing %s", e.Value)
	}
}

// NewTag validates antenna and strength; both bounds are inclusive.
func NewTag(id string, antenna uint16, strength int8) (Tag, error) {
	if antenna < MinAntenna || antenna > MaxAntenna {
		return Tag{}, &TagError{Kind: IncorrectAntenna, Value: fmt.Sprint(antenna)}
	}
	if strength < MinStrength || strength > MaxStrength {
		return Tag{}, &TagError{Kind: IncorrectStrength, Value: fmt.Sprint(strength)}
	}
	return Tag{ID: id, Antenna: antenna, Strength: strength}, nil
}

// IDFromEPC renders the EPC bytes as the uppercase hex tag id.
func IDFromEPC(epc []byte) string {
	return strings.ToUpper(hex.EncodeToString(epc))
}

// FromReport builds a tag from the fields of one tag report entry.
// Antenna and peak RSSI are optional on the wire, a missing one is Incomplete.
func FromReport(epc []byte, antenna *uint16, rssi *int8) (Tag, error) {
	if antenna == nil {
		return Tag{}, &TagError{Kind: Incomplete, Value: "antenna id"}
	}
	if rssi == nil {
		return Tag{}, &TagError{Kind: Incomplete, Value: "peak rssi"}
	}
	return NewTag(IDFromEPC(epc), *antenna, *rssi)
}

// Stronger reports whether t should replace other. Ties keep other.
func (t Tag) Stronger(other Tag) bool {
	return t.Strength > other.Strength
}
