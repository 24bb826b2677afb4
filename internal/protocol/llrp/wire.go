package llrp

import (
	"encoding/binary"
	"fmt"
)

// tvLengths holds the fixed value size of every TV-encoded parameter type.
var tvLengths = map[ParamType]int{
	ParamAntennaID:                 2,
	ParamFirstSeenTimestampUTC:     8,
	ParamFirstSeenTimestampUptime:  8,
	ParamLastSeenTimestampUTC:      8,
	ParamLastSeenTimestampUptime:   8,
	ParamPeakRSSI:                  1,
	ParamChannelIndex:              2,
	ParamTagSeenCount:              2,
	ParamROSpecID:                  4,
	ParamInventoryParameterSpecID:  2,
	ParamC1G2CRC:                   2,
	ParamC1G2PC:                    2,
	ParamEPC96:                     12,
	ParamSpecIndex:                 2,
	ParamClientRequestOpSpecResult: 2,
	ParamAccessSpecID:              4,
	ParamOpSpecID:                  2,
	ParamC1G2SingulationDetails:    4,
	ParamC1G2XPCW1:                 2,
	ParamC1G2XPCW2:                 2,
}

type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) u16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *writer) u32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *writer) u64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *writer) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *writer) bool8(v bool) {
	if v {
		w.u8(0x80)
		return
	}
	w.u8(0)
}

// tlv writes a TLV parameter header, lets fn append the body and patches the length.
func (w *writer) tlv(typ ParamType, fn func(w *writer)) {
	start := len(w.buf)
	w.u16(uint16(typ) & 0x03FF)
	w.u16(0)
	fn(w)
	binary.BigEndian.PutUint16(w.buf[start+2:start+4], uint16(len(w.buf)-start))
}

func (w *writer) tv(typ ParamType) {
	w.u8(0x80 | uint8(typ)&0x7F)
}

type cursor struct {
	b   []byte
	off int
	err error
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b}
}

func (c *cursor) remaining() int {
	return len(c.b) - c.off
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.remaining() < n {
		c.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, c.off, c.remaining())
		return nil
	}
	out := c.b[c.off : c.off+n]
	c.off += n
	return out
}

func (c *cursor) u8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (c *cursor) u32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (c *cursor) u64() uint64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (c *cursor) bytes(n int) []byte {
	b := c.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// param is one raw parameter split off the stream.
type param struct {
	typ  ParamType
	tv   bool
	body []byte
}

// next splits the next TLV or TV parameter off the cursor.
func (c *cursor) next() (param, bool) {
	if c.err != nil || c.remaining() == 0 {
		return param{}, false
	}
	first := c.b[c.off]
	if first&0x80 != 0 {
		typ := ParamType(first & 0x7F)
		size, ok := tvLengths[typ]
		if !ok {
			c.err = fmt.Errorf("%w: type %d", ErrUnknownTV, typ)
			return param{}, false
		}
		c.take(1)
		body := c.take(size)
		if body == nil {
			return param{}, false
		}
		return param{typ: typ, tv: true, body: body}, true
	}

	if c.remaining() < 4 {
		c.err = fmt.Errorf("%w: tlv header at offset %d", ErrTruncated, c.off)
		return param{}, false
	}
	typ := ParamType(binary.BigEndian.Uint16(c.b[c.off:c.off+2]) & 0x03FF)
	length := int(binary.BigEndian.Uint16(c.b[c.off+2 : c.off+4]))
	if length < 4 {
		c.err = fmt.Errorf("%w: tlv %d length %d", ErrTruncated, typ, length)
		return param{}, false
	}
	raw := c.take(length)
	if raw == nil {
		return param{}, false
	}
	return param{typ: typ, body: raw[4:]}, true
}
