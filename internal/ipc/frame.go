package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

const (
	lengthPrefixSize = 4
	maxFrameSize     = 1 << 20
)

var (
	ErrFrameTooLarge = errors.New("ipc frame too large")
	ErrFrameEmpty    = errors.New("ipc frame is empty")
	ErrFrameTrunc    = errors.New("ipc frame truncated")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("ipc cbor encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("ipc cbor decoder: %v", err))
	}
}

// writeFrame CBOR-encodes v behind a big-endian u32 length.
func writeFrame(w io.Writer, v any) error {
	data, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode ipc frame: %w", err)
	}
	if len(data) > maxFrameSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(data), maxFrameSize)
	}
	buf := make([]byte, lengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[lengthPrefixSize:], data)
	_, err = w.Write(buf)
	return err
}

// readFrame reads one frame into v. A clean EOF before the prefix is io.EOF.
func readFrame(r io.Reader, v any) error {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrFrameTrunc
		}
		return err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n == 0 {
		return ErrFrameEmpty
	}
	if n > maxFrameSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxFrameSize)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return ErrFrameTrunc
		}
		return err
	}
	if err := decMode.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode ipc frame: %w", err)
	}
	return nil
}
