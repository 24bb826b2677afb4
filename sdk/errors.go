package sdk

import (
	"errors"
	"fmt"

	"circles_go/internal/reader"
)

// ErrorKind classifies reader failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindIncorrectHostname
	KindCouldNotConnect
	KindLostConnection
)

func (k ErrorKind) String() string {
	switch k {
	case KindIncorrectHostname:
		return "IncorrectHostname"
	case KindCouldNotConnect:
		return "CouldNotConnect"
	case KindLostConnection:
		return "LostConnection"
	default:
		return "Unknown"
	}
}

// ReaderError is the error returned by, and emitted from, a Reader.
type ReaderError struct {
	Kind    ErrorKind
	Device  string
	Message string
	Err     error
}

// Sentinels for errors.Is; only the kind is compared.
var (
	ErrIncorrectHostname = &ReaderError{Kind: KindIncorrectHostname}
	ErrCouldNotConnect   = &ReaderError{Kind: KindCouldNotConnect}
	ErrLostConnection    = &ReaderError{Kind: KindLostConnection}
	ErrUnknown           = &ReaderError{Kind: KindUnknown}
)

func (e *ReaderError) Error() string {
	switch e.Kind {
	case KindIncorrectHostname:
		return fmt.Sprintf("Hostname %s is incorrect. Original error: %s", e.Device, e.Message)
	case KindCouldNotConnect:
		return fmt.Sprintf("Could not connect to hostname %s. Original error: %s", e.Device, e.Message)
	case KindLostConnection:
		return "Connection with the reader was lost!"
	default:
		return fmt.Sprintf("Encountered an unexpected error in the reader. Message: %s", e.Message)
	}
}

func (e *ReaderError) Is(target error) bool {
	t, ok := target.(*ReaderError)
	return ok && t.Kind == e.Kind
}

func (e *ReaderError) Unwrap() error {
	return e.Err
}

// KindString is the kind name carried in error events.
func (e *ReaderError) KindString() string {
	return e.Kind.String()
}

func unknownError(err error, format string, args ...any) *ReaderError {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &ReaderError{Kind: KindUnknown, Message: msg, Err: err}
}

// connectError maps transport failures onto the reader taxonomy.
func connectError(device string, err error) *ReaderError {
	var dialErr *reader.DialError
	switch {
	case errors.Is(err, reader.ErrInvalidDevice):
		return &ReaderError{Kind: KindIncorrectHostname, Device: device, Message: err.Error(), Err: err}
	case errors.As(err, &dialErr):
		return &ReaderError{Kind: KindCouldNotConnect, Device: device, Message: dialErr.Fallback.Error(), Err: err}
	default:
		return unknownError(err, "connect %s", device)
	}
}

// AsReaderError wraps any error as a *ReaderError, keeping one if present.
func AsReaderError(err error) *ReaderError {
	if err == nil {
		return nil
	}
	var re *ReaderError
	if errors.As(err, &re) {
		return re
	}
	return unknownError(err, "reader")
}
