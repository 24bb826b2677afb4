package sdk

import (
	"time"

	"circles_go/internal/tags"
)

// Event names used by front-ends.
const (
	EventUpdatedTags = "updated-tags"
	EventReaderError = "reader-error"
)

// SnapshotEvent carries the current smoothed tag map.
type SnapshotEvent struct {
	When      time.Time    `json:"when" cbor:"when"`
	SessionID string       `json:"session_id,omitempty" cbor:"session_id,omitempty"`
	Tags      tags.TagsMap `json:"tags" cbor:"tags"`
}

// ErrorEvent is the {kind, message} pair surfaced for background failures.
type ErrorEvent struct {
	When      time.Time `json:"when" cbor:"when"`
	SessionID string    `json:"session_id,omitempty" cbor:"session_id,omitempty"`
	Kind      string    `json:"kind" cbor:"kind"`
	Message   string    `json:"message" cbor:"message"`
}

func NewErrorEvent(sessionID string, err error) ErrorEvent {
	re := AsReaderError(err)
	return ErrorEvent{When: time.Now(), SessionID: sessionID, Kind: re.KindString(), Message: re.Error()}
}

// EventSink receives reader output. Implementations must not block.
type EventSink interface {
	EmitSnapshot(SnapshotEvent)
	EmitError(ErrorEvent)
}

// ChannelSink delivers events on buffered channels, dropping when full.
type ChannelSink struct {
	snapshots chan SnapshotEvent
	errs      chan ErrorEvent
}

func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 64
	}
	return &ChannelSink{
		snapshots: make(chan SnapshotEvent, size),
		errs:      make(chan ErrorEvent, size),
	}
}

func (s *ChannelSink) Snapshots() <-chan SnapshotEvent {
	return s.snapshots
}

func (s *ChannelSink) Errors() <-chan ErrorEvent {
	return s.errs
}

func (s *ChannelSink) EmitSnapshot(ev SnapshotEvent) {
	select {
	case s.snapshots <- ev:
	default:
	}
}

func (s *ChannelSink) EmitError(ev ErrorEvent) {
	select {
	case s.errs <- ev:
	default:
	}
}

// sessionSink stamps the session id onto every event. A backend only
// reports errors that end its session, so ended runs before each one is
// forwarded.
type sessionSink struct {
	id    string
	sink  EventSink
	ended func()
}

func (s sessionSink) EmitSnapshot(ev SnapshotEvent) {
	if ev.SessionID == "" {
		ev.SessionID = s.id
	}
	s.sink.EmitSnapshot(ev)
}

func (s sessionSink) EmitError(ev ErrorEvent) {
	if ev.SessionID == "" {
		ev.SessionID = s.id
	}
	if s.ended != nil {
		s.ended()
	}
	s.sink.EmitError(ev)
}

type discardSink struct{}

func (discardSink) EmitSnapshot(SnapshotEvent) {}
func (discardSink) EmitError(ErrorEvent)       {}
