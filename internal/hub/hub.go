// Package hub fans reader events out to the front-ends. It keeps the last
// snapshot and a short error history so late subscribers can catch up.
// Publishing never blocks: a full subscriber misses events.
package hub

import (
	"sync"

	"circles_go/sdk"
)

const (
	DefaultBuffer  = 64
	MaxRecentError = 32
)

// Event is one reader event as seen by subscribers. Exactly one of
// Snapshot and Error is set.
type Event struct {
	Name     string             `json:"event" cbor:"event"`
	Snapshot *sdk.SnapshotEvent `json:"snapshot,omitempty" cbor:"snapshot,omitempty"`
	Error    *sdk.ErrorEvent    `json:"error,omitempty" cbor:"error,omitempty"`
}

type Hub struct {
	mu         sync.RWMutex
	subs       map[chan Event]struct{}
	recvToSend map[<-chan Event]chan Event

	latest *sdk.SnapshotEvent
	errs   []sdk.ErrorEvent
}

func New() *Hub {
	return &Hub{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

func (h *Hub) EmitSnapshot(ev sdk.SnapshotEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.latest = &ev
	h.mu.Unlock()
	h.publish(Event{Name: sdk.EventUpdatedTags, Snapshot: &ev})
}

func (h *Hub) EmitError(ev sdk.ErrorEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.errs = append(h.errs, ev)
	if len(h.errs) > MaxRecentError {
		h.errs = append([]sdk.ErrorEvent(nil), h.errs[len(h.errs)-MaxRecentError:]...)
	}
	h.mu.Unlock()
	h.publish(Event{Name: sdk.EventReaderError, Error: &ev})
}

func (h *Hub) publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Latest returns the most recent snapshot, if any.
func (h *Hub) Latest() (sdk.SnapshotEvent, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return sdk.SnapshotEvent{}, false
	}
	return *h.latest, true
}

// RecentErrors returns up to MaxRecentError errors, oldest first.
func (h *Hub) RecentErrors() []sdk.ErrorEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]sdk.ErrorEvent(nil), h.errs...)
}

// Reset forgets the last snapshot, e.g. when a new session starts.
func (h *Hub) Reset() {
	h.mu.Lock()
	h.latest = nil
	h.mu.Unlock()
}

// Subscribe returns a channel of events. Call Unsubscribe when done.
func (h *Hub) Subscribe(bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = DefaultBuffer
	}
	ch := make(chan Event, bufSize)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = struct{}{}
	h.recvToSend[ch] = ch
	return ch
}

// Unsubscribe closes ch. Unknown channels are ignored.
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sendCh, ok := h.recvToSend[ch]
	if !ok {
		return
	}
	delete(h.subs, sendCh)
	delete(h.recvToSend, ch)
	close(sendCh)
}

func (h *Hub) SubscriberCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
