package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circles_go/internal/tags"
	"circles_go/sdk"
)

func snapshot(id string) sdk.SnapshotEvent {
	tag, _ := tags.NewTag(id, 1, -40)
	return sdk.SnapshotEvent{When: time.Now(), Tags: tags.FromTags(tag)}
}

func TestHubFansOutAndRemembersLatest(t *testing.T) {
	h := New()
	a := h.Subscribe(4)
	b := h.Subscribe(4)
	assert.Equal(t, 2, h.SubscriberCount())

	h.EmitSnapshot(snapshot("AA"))
	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, sdk.EventUpdatedTags, ev.Name)
		require.NotNil(t, ev.Snapshot)
		assert.Contains(t, ev.Snapshot.Tags, "AA")
	}

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Contains(t, latest.Tags, "AA")

	h.Reset()
	_, ok = h.Latest()
	assert.False(t, ok)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := New()
	ch := h.Subscribe(1)
	h.EmitSnapshot(snapshot("AA"))
	h.EmitSnapshot(snapshot("BB"))

	ev := <-ch
	assert.Contains(t, ev.Snapshot.Tags, "AA")
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %+v", extra)
	default:
	}
	latest, _ := h.Latest()
	assert.Contains(t, latest.Tags, "BB")
}

func TestHubErrorHistoryIsBounded(t *testing.T) {
	h := New()
	for i := 0; i < MaxRecentError+5; i++ {
		h.EmitError(sdk.ErrorEvent{Kind: "Unknown", Message: "x"})
	}
	assert.Len(t, h.RecentErrors(), MaxRecentError)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := New()
	ch := h.Subscribe(0)
	h.Unsubscribe(ch)
	h.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, h.SubscriberCount())

	var nilHub *Hub
	nilHub.EmitSnapshot(snapshot("AA"))
	assert.Zero(t, nilHub.SubscriberCount())
}
