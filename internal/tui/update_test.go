package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"circles_go/internal/hub"
	"circles_go/internal/tags"
	"circles_go/sdk"
)

type fakeController struct {
	mock     bool
	startErr error
	started  []string
	stops    []bool
}

func (f *fakeController) StartReading(_ context.Context, device string) (*sdk.Session, error) {
	f.started = append(f.started, device)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &sdk.Session{ID: uuid.New(), Device: device, Backend: sdk.BackendLLRP, StartedAt: time.Now()}, nil
}

func (f *fakeController) StopReading(await bool) error {
	f.stops = append(f.stops, await)
	return nil
}

func (f *fakeController) Current() *sdk.Session { return nil }
func (f *fakeController) Mock() bool            { return f.mock }

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatal("unexpected model type")
	}
	return nm, cmd
}

func startedModel(t *testing.T, ctrl *fakeController) Model {
	t.Helper()
	m := NewModel(ctrl, nil, "fx9600749620", time.Second)
	m, cmd := step(t, m, key("enter"))
	if cmd == nil {
		t.Fatal("expected start command")
	}
	m, _ = step(t, m, cmd())
	if m.session == nil {
		t.Fatalf("expected session, status=%q", m.status)
	}
	return m
}

func TestEmptyDeviceFocusesInput(t *testing.T) {
	m := NewModel(&fakeController{}, nil, "", time.Second)
	if !m.editing {
		t.Fatal("expected input to be focused without a device id")
	}

	m.editing = false
	m, _ = step(t, m, key("enter"))
	if !m.editing {
		t.Fatal("expected enter without device to refocus input")
	}
	if m.starting {
		t.Fatal("must not start without device id")
	}
}

func TestTypingQIntoInputDoesNotQuit(t *testing.T) {
	m := NewModel(&fakeController{}, nil, "", time.Second)
	m, _ = step(t, m, key("q"))
	if m.input.Value() != "q" {
		t.Fatalf("expected q typed into input, got %q", m.input.Value())
	}
	if !m.editing {
		t.Fatal("expected to stay in input mode")
	}
}

func TestEnterStartsReadingAndSwitchesToTags(t *testing.T) {
	ctrl := &fakeController{}
	m := startedModel(t, ctrl)

	if len(ctrl.started) != 1 || ctrl.started[0] != "fx9600749620" {
		t.Fatalf("unexpected starts: %v", ctrl.started)
	}
	if m.activeScreen != screenTags {
		t.Fatalf("expected tags screen, got %d", m.activeScreen)
	}
	if m.starting {
		t.Fatal("starting flag should be cleared")
	}
}

func TestStartFailureIsReported(t *testing.T) {
	ctrl := &fakeController{startErr: &sdk.ReaderError{Kind: sdk.KindCouldNotConnect, Device: "fx9600749620", Message: "timeout"}}
	m := NewModel(ctrl, nil, "fx9600749620", time.Second)
	m, cmd := step(t, m, key("enter"))
	m, _ = step(t, m, cmd())

	if m.session != nil {
		t.Fatal("expected no session")
	}
	if !strings.Contains(m.status, "Could not connect to hostname fx9600749620") {
		t.Fatalf("unexpected status %q", m.status)
	}
	if statusTag(m.status) != "[ERR]" {
		t.Fatalf("expected error tag, got %s", statusTag(m.status))
	}
}

func TestSnapshotUpdatesTagTable(t *testing.T) {
	m := startedModel(t, &fakeController{})

	weak, _ := tags.NewTag("AA", 1, -70)
	strong, _ := tags.NewTag("BB", 3, -20)
	snap := sdk.SnapshotEvent{When: time.Now(), SessionID: m.session.ID.String(), Tags: tags.FromTags(weak, strong)}
	m, cmd := step(t, m, hubEventMsg{Event: hub.Event{Name: sdk.EventUpdatedTags, Snapshot: &snap}})
	if cmd == nil {
		t.Fatal("expected to keep waiting for events")
	}
	if len(m.tags) != 2 || m.tags[0].ID != "BB" {
		t.Fatalf("expected strongest first, got %+v", m.tags)
	}
	if !strings.Contains(m.View(), "BB") {
		t.Fatal("expected tag id in view")
	}

	other := sdk.SnapshotEvent{When: time.Now(), SessionID: uuid.NewString(), Tags: tags.FromTags(weak)}
	m, _ = step(t, m, hubEventMsg{Event: hub.Event{Name: sdk.EventUpdatedTags, Snapshot: &other}})
	if len(m.tags) != 2 {
		t.Fatal("snapshot from another session must be ignored")
	}
}

func TestLostConnectionClearsSession(t *testing.T) {
	m := startedModel(t, &fakeController{})
	ev := sdk.NewErrorEvent(m.session.ID.String(), sdk.ErrLostConnection)
	m, _ = step(t, m, hubEventMsg{Event: hub.Event{Name: sdk.EventReaderError, Error: &ev}})

	if m.session != nil {
		t.Fatal("expected session cleared")
	}
	if len(m.errs) != 1 || m.errs[0].Kind != "LostConnection" {
		t.Fatalf("unexpected errors: %+v", m.errs)
	}
}

func TestStopKeys(t *testing.T) {
	ctrl := &fakeController{}
	m := startedModel(t, ctrl)

	m, cmd := step(t, m, key("S"))
	if !m.stopping || cmd == nil {
		t.Fatal("expected stop in flight")
	}
	m, _ = step(t, m, cmd())
	if m.session != nil || m.stopping {
		t.Fatal("expected stopped state")
	}
	if len(ctrl.stops) != 1 || !ctrl.stops[0] {
		t.Fatalf("expected awaited stop, got %v", ctrl.stops)
	}

	m, cmd = step(t, m, key("s"))
	if cmd != nil || m.status != "Not reading" {
		t.Fatalf("stop without session should be a no-op, status=%q", m.status)
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(&fakeController{mock: true}, nil, "", time.Second)
	if m.editing {
		t.Fatal("mock mode needs no device id")
	}
	_, cmd := step(t, m, key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

func TestStrengthBarAndWindow(t *testing.T) {
	if got := strengthBar(tags.MaxStrength, 10); got != strings.Repeat("█", 10) {
		t.Fatalf("full bar: %q", got)
	}
	if got := strengthBar(tags.MinStrength, 10); got != strings.Repeat("░", 10) {
		t.Fatalf("empty bar: %q", got)
	}
	start, end := listWindow(9, 20, 5)
	if start != 7 || end != 12 {
		t.Fatalf("listWindow = %d,%d", start, end)
	}
	start, end = listWindow(19, 20, 5)
	if start != 15 || end != 20 {
		t.Fatalf("listWindow tail = %d,%d", start, end)
	}
}
