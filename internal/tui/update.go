package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"circles_go/internal/hub"
	"circles_go/sdk"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateInput(msg)
		}
		return m.updateKey(msg)

	case startFinishedMsg:
		return m.onStartFinished(msg)

	case stopFinishedMsg:
		return m.onStopFinished(msg)

	case hubEventMsg:
		m.onHubEvent(msg.Event)
		return m, waitEventCmd(m.events)

	case hubClosedMsg:
		return m, nil
	}

	if m.editing {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.editing = false
		m.input.Blur()
		m.status = "Edit cancelled"
		return m, nil
	case "enter":
		m.editing = false
		m.input.Blur()
		return m.startReading()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab", "right", "l":
		m.activeScreen = screen((int(m.activeScreen) + 1) % len(screens))
		return m, nil
	case "shift+tab", "left", "h":
		m.activeScreen = screen((int(m.activeScreen) + len(screens) - 1) % len(screens))
		return m, nil
	case "1", "2", "3", "4":
		m.activeScreen = screen(int(msg.String()[0] - '1'))
		return m, nil
	case "enter":
		return m.startReading()
	case "e", "i":
		m.activeScreen = screenReader
		m.editing = true
		return m, m.input.Focus()
	case "s":
		return m.stopReading(false)
	case "S":
		return m.stopReading(true)
	case "c":
		if m.activeScreen == screenLogs {
			m.logs = nil
			m.errs = nil
			m.logScroll = 0
			m.status = "Logs cleared"
		}
		return m, nil
	case "up", "k":
		m.scroll(1)
		return m, nil
	case "down", "j":
		m.scroll(-1)
		return m, nil
	}
	return m, nil
}

func (m *Model) scroll(delta int) {
	switch m.activeScreen {
	case screenLogs:
		m.logScroll = clampInt(m.logScroll+delta, 0, maxInt(0, len(m.logs)-1))
	case screenTags:
		m.tagScroll = clampInt(m.tagScroll-delta, 0, maxInt(0, len(m.tags)-1))
	}
}

func (m Model) startReading() (tea.Model, tea.Cmd) {
	if m.starting || m.stopping {
		m.status = "Busy, wait for the current action"
		return m, nil
	}
	device := strings.TrimSpace(m.input.Value())
	if device == "" && !m.ctrl.Mock() {
		m.editing = true
		m.status = "Enter a device id first"
		return m, m.input.Focus()
	}
	m.starting = true
	m.session = nil
	m.tags = nil
	m.snapshots = 0
	m.lastSnapshot = time.Time{}
	m.tagScroll = 0
	m.status = "Connecting to " + deviceLabel(device)
	m.pushLog("start reading: " + deviceLabel(device))
	return m, startCmd(m.ctrl, device, m.connectTimeout)
}

func (m Model) stopReading(await bool) (tea.Model, tea.Cmd) {
	if m.session == nil || m.stopping {
		m.status = "Not reading"
		return m, nil
	}
	m.stopping = true
	if await {
		m.status = "Stopping, waiting for reader confirmation"
	} else {
		m.status = "Stopping"
	}
	return m, stopCmd(m.ctrl, await)
}

func (m Model) onStartFinished(msg startFinishedMsg) (tea.Model, tea.Cmd) {
	m.starting = false
	if msg.Err != nil {
		re := sdk.AsReaderError(msg.Err)
		m.session = nil
		m.status = "Start failed: " + re.Error()
		m.pushLog(fmt.Sprintf("start error (%s): %s", re.KindString(), re.Error()))
		return m, nil
	}
	m.session = msg.Session
	m.activeScreen = screenTags
	m.status = fmt.Sprintf("Reading started on %s (%s)", deviceLabel(msg.Device), msg.Session.Backend)
	m.pushLog("session " + msg.Session.ID.String() + " started")
	return m, nil
}

func (m Model) onStopFinished(msg stopFinishedMsg) (tea.Model, tea.Cmd) {
	m.stopping = false
	m.session = nil
	if msg.Err != nil {
		re := sdk.AsReaderError(msg.Err)
		m.status = "Stop failed: " + re.Error()
		m.pushLog("stop error: " + re.Error())
		return m, nil
	}
	if msg.Await {
		m.status = "Reading stopped, confirmed by reader"
	} else {
		m.status = "Reading stopped"
	}
	m.pushLog(strings.ToLower(m.status))
	return m, nil
}

func (m *Model) onHubEvent(ev hub.Event) {
	if ev.Snapshot != nil {
		if !m.sameSession(ev.Snapshot.SessionID) {
			return
		}
		m.tags = ev.Snapshot.Tags.Sorted()
		m.lastSnapshot = ev.Snapshot.When
		m.snapshots++
		m.tagScroll = clampInt(m.tagScroll, 0, maxInt(0, len(m.tags)-1))
		return
	}
	if ev.Error != nil {
		if !m.sameSession(ev.Error.SessionID) {
			return
		}
		m.errs = append(m.errs, *ev.Error)
		if len(m.errs) > maxErrors {
			m.errs = m.errs[len(m.errs)-maxErrors:]
		}
		m.pushLog(fmt.Sprintf("reader error (%s): %s", ev.Error.Kind, ev.Error.Message))
		if ev.Error.Kind == sdk.KindLostConnection.String() {
			m.status = "Connection lost, press enter to reconnect"
			m.session = nil
		}
	}
}

// sameSession drops events from sessions the UI no longer tracks. While a
// start is in flight the new session id is not known yet.
func (m Model) sameSession(id string) bool {
	if m.session == nil {
		return m.starting
	}
	return id == "" || id == m.session.ID.String()
}

func (m *Model) pushLog(line string) {
	stamp := time.Now().Format("15:04:05")
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s", stamp, line))
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func startCmd(ctrl Controller, device string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		session, err := ctrl.StartReading(ctx, device)
		return startFinishedMsg{Device: device, Session: session, Err: err}
	}
}

func stopCmd(ctrl Controller, await bool) tea.Cmd {
	return func() tea.Msg {
		return stopFinishedMsg{Await: await, Err: ctrl.StopReading(await)}
	}
}

func waitEventCmd(ch <-chan hub.Event) tea.Cmd {
	return func() tea.Msg {
		if ch == nil {
			return hubClosedMsg{}
		}
		ev, ok := <-ch
		if !ok {
			return hubClosedMsg{}
		}
		return hubEventMsg{Event: ev}
	}
}

func deviceLabel(device string) string {
	if device == "" {
		return "mock reader"
	}
	return device
}

func clampInt(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
