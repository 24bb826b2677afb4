package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"circles_go/internal/hub"
	"circles_go/internal/reader"
)

// NewModel builds the UI around ctrl. events is a hub subscription; device
// pre-fills the device id input.
func NewModel(ctrl Controller, events <-chan hub.Event, device string, connectTimeout time.Duration) Model {
	in := textinput.New()
	in.Prompt = "DEVICE> "
	in.Placeholder = "fx9600749620"
	in.CharLimit = reader.DeviceIDLen
	in.Width = 24
	in.SetValue(strings.TrimSpace(device))

	if connectTimeout <= 0 {
		connectTimeout = 15 * time.Second
	}

	m := Model{
		ctrl:           ctrl,
		events:         events,
		connectTimeout: connectTimeout,
		activeScreen:   screenReader,
		input:          in,
		status:         "Idle",
	}
	if ctrl.Mock() {
		m.pushLog("mock reader enabled")
	}
	if in.Value() == "" && !ctrl.Mock() {
		m.editing = true
		m.input.Focus()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitEventCmd(m.events)}
	if m.editing {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}
