package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"circles_go/internal/hub"
)

// Run blocks until the user quits. The caller owns ctrl and closes it
// afterwards.
func Run(ctrl Controller, h *hub.Hub, device string, connectTimeout time.Duration) error {
	events := h.Subscribe(hub.DefaultBuffer)
	defer h.Unsubscribe(events)

	program := tea.NewProgram(NewModel(ctrl, events, device, connectTimeout), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
