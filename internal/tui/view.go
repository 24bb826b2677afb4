package tui

import (
	"fmt"
	"strings"

	"circles_go/internal/tags"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString("Circles Reader\n")
	b.WriteString(m.tabsLine())
	b.WriteString("\n")
	b.WriteString(m.metaLine())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	for _, line := range m.pageLines() {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString("Keys: ")
	b.WriteString(m.footerLine())
	return paintLayout(b.String())
}

func (m Model) pageLines() []string {
	switch m.activeScreen {
	case screenReader:
		return m.readerPageLines()
	case screenTags:
		return m.tagsPageLines()
	case screenLogs:
		return m.logsPageLines()
	case screenHelp:
		return m.helpPageLines()
	default:
		return []string{"Unknown page"}
	}
}

func (m Model) readerPageLines() []string {
	lines := []string{"[Reader]", ""}
	lines = append(lines, m.input.View())
	if m.editing {
		lines = append(lines, "Enter=connect and start  Esc=cancel")
	}
	lines = append(lines, "")

	if m.session == nil {
		state := "idle"
		switch {
		case m.starting:
			state = "connecting"
		case m.stopping:
			state = "stopping"
		}
		lines = append(lines, "Session: none ("+state+")")
	} else {
		lines = append(lines,
			"Session: "+m.session.ID.String(),
			"Device:  "+deviceLabel(m.session.Device),
			"Backend: "+string(m.session.Backend),
			"Started: "+formatShortTime(m.session.StartedAt),
		)
	}
	lines = append(lines, fmt.Sprintf("Snapshots: %d  Last: %s", m.snapshots, formatShortTime(m.lastSnapshot)))

	if n := len(m.errs); n > 0 {
		last := m.errs[n-1]
		lines = append(lines, "", fmt.Sprintf("[ERR] %s: %s", last.Kind, trimText(last.Message, 72)))
	}
	return lines
}

func (m Model) tagsPageLines() []string {
	lines := []string{fmt.Sprintf("[Tags %d]", len(m.tags))}
	if len(m.tags) == 0 {
		if m.session == nil {
			return append(lines, "", "Not reading. Press enter to start.")
		}
		return append(lines, "", "No tag in range")
	}

	lines = append(lines, "", fmt.Sprintf("%s %s %s  %s", padRight("ID", 26), padRight("ANT", 4), padRight("RSSI", 5), "STRENGTH"))
	start, end := listWindow(m.tagScroll, len(m.tags), m.tagViewSize())
	for _, t := range m.tags[start:end] {
		lines = append(lines, fmt.Sprintf("%s %s %s  %s",
			padRight(trimText(t.ID, 26), 26),
			padRight(fmt.Sprint(t.Antenna), 4),
			padRight(fmt.Sprint(t.Strength), 5),
			strengthBar(t.Strength, 20),
		))
	}
	if end-start < len(m.tags) {
		lines = append(lines, "", fmt.Sprintf("Showing %d-%d of %d", start+1, end, len(m.tags)))
	}
	return lines
}

func (m Model) logsPageLines() []string {
	lines := []string{"[Logs]"}
	if len(m.logs) == 0 {
		return append(lines, "No logs yet")
	}

	visible := m.visibleLogs(m.logViewSize())
	lines = append(lines, "")
	lines = append(lines, visible...)
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Total:%d  Errors:%d  Scroll:%d", len(m.logs), len(m.errs), m.logScroll))
	return lines
}

func (m Model) helpPageLines() []string {
	return []string{
		"[Help]",
		"",
		"Recommended flow:",
		"1) Reader -> e, type the 12 character device id",
		"2) Enter connects, configures and starts reading",
		"3) Tags page shows the strongest reading per tag",
		"4) s stops, S stops and waits for the reader to confirm",
		"",
		fmt.Sprintf("Strength range: %d..%d dBm, antennas %d..%d", tags.MinStrength, tags.MaxStrength, tags.MinAntenna, tags.MaxAntenna),
		"Global keys: q quit, tab/1-4 switch page",
		"Move keys: j/k or up/down",
	}
}

func (m Model) tabsLine() string {
	parts := make([]string, 0, len(screens))
	for _, tab := range screens {
		if tab.screen == m.activeScreen {
			parts = append(parts, "▣ "+strings.ToUpper(tab.name))
		} else {
			parts = append(parts, "□ "+strings.ToUpper(tab.name))
		}
	}
	return strings.Join(parts, "   ")
}

func (m Model) metaLine() string {
	connection := "OFFLINE"
	if m.session != nil {
		connection = "ONLINE"
	}
	backend := "llrp"
	if m.ctrl.Mock() {
		backend = "mock"
	}
	return fmt.Sprintf("Reader %s | Backend %s | Tags %d | Errors %d", connection, backend, len(m.tags), len(m.errs))
}

func (m Model) footerLine() string {
	if m.editing {
		return "[Enter] Start  [Esc] Cancel  [ctrl+c] Exit"
	}

	switch m.activeScreen {
	case screenReader:
		return "[e] Edit device  [Enter] Start  [s/S] Stop  [q] Exit"
	case screenTags:
		return "[Up/Down] Scroll  [s/S] Stop  [tab] Next  [q] Exit"
	case screenLogs:
		return "[Up/Down] Scroll  [c] Clear  [tab] Next  [q] Exit"
	default:
		return "[tab] Next  [q] Exit"
	}
}

func (m Model) statusLine() string {
	return statusTag(m.status) + " " + m.status
}
