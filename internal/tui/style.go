package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("0")).
			Bold(true)

	tabsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Bold(true)

	metaOnlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("120"))

	metaOfflineStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("0")).
			Bold(true)

	statusOKStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("120")).
			Bold(true)

	statusWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("221")).
			Bold(true)

	statusErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	statusInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Bold(true)

	strengthStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117"))

	keysStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Bold(true)
)

func paintLayout(layout string) string {
	if layout == "" {
		return layout
	}

	lines := strings.Split(layout, "\n")
	for i, line := range lines {
		switch {
		case i == 0 && strings.Contains(line, "Circles Reader"):
			lines[i] = headerStyle.Render(line)
		case strings.Contains(line, "▣ ") || strings.Contains(line, "□ "):
			lines[i] = tabsStyle.Render(line)
		case strings.HasPrefix(line, "Reader ONLINE"):
			lines[i] = metaOnlineStyle.Render(line)
		case strings.HasPrefix(line, "Reader OFFLINE"):
			lines[i] = metaOfflineStyle.Render(line)
		case strings.HasPrefix(line, "[OK]"):
			lines[i] = statusOKStyle.Render(line)
		case strings.HasPrefix(line, "[WARN]"):
			lines[i] = statusWarnStyle.Render(line)
		case strings.HasPrefix(line, "[ERR]"):
			lines[i] = statusErrStyle.Render(line)
		case strings.HasPrefix(line, "[INFO ]"):
			lines[i] = statusInfoStyle.Render(line)
		case strings.Contains(line, "█") || strings.Contains(line, "░"):
			lines[i] = strengthStyle.Render(line)
		case strings.Contains(line, "Recommended flow"):
			lines[i] = sectionStyle.Render(line)
		case isPanelTitleLine(line):
			lines[i] = panelTitleStyle.Render(line)
		case strings.HasPrefix(line, "Keys:"):
			lines[i] = keysStyle.Render(line)
		}
	}

	return strings.Join(lines, "\n")
}

func isPanelTitleLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return false
	}
	switch trimmed {
	case "[OK]", "[WARN]", "[ERR]", "[INFO ]":
		return false
	}
	return !strings.Contains(trimmed, " ") || strings.HasPrefix(trimmed, "[Tags ")
}
