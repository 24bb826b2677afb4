package tui

import (
	"strings"
	"time"

	"circles_go/internal/tags"
)

func statusTag(status string) string {
	text := strings.ToLower(status)
	switch {
	case strings.Contains(text, "failed"),
		strings.Contains(text, "error"),
		strings.Contains(text, "lost"):
		return "[ERR]"
	case strings.Contains(text, "not reading"),
		strings.Contains(text, "busy"),
		strings.Contains(text, "idle"),
		strings.Contains(text, "first"):
		return "[WARN]"
	case strings.Contains(text, "started"),
		strings.Contains(text, "stopped"):
		return "[OK]"
	default:
		return "[INFO ]"
	}
}

// strengthBar maps a strength in [MinStrength, MaxStrength] onto width cells.
func strengthBar(strength int8, width int) string {
	span := int(tags.MaxStrength) - int(tags.MinStrength)
	filled := (int(strength) - int(tags.MinStrength)) * width / span
	filled = clampInt(filled, 0, width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatShortTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("15:04:05")
}

func trimText(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	if limit <= 1 {
		return string(r[:limit])
	}
	return string(r[:limit-1]) + "…"
}

func runeLen(s string) int {
	return len([]rune(s))
}

func padRight(s string, width int) string {
	n := runeLen(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// listWindow returns the [start,end) slice of a list of total items that
// keeps cursor visible in size rows.
func listWindow(cursor, total, size int) (int, int) {
	if total <= 0 || size <= 0 {
		return 0, 0
	}
	if total <= size {
		return 0, total
	}
	start := cursor - size/2
	start = clampInt(start, 0, total-size)
	return start, start + size
}
