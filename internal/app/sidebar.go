package app

import (
	"fmt"
	"strings"
	"time"

	runewidth "github.com/mattn/go-runewidth"

	"github.com/nurdwerks/jules-interface/internal/types"
	"github.com/nurdwerks/jules-interface/internal/view"
)

func (m *Model) renderSidebar() string {
	width := m.listWidth()
	var b strings.Builder

	b.WriteString(headerStyle.Render("Sessions"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.filterSummary()))
	b.WriteString("\n\n")

	if len(m.visible) == 0 {
		b.WriteString(dimStyle.Render("no sessions"))
	}
	for i, session := range m.visible {
		line := m.sidebarRow(session, width-2)
		if i == m.cursor {
			line = activeItemStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
		meta := fmt.Sprintf("  %s · %s", sessionStateLabel(session), relativeTime(session.UpdateTime, m.now()))
		b.WriteString(stateStyle.Render(runewidth.Truncate(meta, width, "…")))
		b.WriteString("\n")
	}
	return sidebarStyle.Width(width).Render(b.String())
}

func (m *Model) sidebarRow(session *types.Session, width int) string {
	title := session.Prompt
	if title == "" {
		title = session.ShortID()
	}
	title = strings.ReplaceAll(title, "\n", " ")
	if session.Pending {
		title = "(pending) " + title
	}
	return runewidth.Truncate(title, width, "…")
}

func (m *Model) filterSummary() string {
	parts := []string{}
	if m.filter.RecentOnly {
		parts = append(parts, "recent <24h")
	} else {
		parts = append(parts, "all time")
	}
	if m.filter.Source == "" || m.filter.Source == view.SourceAll {
		parts = append(parts, "all sources")
	} else {
		parts = append(parts, shortSourceLabel(m.filter.Source))
	}
	return strings.Join(parts, " · ")
}

// Unrecognized states render as-is.
func sessionStateLabel(session *types.Session) string {
	if session.State == "" {
		return "UNKNOWN"
	}
	return string(session.State)
}

func shortSourceLabel(source string) string {
	if idx := strings.Index(source, "/"); idx >= 0 {
		return source[idx+1:]
	}
	return source
}

func relativeTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
