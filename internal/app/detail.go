package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nurdwerks/jules-interface/internal/types"
	"github.com/nurdwerks/jules-interface/internal/view"
)

func (m *Model) renderMain() string {
	var b strings.Builder
	if m.selected == "" {
		b.WriteString(dimStyle.Render("Select a session to view its timeline."))
		return b.String()
	}

	session, ok := m.store.Session(m.selected)
	if !ok {
		b.WriteString(dimStyle.Render("Session is gone."))
		return b.String()
	}

	b.WriteString(headerStyle.Render(firstLine(session.Prompt, session.ShortID())))
	b.WriteString("\n")
	info := fmt.Sprintf("%s · %s · created %s",
		session.Name, sessionStateLabel(session), session.CreateTime.Local().Format("2006-01-02 15:04"))
	b.WriteString(dimStyle.Render(info))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if view.ApprovalVisible(m.store.Activities(m.selected)) {
		b.WriteString(affordanceStyle.Render("[a] Approve Plan"))
		b.WriteString("\n")
	}
	if m.mode == uiModeCompose {
		b.WriteString(m.compose.View())
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().Width(m.viewport.Width).Render(b.String())
}

// renderDetail rebuilds the viewport content for the selected timeline.
func (m *Model) renderDetail() {
	if m.selected == "" {
		m.viewport.SetContent("No session selected.")
		return
	}
	activities := m.store.Activities(m.selected)
	if len(activities) == 0 {
		m.viewport.SetContent(dimStyle.Render("No activities."))
		return
	}
	atBottom := m.viewport.AtBottom()
	var b strings.Builder
	for i, activity := range activities {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderActivity(activity))
	}
	m.viewport.SetContent(b.String())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderActivity(activity *types.Activity) string {
	stamp := dimStyle.Render(activity.CreateTime.Local().Format("15:04:05"))
	var body string
	switch {
	case activity.AgentMessaged != nil:
		body = headerStyle.Render("Agent") + "\n" +
			renderMarkdown(activity.AgentMessaged.AgentMessage, m.viewport.Width-2)
	case activity.UserMessaged != nil:
		label := "You"
		if activity.Local {
			label = "You (sending)"
		}
		body = headerStyle.Render(label) + "\n" + activity.UserMessaged.UserMessage
	case activity.PlanGenerated != nil:
		var steps strings.Builder
		steps.WriteString(headerStyle.Render("Plan Generated"))
		if activity.PlanGenerated.Plan != nil {
			for i, step := range activity.PlanGenerated.Plan.Steps {
				steps.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step.Title))
				if step.Description != "" {
					steps.WriteString(": " + step.Description)
				}
			}
		}
		body = steps.String()
	case activity.PlanApproved != nil:
		body = affordanceStyle.Render("Plan Approved")
	case activity.PlanRejected != nil:
		body = headerStyle.Render("Plan Rejected")
		if activity.PlanRejected.Reason != "" {
			body += "\n" + activity.PlanRejected.Reason
		}
	case activity.ProgressUpdated != nil:
		body = headerStyle.Render("Progress: "+activity.ProgressUpdated.Title) +
			"\n" + activity.ProgressUpdated.Description
	case activity.SessionCompleted != nil:
		body = headerStyle.Render("Session Completed")
	case activity.SessionFailed != nil:
		body = headerStyle.Render("Session Failed") + "\n" + activity.SessionFailed.Reason
	default:
		body = dimStyle.Render("unknown activity " + activity.Name)
	}
	return stamp + "\n" + body + "\n"
}

func firstLine(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
