package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) fetchSourcesCmd() tea.Cmd {
	api := m.sourceAPI
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		sources, err := api.ListSources(ctx)
		return sourcesMsg{sources: sources, err: err}
	}
}

func (m *Model) createSessionCmd(prompt, source, branch string) tea.Cmd {
	channel := m.channel
	return func() tea.Msg {
		session, err := channel.CreateSession(context.Background(), prompt, source, branch)
		return sessionCreatedMsg{session: session, err: err}
	}
}

func (m *Model) sendMessageCmd(name, text string) tea.Cmd {
	channel := m.channel
	return func() tea.Msg {
		err := channel.SendMessage(context.Background(), name, text)
		return messageSentMsg{session: name, err: err}
	}
}

func (m *Model) approvePlanCmd(name string) tea.Cmd {
	channel := m.channel
	return func() tea.Msg {
		err := channel.ApprovePlan(context.Background(), name)
		return planApprovedMsg{session: name, err: err}
	}
}

func (m *Model) refreshSessionCmd(name string) tea.Cmd {
	channel := m.channel
	return func() tea.Msg {
		err := channel.Refresh(context.Background(), name)
		return sessionRefreshedMsg{session: name, err: err}
	}
}
