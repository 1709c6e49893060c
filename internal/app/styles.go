package app

import "github.com/charmbracelet/lipgloss"

var (
	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			PaddingRight(1)

	headerStyle = lipgloss.NewStyle().Bold(true)

	activeItemStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	dimStyle = lipgloss.NewStyle().Faint(true)

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	affordanceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("114"))

	statusStyle = lipgloss.NewStyle().Faint(true)
)
