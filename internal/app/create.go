package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nurdwerks/jules-interface/internal/types"
)

type createField int

const (
	createFieldPrompt createField = iota
	createFieldSource
	createFieldBranch
)

// CreateController is the new-session form: prompt, source picker and
// starting branch.
type CreateController struct {
	prompt    textinput.Model
	branch    textinput.Model
	sources   []*types.Source
	sourceIdx int
	focus     createField
}

func NewCreateController() *CreateController {
	prompt := textinput.New()
	prompt.Placeholder = "what should the agent do?"
	prompt.CharLimit = 0

	branch := textinput.New()
	branch.Placeholder = "starting branch (optional)"

	return &CreateController{prompt: prompt, branch: branch}
}

func (c *CreateController) Reset(sources []*types.Source) {
	c.sources = sources
	c.sourceIdx = 0
	c.focus = createFieldPrompt
	c.prompt.SetValue("")
	c.branch.SetValue("")
	c.branch.Blur()
}

func (c *CreateController) Focus() tea.Cmd {
	return c.prompt.Focus()
}

func (c *CreateController) Update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "shift+tab":
		return c.cycleFocus(msg.String() == "tab")
	case "left", "right":
		if c.focus == createFieldSource && len(c.sources) > 0 {
			delta := 1
			if msg.String() == "left" {
				delta = -1
			}
			c.sourceIdx = (c.sourceIdx + delta + len(c.sources)) % len(c.sources)
			return nil
		}
	}
	var cmd tea.Cmd
	switch c.focus {
	case createFieldPrompt:
		c.prompt, cmd = c.prompt.Update(msg)
	case createFieldBranch:
		c.branch, cmd = c.branch.Update(msg)
	}
	return cmd
}

func (c *CreateController) cycleFocus(forward bool) tea.Cmd {
	c.prompt.Blur()
	c.branch.Blur()
	order := []createField{createFieldPrompt, createFieldSource, createFieldBranch}
	for i, field := range order {
		if field != c.focus {
			continue
		}
		if forward {
			c.focus = order[(i+1)%len(order)]
		} else {
			c.focus = order[(i+len(order)-1)%len(order)]
		}
		break
	}
	switch c.focus {
	case createFieldPrompt:
		return c.prompt.Focus()
	case createFieldBranch:
		return c.branch.Focus()
	}
	return nil
}

// Submit returns the form values when they are complete.
func (c *CreateController) Submit() (prompt, source, branch string, ok bool) {
	prompt = strings.TrimSpace(c.prompt.Value())
	if prompt == "" {
		return "", "", "", false
	}
	if len(c.sources) > 0 {
		source = c.sources[c.sourceIdx].Name
	}
	return prompt, source, strings.TrimSpace(c.branch.Value()), true
}

func (c *CreateController) View(width, height int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("New Session"))
	b.WriteString("\n\n")
	b.WriteString("Prompt\n")
	b.WriteString(c.prompt.View())
	b.WriteString("\n\nSource\n")
	b.WriteString(c.sourceLine())
	b.WriteString("\n\nBranch\n")
	b.WriteString(c.branch.View())
	b.WriteString("\n\n")
	b.WriteString(statusStyle.Render("tab next field · left/right pick source · enter create · esc cancel"))
	return lipgloss.NewStyle().Width(width).Height(height).Padding(1, 2).Render(b.String())
}

func (c *CreateController) sourceLine() string {
	if len(c.sources) == 0 {
		return dimStyle.Render("no sources available")
	}
	label := c.sources[c.sourceIdx].Label()
	line := fmt.Sprintf("< %s > (%d/%d)", label, c.sourceIdx+1, len(c.sources))
	if c.focus == createFieldSource {
		return activeItemStyle.Render(line)
	}
	return line
}
