// Package app is the terminal UI: a sidebar session list driven by the
// filter engine and a detail pane with the selected session's timeline
// and plan-approval affordance.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nurdwerks/jules-interface/internal/store"
	"github.com/nurdwerks/jules-interface/internal/types"
	"github.com/nurdwerks/jules-interface/internal/view"
)

const (
	tickInterval     = 100 * time.Millisecond
	minListWidth     = 24
	maxListWidth     = 44
	minContentHeight = 6
)

type uiMode int

const (
	uiModeList uiMode = iota
	uiModeCompose
	uiModeCreate
)

// Commander is the slice of the sync channel the UI issues commands on.
type Commander interface {
	CreateSession(ctx context.Context, prompt, source, branch string) (*types.Session, error)
	SendMessage(ctx context.Context, name, text string) error
	ApprovePlan(ctx context.Context, name string) error
	Refresh(ctx context.Context, name string) error
	LoadTimeline(ctx context.Context, name string) error
}

type SourceAPI interface {
	ListSources(ctx context.Context) ([]*types.Source, error)
}

type Model struct {
	channel   Commander
	sourceAPI SourceAPI
	store     *store.Store
	engine    *view.Engine
	filter    view.FilterState

	sources []*types.Source
	visible []*types.Session

	selected    string
	cursor      int
	seenVersion uint64
	detailDirty bool

	viewport viewport.Model
	compose  textinput.Model
	create   *CreateController
	loader   spinner.Model

	mode   uiMode
	busy   bool
	status string
	width  int
	height int

	now func() time.Time
}

func NewModel(channel Commander, sourceAPI SourceAPI, st *store.Store, filter view.FilterState) Model {
	vp := viewport.New(minListWidth, minContentHeight)
	vp.SetContent("No session selected.")

	compose := textinput.New()
	compose.Placeholder = "message the agent"
	compose.CharLimit = 0

	loader := spinner.New()
	loader.Spinner = spinner.Line

	return Model{
		channel:     channel,
		sourceAPI:   sourceAPI,
		store:       st,
		engine:      view.NewEngine(),
		filter:      filter,
		viewport:    vp,
		compose:     compose,
		create:      NewCreateController(),
		loader:      loader,
		mode:        uiModeList,
		detailDirty: true,
		now:         time.Now,
	}
}

func Run(channel Commander, sourceAPI SourceAPI, st *store.Store, filter view.FilterState) error {
	model := NewModel(channel, sourceAPI, st, filter)
	p := tea.NewProgram(&model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchSourcesCmd(), tickCmd(), m.loader.Tick)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tickMsg:
		m.syncFromStore()
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd
	case sourcesMsg:
		if msg.err != nil {
			m.status = "sources error: " + msg.err.Error()
			return m, nil
		}
		m.sources = msg.sources
		return m, nil
	case sessionCreatedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.selectSession(msg.session.Name)
		m.status = "session created: " + msg.session.ShortID()
		return m, nil
	case messageSentMsg:
		m.busy = false
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = "message sent"
		return m, nil
	case planApprovedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = "plan approved"
		return m, nil
	case sessionRefreshedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = "session refreshed"
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case uiModeCompose:
		return m.handleComposeKey(msg)
	case uiModeCreate:
		return m.handleCreateKey(msg)
	}
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "enter":
		if item := m.cursorItem(); item != nil {
			m.selectSession(item.Name)
			return m, m.loadTimelineCmd(item.Name)
		}
	case "r":
		m.filter.RecentOnly = !m.filter.RecentOnly
		m.invalidateList()
	case "s":
		m.cycleSourceFilter()
		m.invalidateList()
	case "n":
		m.mode = uiModeCreate
		m.create.Reset(m.sources)
		return m, m.create.Focus()
	case "m":
		if m.selected != "" {
			m.mode = uiModeCompose
			m.compose.SetValue("")
			return m, m.compose.Focus()
		}
	case "a":
		if m.selected != "" && view.ApprovalVisible(m.store.Activities(m.selected)) {
			m.busy = true
			m.status = "approving plan..."
			return m, tea.Batch(m.approvePlanCmd(m.selected), m.loader.Tick)
		}
	case "R":
		if m.selected != "" {
			m.busy = true
			m.status = "refreshing..."
			return m, tea.Batch(m.refreshSessionCmd(m.selected), m.loader.Tick)
		}
	case "c":
		if m.selected != "" {
			m.copyWithStatus(m.selected, "session name copied")
		}
	case "pgup":
		m.viewport.HalfViewUp()
	case "pgdown":
		m.viewport.HalfViewDown()
	}
	return m, nil
}

func (m *Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = uiModeList
		m.compose.Blur()
		return m, nil
	case "enter":
		text := m.compose.Value()
		if text == "" {
			return m, nil
		}
		m.mode = uiModeList
		m.compose.Blur()
		m.busy = true
		m.status = "sending..."
		return m, tea.Batch(m.sendMessageCmd(m.selected, text), m.loader.Tick)
	}
	var cmd tea.Cmd
	m.compose, cmd = m.compose.Update(msg)
	return m, cmd
}

func (m *Model) handleCreateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = uiModeList
		return m, nil
	case "enter":
		if prompt, source, branch, ok := m.create.Submit(); ok {
			m.mode = uiModeList
			m.busy = true
			m.status = "creating session..."
			return m, tea.Batch(m.createSessionCmd(prompt, source, branch), m.loader.Tick)
		}
		return m, nil
	}
	cmd := m.create.Update(msg)
	return m, cmd
}

// syncFromStore recomputes the sidebar from the filter engine when the
// store moved, and rebuilds the detail pane for the selected session.
func (m *Model) syncFromStore() {
	version := m.store.Version()
	if version == m.seenVersion && !m.detailDirty {
		return
	}
	changed := version != m.seenVersion
	m.seenVersion = version
	m.visible = m.engine.View(m.store.Sessions(), version, m.filter, m.now())
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if changed || m.detailDirty {
		m.renderDetail()
		m.detailDirty = false
	}
}

func (m *Model) invalidateList() {
	m.engine.Invalidate()
	// Force a recompute on the next tick even though the store is quiet.
	m.visible = m.engine.View(m.store.Sessions(), m.store.Version(), m.filter, m.now())
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) moveCursor(delta int) {
	next := m.cursor + delta
	if next < 0 || next >= len(m.visible) {
		return
	}
	m.cursor = next
}

func (m *Model) cursorItem() *types.Session {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return nil
	}
	return m.visible[m.cursor]
}

func (m *Model) selectSession(name string) {
	m.selected = name
	m.detailDirty = true
	m.syncFromStore()
}

// cycleSourceFilter steps all -> each known source -> all. Sources come
// from the backend listing, falling back to those seen on sessions.
func (m *Model) cycleSourceFilter() {
	candidates := m.sourceCandidates()
	if len(candidates) == 0 {
		m.filter.Source = view.SourceAll
		return
	}
	current := -1
	for i, candidate := range candidates {
		if candidate == m.filter.Source {
			current = i
			break
		}
	}
	if current < 0 || current == len(candidates)-1 {
		m.filter.Source = view.SourceAll
		return
	}
	m.filter.Source = candidates[current+1]
}

func (m *Model) sourceCandidates() []string {
	seen := map[string]bool{view.SourceAll: true}
	out := []string{view.SourceAll}
	for _, source := range m.sources {
		if source != nil && source.Name != "" && !seen[source.Name] {
			seen[source.Name] = true
			out = append(out, source.Name)
		}
	}
	for _, session := range m.store.Sessions() {
		if session.SourceContext == nil {
			continue
		}
		name := session.SourceContext.Source
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func (m *Model) loadTimelineCmd(name string) tea.Cmd {
	channel := m.channel
	return func() tea.Msg {
		err := channel.LoadTimeline(context.Background(), name)
		return sessionRefreshedMsg{session: name, err: err}
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	listWidth := m.listWidth()
	contentWidth := width - listWidth - 3
	if contentWidth < minListWidth {
		contentWidth = minListWidth
	}
	contentHeight := height - 4
	if contentHeight < minContentHeight {
		contentHeight = minContentHeight
	}
	m.viewport.Width = contentWidth
	m.viewport.Height = contentHeight
	m.compose.Width = contentWidth - 2
	m.detailDirty = true
}

func (m *Model) listWidth() int {
	width := m.width / 3
	if width < minListWidth {
		width = minListWidth
	}
	if width > maxListWidth {
		width = maxListWidth
	}
	return width
}

func (m *Model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	if m.mode == uiModeCreate {
		return m.create.View(m.width, m.height)
	}
	sidebar := m.renderSidebar()
	main := m.renderMain()
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", main)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatusLine())
}

func (m *Model) renderStatusLine() string {
	status := m.status
	if m.busy {
		status = m.loader.View() + " " + status
	}
	hotkeys := "q quit · j/k move · enter open · r recent · s source · n new · m message · a approve · R refresh · c copy"
	if m.mode == uiModeCompose {
		hotkeys = "enter send · esc cancel"
	}
	if status == "" {
		return statusStyle.Render(hotkeys)
	}
	return statusStyle.Render(fmt.Sprintf("%s · %s", status, hotkeys))
}
