// Package chattui is the interactive terminal UI: an inbox of
// conversations and a live thread view with a composer.
package chattui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/channel"
	"github.com/parleyhq/parley/internal/chat/thread"
	"github.com/parleyhq/parley/internal/chattui/styles"
	"github.com/parleyhq/parley/internal/store"
)

type ViewID string

const (
	ViewInbox        ViewID = "inbox"
	ViewThread       ViewID = "thread"
	ViewParticipants ViewID = "participants"
)

// Config wires the TUI to its backends.
type Config struct {
	Client     *api.Client
	Subscriber channel.Subscriber
	Store      *store.Store // optional, nil disables the local cache
	ViewerID   int64
	Theme      string
	PageSize   int

	// ShowTimestamps renders a timestamp on every message row instead
	// of only on group heads.
	ShowTimestamps bool
}

type Model struct {
	cfg        Config
	theme      styles.Theme
	controller *thread.Controller

	width  int
	height int

	viewStack []ViewID
	views     map[ViewID]viewModel
}

type viewModel interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width, height int, theme styles.Theme) string
}

type pushViewMsg struct {
	id ViewID
}

type popViewMsg struct{}

type openConversationMsg struct {
	id int64
}

func pushViewCmd(id ViewID) tea.Cmd {
	return func() tea.Msg {
		return pushViewMsg{id: id}
	}
}

func popViewCmd() tea.Cmd {
	return func() tea.Msg {
		return popViewMsg{}
	}
}

func openConversationCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		return openConversationMsg{id: id}
	}
}

// NewModel builds the root model and its views.
func NewModel(cfg Config) *Model {
	controller := thread.New(thread.Config{
		API:        cfg.Client,
		Subscriber: cfg.Subscriber,
		ViewerID:   cfg.ViewerID,
		PageSize:   cfg.PageSize,
	})

	m := &Model{
		cfg:        cfg,
		theme:      styles.ForName(cfg.Theme),
		controller: controller,
		viewStack:  []ViewID{ViewInbox},
		views:      make(map[ViewID]viewModel),
	}

	threadView := newThreadView(controller, cfg.Store, cfg.ViewerID, cfg.ShowTimestamps)
	m.views[ViewInbox] = newInboxView(cfg.Client, cfg.Store, cfg.ViewerID)
	m.views[ViewThread] = threadView
	m.views[ViewParticipants] = newParticipantsView(controller, cfg.ViewerID)
	return m
}

// Run starts the program and blocks until it exits.
func Run(cfg Config) error {
	model := NewModel(cfg)
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m *Model) Close() {
	m.controller.Close()
	for _, view := range m.views {
		if closer, ok := view.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

func (m *Model) Init() tea.Cmd {
	if view := m.activeView(); view != nil {
		return view.Init()
	}
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil
	case openConversationMsg:
		m.controller.Open(context.Background(), typed.id)
		m.pushView(ViewThread)
		if view := m.activeView(); view != nil {
			return m, view.Init()
		}
		return m, nil
	case pushViewMsg:
		m.pushView(typed.id)
		if view := m.activeView(); view != nil {
			return m, view.Init()
		}
		return m, nil
	case popViewMsg:
		m.popView()
		if view := m.activeView(); view != nil {
			return m, view.Init()
		}
		return m, nil
	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(typed); handled {
			return m, cmd
		}
	}

	// Background messages reach every view so inactive ones stay fresh.
	var cmds []tea.Cmd
	active := m.activeView()
	for _, view := range m.views {
		if view == active {
			continue
		}
		if _, isKey := msg.(tea.KeyMsg); isKey {
			continue
		}
		if cmd := view.Update(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	if active != nil {
		if cmd := active.Update(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	active := m.activeView()
	if active == nil {
		return "no active view"
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 0 {
		contentHeight = 0
	}
	body := active.View(m.width, contentHeight, m.theme)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit, true
	case "esc":
		if len(m.viewStack) > 1 {
			m.popView()
			if view := m.activeView(); view != nil {
				return view.Init(), true
			}
			return nil, true
		}
	}
	return nil, false
}

func (m *Model) activeView() viewModel {
	return m.views[m.activeViewID()]
}

func (m *Model) activeViewID() ViewID {
	if len(m.viewStack) == 0 {
		return ViewInbox
	}
	return m.viewStack[len(m.viewStack)-1]
}

func (m *Model) pushView(id ViewID) {
	if id == "" {
		return
	}
	if _, ok := m.views[id]; !ok {
		return
	}
	if m.activeViewID() == id {
		return
	}
	m.viewStack = append(m.viewStack, id)
}

func (m *Model) popView() {
	if len(m.viewStack) <= 1 {
		return
	}
	leaving := m.activeViewID()
	m.viewStack = m.viewStack[:len(m.viewStack)-1]

	// Leaving the thread tears down its subscription and typing state.
	if leaving == ViewThread {
		m.controller.Close()
	}
}

func (m *Model) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Chrome.Header)).Render("parley")
	crumb := m.theme.MutedStyle().Render(" › " + string(m.activeViewID()))
	return title + crumb
}

func (m *Model) renderFooter() string {
	hints := map[ViewID]string{
		ViewInbox:        "enter open  / search  a archives  r refresh  q quit",
		ViewThread:       "enter send  alt+enter newline  ctrl+o attach  ctrl+p people  ctrl+a archive  esc back",
		ViewParticipants: "esc back",
	}
	return m.theme.MutedStyle().Render(hints[m.activeViewID()])
}

// tickCmd drives time-based redraws (typing expiry, relative times).
func tickCmd(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return msg
	})
}
