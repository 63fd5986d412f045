package chattui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/chattui/styles"
	"github.com/parleyhq/parley/internal/store"
)

const (
	inboxPollInterval   = 15 * time.Second
	searchDebounceDelay = 300 * time.Millisecond
)

type inboxAPI interface {
	ListConversations(ctx context.Context, search string) ([]chat.Conversation, error)
}

type inboxLoadedMsg struct {
	seq           int
	conversations []chat.Conversation
	fromCache     bool
	err           error
}

type inboxPollMsg struct{}

type searchDebounceMsg struct {
	seq int
}

type inboxView struct {
	client   inboxAPI
	cache    *store.Store
	viewerID int64
	colors   *styles.UserColorMapper

	conversations []chat.Conversation
	lastErr       error
	fromCache     bool
	serverSeen    bool
	loading       bool

	searchActive bool
	query        string
	// seq stamps both searches and loads so stale results are dropped.
	seq int

	showArchived bool

	selected int
	top      int

	lastHeight  int
	initialized bool
}

func newInboxView(client inboxAPI, cache *store.Store, viewerID int64) *inboxView {
	return &inboxView{
		client:   client,
		cache:    cache,
		viewerID: viewerID,
		colors:   styles.NewUserColorMapper(nil),
	}
}

func (v *inboxView) Init() tea.Cmd {
	if v.initialized {
		return nil
	}
	v.initialized = true
	v.loading = true

	cmds := []tea.Cmd{v.loadCmd(), tickCmd(inboxPollInterval, inboxPollMsg{})}
	if v.cache != nil {
		cmds = append([]tea.Cmd{v.loadCachedCmd()}, cmds...)
	}
	return tea.Batch(cmds...)
}

// loadCachedCmd serves the cached list immediately so the inbox is not
// blank while the network fetch runs.
func (v *inboxView) loadCachedCmd() tea.Cmd {
	seq := v.seq
	cache := v.cache
	return func() tea.Msg {
		conversations, err := cache.ListConversations(context.Background(), true)
		if err != nil {
			return nil
		}
		return inboxLoadedMsg{seq: seq, conversations: conversations, fromCache: true}
	}
}

func (v *inboxView) loadCmd() tea.Cmd {
	seq := v.seq
	query := v.query
	client := v.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		conversations, err := client.ListConversations(ctx, query)
		return inboxLoadedMsg{seq: seq, conversations: conversations, err: err}
	}
}

func (v *inboxView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case inboxLoadedMsg:
		v.applyLoaded(typed)
		return nil
	case inboxPollMsg:
		return tea.Batch(v.loadCmd(), tickCmd(inboxPollInterval, inboxPollMsg{}))
	case searchDebounceMsg:
		// Only the newest pending debounce fires a fetch.
		if typed.seq != v.seq {
			return nil
		}
		v.loading = true
		return v.loadCmd()
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *inboxView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.searchActive {
		return v.handleSearchKey(msg)
	}

	switch msg.String() {
	case "q":
		return tea.Quit
	case "j", "down":
		v.moveSelection(1)
	case "k", "up":
		v.moveSelection(-1)
	case "g":
		v.selected = 0
		v.top = 0
	case "G":
		v.selected = maxInt(0, len(v.visible())-1)
		v.ensureVisible()
	case "/":
		v.searchActive = true
	case "a":
		v.showArchived = !v.showArchived
		v.selected = 0
		v.top = 0
	case "r":
		v.loading = true
		v.seq++
		return v.loadCmd()
	case "enter":
		if conv, ok := v.selectedConversation(); ok {
			return openConversationCmd(conv.ID)
		}
	}
	return nil
}

func (v *inboxView) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		v.searchActive = false
		if v.query != "" {
			v.query = ""
			v.seq++
			v.loading = true
			return v.loadCmd()
		}
		return nil
	case "enter":
		v.searchActive = false
		return nil
	case "backspace":
		if v.query == "" {
			return nil
		}
		runes := []rune(v.query)
		v.query = string(runes[:len(runes)-1])
	default:
		if msg.Type != tea.KeyRunes {
			return nil
		}
		v.query += string(msg.Runes)
	}

	// Re-stamp and wait for the pause before hitting the server.
	v.seq++
	return tickCmd(searchDebounceDelay, searchDebounceMsg{seq: v.seq})
}

func (v *inboxView) applyLoaded(msg inboxLoadedMsg) {
	if msg.seq != v.seq {
		return
	}
	if msg.err != nil {
		v.loading = false
		v.lastErr = msg.err
		return
	}
	// A cached snapshot never replaces server data, not even a server
	// response that legitimately came back empty.
	if msg.fromCache && v.serverSeen {
		return
	}

	v.conversations = msg.conversations
	v.fromCache = msg.fromCache
	v.lastErr = nil
	if !msg.fromCache {
		v.serverSeen = true
		v.loading = false
		if v.cache != nil && v.query == "" {
			cache := v.cache
			snapshot := msg.conversations
			go func() {
				_ = cache.ReplaceConversations(context.Background(), snapshot)
			}()
		}
	}
	v.ensureVisible()
}

func (v *inboxView) visible() []chat.Conversation {
	if v.showArchived {
		return v.conversations
	}
	var out []chat.Conversation
	for _, conv := range v.conversations {
		if !conv.Archived() {
			out = append(out, conv)
		}
	}
	return out
}

func (v *inboxView) selectedConversation() (chat.Conversation, bool) {
	visible := v.visible()
	if v.selected < 0 || v.selected >= len(visible) {
		return chat.Conversation{}, false
	}
	return visible[v.selected], true
}

func (v *inboxView) moveSelection(delta int) {
	visible := v.visible()
	if len(visible) == 0 {
		v.selected = 0
		v.top = 0
		return
	}
	v.selected = clampInt(v.selected+delta, 0, len(visible)-1)
	v.ensureVisible()
}

func (v *inboxView) ensureVisible() {
	count := len(v.visible())
	if count == 0 {
		v.selected = 0
		v.top = 0
		return
	}
	v.selected = clampInt(v.selected, 0, count-1)
	rows := maxInt(1, v.lastHeight-2)
	if v.selected < v.top {
		v.top = v.selected
	}
	if v.selected >= v.top+rows {
		v.top = v.selected - rows + 1
	}
	v.top = clampInt(v.top, 0, maxInt(0, count-1))
}

func (v *inboxView) View(width, height int, theme styles.Theme) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	v.lastHeight = height

	searchLine := v.renderSearchLine(width, theme)
	listHeight := height - lipgloss.Height(searchLine)
	list := v.renderList(width, listHeight, theme)
	return lipgloss.JoinVertical(lipgloss.Left, searchLine, list)
}

func (v *inboxView) renderSearchLine(width int, theme styles.Theme) string {
	var parts []string
	if v.searchActive {
		parts = append(parts, theme.AccentStyle().Render("/"+v.query+"▌"))
	} else if v.query != "" {
		parts = append(parts, theme.MutedStyle().Render("/"+v.query))
	}
	if v.showArchived {
		parts = append(parts, theme.MutedStyle().Render("[archives]"))
	}
	if v.loading {
		parts = append(parts, theme.MutedStyle().Render("loading…"))
	} else if v.fromCache {
		parts = append(parts, theme.MutedStyle().Render("[cached]"))
	}
	if v.lastErr != nil {
		parts = append(parts, theme.ErrorStyle().Render(errorLabel(v.lastErr)))
	}
	if len(parts) == 0 {
		return theme.MutedStyle().Render("inbox")
	}
	return truncateVis(strings.Join(parts, "  "), width)
}

func (v *inboxView) renderList(width, height int, theme styles.Theme) string {
	visible := v.visible()
	if len(visible) == 0 {
		if v.loading {
			return theme.MutedStyle().Render("Loading conversations…")
		}
		return theme.MutedStyle().Render("No conversations")
	}

	v.ensureVisible()
	lines := make([]string, 0, height)
	for idx := v.top; idx < len(visible) && len(lines) < height; idx++ {
		lines = append(lines, v.renderRow(visible[idx], idx == v.selected, width, theme))
	}
	return strings.Join(lines, "\n")
}

func (v *inboxView) renderRow(conv chat.Conversation, selected bool, width int, theme styles.Theme) string {
	marker := "  "
	if selected {
		marker = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Chrome.SelectedItem)).Render("> ")
	}

	title := conv.DisplayTitle(v.viewerID)
	titleStyle := theme.BaseStyle()
	if conv.UnreadCount > 0 {
		titleStyle = titleStyle.Bold(true)
	}
	if peer, ok := v.directPeer(conv); ok {
		titleStyle = titleStyle.Foreground(lipgloss.Color(v.colors.ColorCode(peer.UserID)))
	}

	badge := ""
	if conv.UnreadCount > 0 {
		badge = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Chrome.UnreadBadge)).Bold(true).Render(fmt.Sprintf(" (%d)", conv.UnreadCount))
	}
	archived := ""
	if conv.Archived() {
		archived = theme.MutedStyle().Render(" [archived]")
	}

	when := theme.MutedStyle().Render(humanize.Time(conv.LastActivityAt()))
	preview := theme.MutedStyle().Render(inboxPreview(conv))

	left := marker + titleStyle.Render(title) + badge + archived + "  " + preview
	gap := maxInt(1, width-lipgloss.Width(left)-lipgloss.Width(when))
	return truncateVis(left+strings.Repeat(" ", gap)+when, width)
}

func (v *inboxView) directPeer(conv chat.Conversation) (chat.Participant, bool) {
	if conv.Type != chat.ConversationDirect {
		return chat.Participant{}, false
	}
	for _, p := range conv.Participants {
		if p.UserID != v.viewerID {
			return p, true
		}
	}
	return chat.Participant{}, false
}

func inboxPreview(conv chat.Conversation) string {
	last := conv.LastMessage
	if last == nil {
		return ""
	}
	if last.Deleted() {
		return "(deleted)"
	}
	body := strings.TrimSpace(last.Body)
	if body == "" && len(last.Attachments) > 0 {
		return fmt.Sprintf("(%d attachment(s))", len(last.Attachments))
	}
	line, _, _ := strings.Cut(body, "\n")
	return runewidth.Truncate(line, 48, "…")
}

func errorLabel(err error) string {
	if api.IsRetryable(err) {
		return "connection trouble, retrying on next refresh"
	}
	return err.Error()
}
