package chattui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/chat/grouping"
	"github.com/parleyhq/parley/internal/chat/thread"
	"github.com/parleyhq/parley/internal/chattui/styles"
	"github.com/parleyhq/parley/internal/store"
)

const typingRedrawInterval = time.Second

type threadChangedMsg struct{}

type typingTickMsg struct{}

type sendResultMsg struct {
	conversationID int64
	err            error
}

type draftLoadedMsg struct {
	conversationID int64
	draft          chat.Draft
}

// entrySpan records which rendered lines an entry occupies, for
// visibility-based read marking.
type entrySpan struct {
	message chat.Message
	start   int // inclusive line index
	end     int // exclusive
}

type threadView struct {
	controller     *thread.Controller
	cache          *store.Store
	viewerID       int64
	showTimestamps bool
	colors         *styles.UserColorMapper

	snap           thread.Snapshot
	conversationID int64

	composer composerState

	// offset is the number of lines scrolled up from the bottom;
	// zero means pinned to the newest message.
	offset     int
	pendingNew int

	// Sort key of the newest rendered entry, for telling new arrivals
	// apart from history pages prepended by LoadMore.
	newestAt time.Time
	newestID int64

	lastWidth  int
	lastHeight int

	spans      []entrySpan
	totalLines int

	listening   bool
	typingShown bool
}

func newThreadView(controller *thread.Controller, cache *store.Store, viewerID int64, showTimestamps bool) *threadView {
	return &threadView{
		controller:     controller,
		cache:          cache,
		viewerID:       viewerID,
		showTimestamps: showTimestamps,
		colors:         styles.NewUserColorMapper(nil),
	}
}

func (v *threadView) Init() tea.Cmd {
	if v.listening {
		return nil
	}
	v.listening = true
	return v.waitChangeCmd()
}

func (v *threadView) waitChangeCmd() tea.Cmd {
	changes := v.controller.Changes()
	return func() tea.Msg {
		<-changes
		return threadChangedMsg{}
	}
}

func (v *threadView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case threadChangedMsg:
		return v.applyChange()
	case typingTickMsg:
		v.snap = v.controller.Snapshot()
		if v.snap.TypingLabel == "" {
			v.typingShown = false
			return nil
		}
		return tickCmd(typingRedrawInterval, typingTickMsg{})
	case sendResultMsg:
		return v.applySendResult(typed)
	case draftLoadedMsg:
		if typed.conversationID == v.conversationID && v.composer.Empty() {
			v.composer.SetDraft(typed.draft)
		}
		return nil
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

// applyChange folds a controller notification into view state: detect
// conversation switches, keep the bottom pinned, and count messages
// that arrive while scrolled up.
func (v *threadView) applyChange() tea.Cmd {
	prevAt, prevID := v.newestAt, v.newestID
	v.snap = v.controller.Snapshot()
	v.newestAt, v.newestID = newestEntryKey(v.snap.Items)

	var cmds []tea.Cmd

	if v.snap.Conversation.ID != v.conversationID {
		v.conversationID = v.snap.Conversation.ID
		v.offset = 0
		v.pendingNew = 0
		v.composer.Reset()
		if v.cache != nil && v.conversationID != 0 {
			cmds = append(cmds, v.loadDraftCmd(v.conversationID))
		}
	} else if v.offset > 0 && prevID != 0 {
		// History pages grow the list from the top; only messages past
		// the previous newest entry count toward the banner.
		v.pendingNew += countEntriesAfter(v.snap.Items, prevAt, prevID)
	}

	if v.snap.TypingLabel != "" && !v.typingShown {
		v.typingShown = true
		cmds = append(cmds, tickCmd(typingRedrawInterval, typingTickMsg{}))
	}

	v.markVisible()
	cmds = append(cmds, v.waitChangeCmd())
	return tea.Batch(cmds...)
}

func (v *threadView) loadDraftCmd(conversationID int64) tea.Cmd {
	cache := v.cache
	return func() tea.Msg {
		draft, err := cache.LoadDraft(context.Background(), conversationID)
		if err != nil {
			return nil
		}
		return draftLoadedMsg{conversationID: conversationID, draft: draft}
	}
}

func (v *threadView) applySendResult(msg sendResultMsg) tea.Cmd {
	if msg.conversationID != v.conversationID {
		return nil
	}
	if msg.err != nil {
		// The draft stays in the composer for another attempt.
		v.composer.FinishSend(sendErrorLabel(msg.err))
		return nil
	}
	v.composer.Reset()
	v.offset = 0
	v.pendingNew = 0
	if v.cache != nil {
		cache := v.cache
		conversationID := msg.conversationID
		go func() {
			_ = cache.DeleteDraft(context.Background(), conversationID)
		}()
	}
	return nil
}

func (v *threadView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.snap.Phase == thread.PhaseError {
		if msg.String() == "r" && !v.snap.Terminal {
			v.controller.Retry(context.Background())
			return nil
		}
		return nil
	}

	switch msg.String() {
	case "pgup", "ctrl+u":
		v.scrollBy(v.pageStep())
		return nil
	case "pgdown", "ctrl+d":
		v.scrollBy(-v.pageStep())
		return nil
	case "up":
		if v.composer.attachPrompt {
			return nil
		}
		v.scrollBy(1)
		return nil
	case "down":
		if v.composer.attachPrompt {
			return nil
		}
		v.scrollBy(-1)
		return nil
	case "end", "ctrl+g":
		v.jumpBottom()
		return nil
	case "ctrl+p":
		return pushViewCmd(ViewParticipants)
	case "ctrl+a":
		return v.archiveCmd()
	}

	return v.handleComposerKey(msg)
}

// scrollBy moves the viewport; scrolling past the oldest rendered line
// requests the next history page.
func (v *threadView) scrollBy(delta int) {
	viewport := v.viewportLines()
	maxOffset := maxInt(0, v.totalLines-viewport)
	next := clampInt(v.offset+delta, 0, maxOffset)

	if delta > 0 && next == maxOffset && v.snap.HasMore && !v.snap.LoadingMore {
		v.controller.LoadMore(context.Background())
	}

	v.offset = next
	if v.offset == 0 {
		v.pendingNew = 0
	}
	v.markVisible()
}

func (v *threadView) jumpBottom() {
	v.offset = 0
	v.pendingNew = 0
	v.markVisible()
}

func (v *threadView) pageStep() int {
	return maxInt(1, v.viewportLines()/2)
}

func (v *threadView) archiveCmd() tea.Cmd {
	controller := v.controller
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = controller.Archive(ctx)
		return nil
	}
}

func (v *threadView) sendCmd() tea.Cmd {
	draft := v.composer.Draft()
	controller := v.controller
	conversationID := v.conversationID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := controller.Send(ctx, draft)
		return sendResultMsg{conversationID: conversationID, err: err}
	}
}

// saveDraftCmd persists composer state so drafts survive restarts.
func (v *threadView) saveDraftCmd() tea.Cmd {
	if v.cache == nil || v.conversationID == 0 {
		return nil
	}
	cache := v.cache
	conversationID := v.conversationID
	draft := v.composer.Draft()
	return func() tea.Msg {
		_ = cache.SaveDraft(context.Background(), conversationID, draft)
		return nil
	}
}

// markVisible reports each message's visible fraction to the
// controller, which decides what becomes read.
func (v *threadView) markVisible() {
	if v.snap.Phase != thread.PhaseReady || len(v.spans) == 0 {
		return
	}
	viewport := v.viewportLines()
	windowEnd := v.totalLines - v.offset
	windowStart := maxInt(0, windowEnd-viewport)

	for _, span := range v.spans {
		total := span.end - span.start
		if total <= 0 {
			continue
		}
		visible := minInt(span.end, windowEnd) - maxInt(span.start, windowStart)
		if visible <= 0 {
			continue
		}
		fraction := float64(visible) / float64(total)
		v.controller.ObserveVisible(context.Background(), span.message, fraction)
	}
}

func (v *threadView) viewportLines() int {
	chrome := v.chromeHeight()
	return maxInt(1, v.lastHeight-chrome)
}

func countEntries(items []grouping.Item) int {
	count := 0
	for _, item := range items {
		if _, ok := item.(grouping.Entry); ok {
			count++
		}
	}
	return count
}

// newestEntryKey returns the (created_at, id) sort key of the last
// entry, or zero values when there are none.
func newestEntryKey(items []grouping.Item) (time.Time, int64) {
	for i := len(items) - 1; i >= 0; i-- {
		if entry, ok := items[i].(grouping.Entry); ok {
			return entry.Message.CreatedAt, entry.Message.ID
		}
	}
	return time.Time{}, 0
}

func countEntriesAfter(items []grouping.Item, at time.Time, id int64) int {
	count := 0
	for _, item := range items {
		entry, ok := item.(grouping.Entry)
		if !ok {
			continue
		}
		msg := entry.Message
		if msg.CreatedAt.After(at) || (msg.CreatedAt.Equal(at) && msg.ID > id) {
			count++
		}
	}
	return count
}

func sendErrorLabel(err error) string {
	switch {
	case errors.Is(err, chat.ErrEmptyDraft):
		return "nothing to send"
	case errors.Is(err, thread.ErrSendInFlight):
		return "still sending the previous message"
	case errors.Is(err, api.ErrAccessDenied):
		return "you no longer have access to this conversation"
	case api.IsRetryable(err):
		return "send failed, check your connection and try again"
	default:
		return "send failed: " + err.Error()
	}
}
