package chattui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/chat/grouping"
	"github.com/parleyhq/parley/internal/chat/thread"
	"github.com/parleyhq/parley/internal/chattui/styles"
)

const messageIndent = "  "

func (v *threadView) View(width, height int, theme styles.Theme) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	v.lastWidth = width
	v.lastHeight = height

	switch v.snap.Phase {
	case thread.PhaseIdle, thread.PhaseLoading:
		return theme.MutedStyle().Render("Loading conversation…")
	case thread.PhaseError:
		return v.renderError(width, theme)
	}

	header := v.renderHeader(width, theme)
	statusLine := v.renderStatusLine(width, theme)
	composer := v.renderComposer(width, theme)

	chrome := lipgloss.Height(header) + lipgloss.Height(statusLine) + lipgloss.Height(composer)
	viewport := maxInt(1, height-chrome)

	lines := v.buildLines(width, theme)
	v.totalLines = len(lines)

	// Visibility is judged against the spans just built, so a message
	// that is on screen from the first render gets marked read without
	// waiting for a scroll or another event.
	v.markVisible()

	windowEnd := len(lines) - v.offset
	windowStart := maxInt(0, windowEnd-viewport)
	windowEnd = clampInt(windowEnd, windowStart, len(lines))
	visible := lines[windowStart:windowEnd]

	body := strings.Join(visible, "\n")
	if len(visible) < viewport {
		body += strings.Repeat("\n", viewport-len(visible))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, statusLine, composer)
}

// chromeHeight mirrors View's layout so scrolling math stays in sync
// with what is actually drawn.
func (v *threadView) chromeHeight() int {
	height := 2 // header + status line
	height += v.composerHeight()
	return height
}

func (v *threadView) composerHeight() int {
	height := strings.Count(v.composer.body, "\n") + 1
	height += len(v.composer.files)
	if v.composer.attachPrompt {
		height++
	}
	if v.composer.err != "" {
		height++
	}
	return height
}

func (v *threadView) renderError(width int, theme styles.Theme) string {
	if v.snap.Terminal {
		return theme.ErrorStyle().Render("You do not have access to this conversation.") + "\n" +
			theme.MutedStyle().Render("esc back")
	}
	return theme.ErrorStyle().Render("Could not load the conversation.") + "\n" +
		theme.MutedStyle().Render("r try again  esc back")
}

func (v *threadView) renderHeader(width int, theme styles.Theme) string {
	conv := v.snap.Conversation
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(theme.Chrome.Header)).Render(conv.DisplayTitle(v.viewerID))

	var tags []string
	if conv.Type == chat.ConversationGroup {
		tags = append(tags, fmt.Sprintf("%d people", len(conv.Participants)))
	} else if peer, ok := v.directPeer(conv); ok && peer.Online {
		tags = append(tags, lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Status.Online)).Render("online"))
	}
	if conv.Archived() {
		tags = append(tags, theme.MutedStyle().Render("[archived]"))
	}
	if v.snap.LoadingMore {
		tags = append(tags, theme.MutedStyle().Render("loading history…"))
	}

	right := strings.Join(tags, "  ")
	gap := maxInt(1, width-lipgloss.Width(title)-lipgloss.Width(right))
	return truncateVis(title+strings.Repeat(" ", gap)+right, width)
}

func (v *threadView) directPeer(conv chat.Conversation) (chat.Participant, bool) {
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

// renderStatusLine shows the typing indicator, or the new-message
// banner while scrolled up.
func (v *threadView) renderStatusLine(width int, theme styles.Theme) string {
	if v.pendingNew > 0 && v.offset > 0 {
		label := fmt.Sprintf("New messages (%d), end to jump down", v.pendingNew)
		return truncateVis(lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Chrome.UnreadBadge)).Bold(true).Render(label), width)
	}
	if v.snap.TypingLabel != "" {
		return truncateVis(lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Status.Typing)).Italic(true).Render(v.snap.TypingLabel), width)
	}
	return ""
}

func (v *threadView) renderComposer(width int, theme styles.Theme) string {
	c := v.composer
	var lines []string

	for _, file := range c.files {
		lines = append(lines, theme.MutedStyle().Render(truncateVis("📎 "+file, width)))
	}
	if c.attachPrompt {
		lines = append(lines, theme.AccentStyle().Render(truncateVis("attach: "+c.attachInput+"▌", width)))
	}

	prompt := "> "
	if c.submitting {
		prompt = theme.MutedStyle().Render("… ")
	}
	bodyLines := strings.Split(c.body, "\n")
	for i, line := range bodyLines {
		prefix := "  "
		if i == 0 {
			prefix = prompt
		}
		cursor := ""
		if i == len(bodyLines)-1 && !c.attachPrompt && !c.submitting {
			cursor = "▌"
		}
		lines = append(lines, truncateVis(prefix+line+cursor, width))
	}

	if c.err != "" {
		lines = append(lines, theme.ErrorStyle().Render(truncateVis(c.err, width)))
	}
	return strings.Join(lines, "\n")
}

// buildLines flattens the grouped items into styled lines and records
// the line span of every message for visibility tracking.
func (v *threadView) buildLines(width int, theme styles.Theme) []string {
	var lines []string
	v.spans = v.spans[:0]

	if v.snap.HasMore {
		lines = append(lines, theme.MutedStyle().Render("↑ scroll up for older messages"))
	}

	for _, item := range v.snap.Items {
		switch typed := item.(type) {
		case grouping.DateSeparator:
			lines = append(lines, v.renderDateSeparator(typed, width, theme))
		case grouping.Entry:
			start := len(lines)
			lines = append(lines, v.renderEntry(typed, width, theme)...)
			v.spans = append(v.spans, entrySpan{message: typed.Message, start: start, end: len(lines)})
		}
	}
	return lines
}

func (v *threadView) renderDateSeparator(sep grouping.DateSeparator, width int, theme styles.Theme) string {
	label := " " + sep.Label + " "
	side := maxInt(0, (width-lipgloss.Width(label))/2)
	rule := strings.Repeat("─", side)
	line := rule + label + rule
	return truncateVis(lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Chrome.Separator)).Render(line), width)
}

func (v *threadView) renderEntry(entry grouping.Entry, width int, theme styles.Theme) []string {
	var lines []string
	msg := entry.Message

	if entry.GroupHead() {
		lines = append(lines, "") // gap before each group
		lines = append(lines, v.renderEntryHeader(entry, width, theme))
	}

	bodyWidth := maxInt(8, width-len(messageIndent))
	switch {
	case msg.Deleted():
		tombstone := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Message.Tombstone)).Italic(true).Render("(message deleted)")
		lines = append(lines, messageIndent+tombstone)
	default:
		style := theme.BaseStyle()
		if entry.IsOwn {
			style = style.Foreground(lipgloss.Color(theme.Message.Own))
		}
		for _, line := range strings.Split(wordwrap.String(msg.Body, bodyWidth), "\n") {
			lines = append(lines, messageIndent+style.Render(line))
		}
		for _, att := range msg.Attachments {
			lines = append(lines, messageIndent+v.renderAttachment(att, bodyWidth, theme))
		}
	}

	if suffix := v.renderEntrySuffix(entry, theme); suffix != "" {
		lines[len(lines)-1] += " " + suffix
	}
	return lines
}

func (v *threadView) renderEntryHeader(entry grouping.Entry, width int, theme styles.Theme) string {
	msg := entry.Message
	name := v.senderName(msg.SenderID)
	nameStyle := v.colors.Foreground(msg.SenderID)
	if entry.IsOwn {
		nameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Message.Own)).Bold(true)
	}
	stamp := theme.MutedStyle().Render(msg.CreatedAt.Local().Format("15:04"))
	return truncateVis(nameStyle.Render(name)+" "+stamp, width)
}

// renderEntrySuffix appends edited tags, per-row timestamps and, on the
// viewer's own last-in-group messages, the delivery tick.
func (v *threadView) renderEntrySuffix(entry grouping.Entry, theme styles.Theme) string {
	var parts []string
	msg := entry.Message

	if msg.Edited() {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Message.EditedTag)).Render("(edited)"))
	}
	if v.showTimestamps && !entry.GroupHead() {
		parts = append(parts, theme.MutedStyle().Render(msg.CreatedAt.Local().Format("15:04")))
	}
	if entry.IsOwn && !msg.Deleted() {
		if v.snap.Read[msg.ID] {
			parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Status.ReadTick)).Render("✓✓"))
		} else {
			parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Status.SentTick)).Render("✓"))
		}
	}
	return strings.Join(parts, " ")
}

func (v *threadView) renderAttachment(att chat.Attachment, width int, theme styles.Theme) string {
	icon := "📎"
	switch att.Kind() {
	case chat.AttachmentImage:
		icon = "🖼"
	case chat.AttachmentVideo:
		icon = "🎞"
	case chat.AttachmentAudio:
		icon = "🎵"
	}
	label := fmt.Sprintf("%s %s (%s)", icon, att.FileName, att.HumanSize())
	return theme.AccentStyle().Render(truncateVis(label, width))
}

func (v *threadView) senderName(userID int64) string {
	if userID == v.viewerID {
		return "You"
	}
	if p, ok := v.snap.Conversation.Participant(userID); ok && p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("User %d", userID)
}
