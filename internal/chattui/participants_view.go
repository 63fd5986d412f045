package chattui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/chat/thread"
	"github.com/parleyhq/parley/internal/chattui/styles"
)

// participantsView lists who is in the open conversation, their role
// and presence.
type participantsView struct {
	controller *thread.Controller
	viewerID   int64
	colors     *styles.UserColorMapper
}

func newParticipantsView(controller *thread.Controller, viewerID int64) *participantsView {
	return &participantsView{
		controller: controller,
		viewerID:   viewerID,
		colors:     styles.NewUserColorMapper(nil),
	}
}

func (v *participantsView) Init() tea.Cmd {
	return nil
}

func (v *participantsView) Update(msg tea.Msg) tea.Cmd {
	if typed, ok := msg.(tea.KeyMsg); ok && typed.String() == "q" {
		return popViewCmd()
	}
	return nil
}

func (v *participantsView) View(width, height int, theme styles.Theme) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	snap := v.controller.Snapshot()
	conv := snap.Conversation

	participants := append([]chat.Participant(nil), conv.Participants...)
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].Name < participants[j].Name
	})

	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(theme.Chrome.Header)).
		Render(fmt.Sprintf("%s · %d participants", conv.DisplayTitle(v.viewerID), len(participants)))

	lines := make([]string, 0, len(participants)+2)
	lines = append(lines, truncateVis(title, width), "")

	for _, p := range participants {
		if len(lines) >= height {
			break
		}
		lines = append(lines, v.renderParticipant(p, width, theme))
	}
	return strings.Join(lines, "\n")
}

func (v *participantsView) renderParticipant(p chat.Participant, width int, theme styles.Theme) string {
	name := p.Name
	if p.UserID == v.viewerID {
		name += " (you)"
	}
	left := v.colors.Foreground(p.UserID).Render(name)

	var tags []string
	if p.Role == chat.RoleOwner || p.Role == chat.RoleAdmin {
		tags = append(tags, theme.MutedStyle().Render(string(p.Role)))
	}
	switch {
	case p.Online:
		tags = append(tags, lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Status.Online)).Render("online"))
	case p.LastSeenAt != nil:
		tags = append(tags, theme.MutedStyle().Render("seen "+humanize.Time(*p.LastSeenAt)))
	}

	line := "  " + left
	if len(tags) > 0 {
		line += "  " + strings.Join(tags, "  ")
	}
	return truncateVis(line, width)
}
