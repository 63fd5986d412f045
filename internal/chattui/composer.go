package chattui

import (
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/parleyhq/parley/internal/chat"
)

// composerState holds the message under composition. Enter submits,
// alt+enter inserts a newline, ctrl+o opens the attach prompt.
type composerState struct {
	body       string
	files      []string
	submitting bool
	err        string

	attachPrompt bool
	attachInput  string
}

func (c *composerState) Empty() bool {
	return strings.TrimSpace(c.body) == "" && len(c.files) == 0
}

func (c *composerState) Draft() chat.Draft {
	return chat.Draft{Body: c.body, Files: append([]string(nil), c.files...)}
}

func (c *composerState) SetDraft(draft chat.Draft) {
	c.body = draft.Body
	c.files = append([]string(nil), draft.Files...)
}

func (c *composerState) Reset() {
	*c = composerState{}
}

// FinishSend ends a submit attempt, keeping the draft when it failed.
func (c *composerState) FinishSend(errLabel string) {
	c.submitting = false
	c.err = errLabel
}

func (v *threadView) handleComposerKey(msg tea.KeyMsg) tea.Cmd {
	c := &v.composer

	if c.attachPrompt {
		return v.handleAttachPromptKey(msg)
	}
	if c.submitting {
		// One send at a time; typing keeps working but submit waits.
		if msg.String() == "enter" {
			return nil
		}
	}

	switch msg.String() {
	case "enter":
		return v.submit()
	case "alt+enter":
		c.body += "\n"
		c.err = ""
		return v.afterEdit()
	case "backspace":
		if c.body == "" {
			return nil
		}
		runes := []rune(c.body)
		c.body = string(runes[:len(runes)-1])
		return v.afterEdit()
	case "ctrl+o":
		c.attachPrompt = true
		c.attachInput = ""
		return nil
	case "ctrl+x":
		if len(c.files) == 0 {
			return nil
		}
		c.files = c.files[:len(c.files)-1]
		return v.saveDraftCmd()
	case "tab":
		return nil
	}

	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		if msg.Type == tea.KeySpace {
			c.body += " "
		} else {
			c.body += string(msg.Runes)
		}
		c.err = ""
		return v.afterEdit()
	}
	return nil
}

// afterEdit runs after every body change: signal typing and persist the
// draft.
func (v *threadView) afterEdit() tea.Cmd {
	v.controller.Keystroke()
	return v.saveDraftCmd()
}

func (v *threadView) submit() tea.Cmd {
	c := &v.composer
	draft := c.Draft()
	if err := draft.Validate(); err != nil {
		// Empty sends are swallowed, not errored at the user.
		return nil
	}
	c.submitting = true
	c.err = ""
	v.controller.StopTyping()
	return v.sendCmd()
}

func (v *threadView) handleAttachPromptKey(msg tea.KeyMsg) tea.Cmd {
	c := &v.composer

	switch msg.String() {
	case "esc":
		c.attachPrompt = false
		c.attachInput = ""
		return nil
	case "enter":
		path := strings.TrimSpace(c.attachInput)
		c.attachPrompt = false
		c.attachInput = ""
		if path == "" {
			return nil
		}
		if strings.HasPrefix(path, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				path = filepath.Join(home, path[2:])
			}
		}
		c.files = append(c.files, path)
		return v.saveDraftCmd()
	case "backspace":
		if c.attachInput == "" {
			return nil
		}
		runes := []rune(c.attachInput)
		c.attachInput = string(runes[:len(runes)-1])
		return nil
	}

	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		if msg.Type == tea.KeySpace {
			c.attachInput += " "
		} else {
			c.attachInput += string(msg.Runes)
		}
	}
	return nil
}
