package chat

import (
	"errors"
	"strings"
)

// ErrEmptyDraft rejects a send with neither body nor files.
var ErrEmptyDraft = errors.New("message needs a body or at least one file")

// Draft is an outbound message under composition: a body plus an
// ordered list of local file paths to attach.
type Draft struct {
	Body  string
	Files []string
}

// Empty reports whether the draft carries nothing to send.
func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Body) == "" && len(d.Files) == 0
}

// Validate guards submission: a draft must carry a body or a file.
func (d Draft) Validate() error {
	if d.Empty() {
		return ErrEmptyDraft
	}
	return nil
}
