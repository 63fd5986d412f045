// Package readstate derives read receipts for the viewer's own messages
// from per-participant read high-water marks, and decides when a viewed
// inbound message should trigger an outbound mark-read call.
package readstate

import (
	"github.com/parleyhq/parley/internal/chat"
)

// VisibleThreshold is the fraction of a message that must be visible
// before it counts as seen.
const VisibleThreshold = 0.5

// Tracker holds the read high-water marks for one conversation.
//
// Apply is intentionally pure-apply: it stores whatever value the event
// carries and relies on the server to deliver read advances in order.
// Out-of-order delivery is a known trust assumption, not defended here.
type Tracker struct {
	viewerID int64
	marks    map[int64]int64
	observed map[int64]struct{}
}

// New creates a tracker for the given viewer.
func New(viewerID int64) *Tracker {
	return &Tracker{
		viewerID: viewerID,
		marks:    make(map[int64]int64),
		observed: make(map[int64]struct{}),
	}
}

// SetParticipants resets the tracked marks from conversation metadata.
func (t *Tracker) SetParticipants(participants []chat.Participant) {
	t.marks = make(map[int64]int64, len(participants))
	for i := range participants {
		t.marks[participants[i].UserID] = participants[i].LastReadMessageID
	}
}

// Apply records a participant's new high-water mark.
func (t *Tracker) Apply(ev chat.ReadAdvanced) {
	t.marks[ev.UserID] = ev.LastReadMessageID
}

// Mark returns the recorded high-water mark for a participant.
func (t *Tracker) Mark(userID int64) int64 {
	return t.marks[userID]
}

// IsRead reports whether every participant other than the viewer has
// read the message. Read receipts are viewer-outbound only: a message
// the viewer did not author is never "read" from their perspective.
func (t *Tracker) IsRead(msg chat.Message) bool {
	if msg.SenderID != t.viewerID {
		return false
	}
	for userID, mark := range t.marks {
		if userID == t.viewerID {
			continue
		}
		if mark < msg.ID {
			return false
		}
	}
	return true
}

// ObserveVisible reports whether a mark-read call should be issued for
// the message, given the fraction of it currently visible. It returns
// true at most once per message: an inbound message the viewer has not
// read yet whose visibility crosses the threshold.
func (t *Tracker) ObserveVisible(msg chat.Message, fraction float64) bool {
	if msg.SenderID == t.viewerID || fraction < VisibleThreshold {
		return false
	}
	if msg.ID <= t.marks[t.viewerID] {
		return false
	}
	if _, seen := t.observed[msg.ID]; seen {
		return false
	}
	t.observed[msg.ID] = struct{}{}
	return true
}

// Reset clears all state, for reuse when the active conversation changes.
func (t *Tracker) Reset() {
	t.marks = make(map[int64]int64)
	t.observed = make(map[int64]struct{})
}
