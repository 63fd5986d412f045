// Package presence tracks who is currently typing in a conversation
// from inbound typing events, expiring stale entries, and debounces the
// viewer's own outbound typing signal.
package presence

import (
	"fmt"
	"sort"
	"time"

	"github.com/parleyhq/parley/internal/chat"
)

// TypingExpiry removes a typing user not refreshed within this window.
const TypingExpiry = 3 * time.Second

// Tracker maintains the set of currently-typing users for one
// conversation. It is clock-injected: callers pass now so expiry is
// deterministic and the UI can schedule its own refresh ticks.
type Tracker struct {
	viewerID  int64
	deadlines map[int64]time.Time
	names     map[int64]string
}

// New creates a tracker for the given viewer. Self events are ignored:
// the typing set never contains the viewer.
func New(viewerID int64) *Tracker {
	return &Tracker{
		viewerID:  viewerID,
		deadlines: make(map[int64]time.Time),
		names:     make(map[int64]string),
	}
}

// Apply folds a typing event into the set. IsTyping=true adds or
// refreshes the user's expiry deadline; false removes immediately.
func (t *Tracker) Apply(ev chat.TypingChanged, now time.Time) {
	if ev.UserID == t.viewerID {
		return
	}
	if !ev.IsTyping {
		delete(t.deadlines, ev.UserID)
		return
	}
	t.deadlines[ev.UserID] = now.Add(TypingExpiry)
	if ev.UserName != "" {
		t.names[ev.UserID] = ev.UserName
	}
}

// Active prunes expired entries and returns the typing user ids in
// ascending order.
func (t *Tracker) Active(now time.Time) []int64 {
	out := make([]int64, 0, len(t.deadlines))
	for userID, deadline := range t.deadlines {
		if now.Before(deadline) {
			out = append(out, userID)
			continue
		}
		delete(t.deadlines, userID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NextExpiry returns the earliest pending deadline, for scheduling the
// next UI refresh. ok is false when nobody is typing.
func (t *Tracker) NextExpiry(now time.Time) (time.Time, bool) {
	var next time.Time
	for _, deadline := range t.deadlines {
		if now.Before(deadline) && (next.IsZero() || deadline.Before(next)) {
			next = deadline
		}
	}
	return next, !next.IsZero()
}

// Label renders the indicator line: one name, two names, or a count.
// Empty when nobody is typing.
func (t *Tracker) Label(now time.Time) string {
	active := t.Active(now)
	switch len(active) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing…", t.name(active[0]))
	case 2:
		return fmt.Sprintf("%s and %s are typing…", t.name(active[0]), t.name(active[1]))
	default:
		return fmt.Sprintf("%s and %d others are typing…", t.name(active[0]), len(active)-1)
	}
}

// Reset clears the set, for reuse when the active conversation changes.
func (t *Tracker) Reset() {
	t.deadlines = make(map[int64]time.Time)
	t.names = make(map[int64]string)
}

func (t *Tracker) name(userID int64) string {
	if name, ok := t.names[userID]; ok {
		return name
	}
	return "Someone"
}
