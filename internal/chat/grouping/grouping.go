// Package grouping turns an unordered batch of messages into the
// ordered render list the thread view draws: date separators plus
// messages annotated with visual-grouping flags. Build is pure; the
// same message set yields the same list regardless of input order.
package grouping

import (
	"time"

	"github.com/parleyhq/parley/internal/chat"
)

// GroupWindow is the threshold under which consecutive same-sender
// messages merge into one visual block.
const GroupWindow = 5 * time.Minute

// Item is either a DateSeparator or an Entry.
type Item interface {
	renderItem()
}

// DateSeparator is emitted whenever the calendar day changes between
// consecutive messages (exact day comparison, not a rolling 24h window).
type DateSeparator struct {
	// Label is "Today", "Yesterday", or DD/MM/YYYY.
	Label string
	// Day is midnight of the separator's day in the render location.
	Day time.Time
}

func (DateSeparator) renderItem() {}

// Entry is a message annotated for rendering.
type Entry struct {
	Message chat.Message
	IsOwn   bool

	// GroupedWithPrev/Next report whether the adjacent message belongs
	// to the same visual block (same sender, within GroupWindow).
	GroupedWithPrev bool
	GroupedWithNext bool
}

func (Entry) renderItem() {}

// GroupHead reports whether this entry opens its visual block. A single
// message is both head and tail of its own block.
func (e Entry) GroupHead() bool { return !e.GroupedWithPrev }

// GroupTail reports whether this entry closes its visual block.
func (e Entry) GroupTail() bool { return !e.GroupedWithNext }

// Build sorts msgs ascending by (CreatedAt, ID) and walks the result,
// emitting a separator at each calendar-day change and computing the
// grouping flags for each message. now fixes the reference date for the
// Today/Yesterday labels; loc is the calendar used for day boundaries.
func Build(msgs []chat.Message, viewerID int64, now time.Time, loc *time.Location) []Item {
	if len(msgs) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}

	sorted := append([]chat.Message(nil), msgs...)
	chat.SortMessages(sorted)

	out := make([]Item, 0, len(sorted)+4)
	var prevDay time.Time
	for i := range sorted {
		day := dayOf(sorted[i].CreatedAt, loc)
		if i == 0 || !day.Equal(prevDay) {
			out = append(out, DateSeparator{Label: dayLabel(day, now, loc), Day: day})
			prevDay = day
		}

		entry := Entry{
			Message: sorted[i],
			IsOwn:   sorted[i].SenderID == viewerID,
		}
		if i > 0 {
			entry.GroupedWithPrev = sameGroup(sorted[i-1], sorted[i])
		}
		if i < len(sorted)-1 {
			entry.GroupedWithNext = sameGroup(sorted[i], sorted[i+1])
		}
		out = append(out, entry)
	}
	return out
}

// sameGroup reports whether two adjacent (sorted) messages merge into
// one visual block.
func sameGroup(a, b chat.Message) bool {
	if a.SenderID != b.SenderID {
		return false
	}
	delta := b.CreatedAt.Sub(a.CreatedAt)
	if delta < 0 {
		delta = -delta
	}
	return delta < GroupWindow
}

func dayOf(ts time.Time, loc *time.Location) time.Time {
	local := ts.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func dayLabel(day, now time.Time, loc *time.Location) string {
	today := dayOf(now, loc)
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("02/01/2006")
	}
}
