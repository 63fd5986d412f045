package grouping

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/chat"
)

var kl = time.FixedZone("KL", 8*3600)

func msg(id int64, sender int64, at time.Time) chat.Message {
	return chat.Message{
		ID:             id,
		ConversationID: 1,
		SenderID:       sender,
		Body:           "m",
		Type:           chat.MessageText,
		CreatedAt:      at,
	}
}

func entries(items []Item) []Entry {
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		if e, ok := it.(Entry); ok {
			out = append(out, e)
		}
	}
	return out
}

func separators(items []Item) []DateSeparator {
	out := make([]DateSeparator, 0, len(items))
	for _, it := range items {
		if s, ok := it.(DateSeparator); ok {
			out = append(out, s)
		}
	}
	return out
}

func TestBuildEmptyInputYieldsNoItems(t *testing.T) {
	require.Nil(t, Build(nil, 1, time.Now(), kl))
	require.Nil(t, Build([]chat.Message{}, 1, time.Now(), kl))
}

func TestBuildDeterministicUnderShuffle(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, kl)
	msgs := []chat.Message{
		msg(1, 1, base),
		msg(2, 1, base.Add(2*time.Second)),
		msg(3, 2, base.Add(5*time.Second)),
		msg(4, 2, base.Add(10*time.Minute)),
		msg(5, 1, base.Add(26*time.Hour)),
	}
	now := base.Add(48 * time.Hour)

	want := Build(msgs, 1, now, kl)
	rng := rand.New(rand.NewSource(42))
	for attempt := 0; attempt < 20; attempt++ {
		shuffled := append([]chat.Message(nil), msgs...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		require.Equal(t, want, Build(shuffled, 1, now, kl))
	}
}

func TestBuildIDBreaksTimestampTies(t *testing.T) {
	at := time.Date(2026, 8, 29, 10, 0, 0, 0, kl)
	items := Build([]chat.Message{msg(12, 1, at), msg(11, 2, at)}, 1, at, kl)

	got := entries(items)
	require.Len(t, got, 2)
	require.Equal(t, int64(11), got[0].Message.ID)
	require.Equal(t, int64(12), got[1].Message.ID)
}

func TestGroupingWindow(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, kl)

	// 4 minutes apart, same sender: grouped.
	got := entries(Build([]chat.Message{msg(1, 1, base), msg(2, 1, base.Add(4*time.Minute))}, 1, base, kl))
	require.True(t, got[0].GroupedWithNext)
	require.True(t, got[1].GroupedWithPrev)

	// 6 minutes apart, same sender: separate blocks.
	got = entries(Build([]chat.Message{msg(1, 1, base), msg(2, 1, base.Add(6*time.Minute))}, 1, base, kl))
	require.False(t, got[0].GroupedWithNext)
	require.False(t, got[1].GroupedWithPrev)

	// Different sender seconds later: never grouped.
	got = entries(Build([]chat.Message{
		msg(1, 1, base),
		msg(2, 1, base.Add(2*time.Second)),
		msg(3, 2, base.Add(5*time.Second)),
	}, 1, base, kl))
	require.True(t, got[1].GroupedWithPrev)
	require.False(t, got[2].GroupedWithPrev)
	require.False(t, got[1].GroupedWithNext)
}

func TestHeadAndTailComplementGroupingFlags(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, kl)
	msgs := []chat.Message{
		msg(1, 1, base),
		msg(2, 1, base.Add(time.Minute)),
		msg(3, 2, base.Add(2*time.Minute)),
		msg(4, 1, base.Add(20*time.Minute)),
	}
	for _, e := range entries(Build(msgs, 1, base, kl)) {
		require.Equal(t, !e.GroupedWithPrev, e.GroupHead())
		require.Equal(t, !e.GroupedWithNext, e.GroupTail())
	}

	// A lone message is both head and tail of its own block.
	lone := entries(Build(msgs[:1], 1, base, kl))[0]
	require.True(t, lone.GroupHead())
	require.True(t, lone.GroupTail())
}

func TestSingleSeparatorPerDayCrossing(t *testing.T) {
	a := time.Date(2026, 8, 28, 23, 59, 0, 0, kl)
	b := time.Date(2026, 8, 29, 0, 1, 0, 0, kl)
	items := Build([]chat.Message{msg(1, 1, a), msg(2, 1, b)}, 1, b, kl)

	seps := separators(items)
	require.Len(t, seps, 2) // one opening the list, one at the crossing
	require.Equal(t, "Yesterday", seps[0].Label)
	require.Equal(t, "Today", seps[1].Label)

	// The crossing separator sits between the two messages.
	_, ok := items[2].(DateSeparator)
	require.True(t, ok)
}

func TestDayLabelsUseCalendarDaysNotRollingWindow(t *testing.T) {
	// 01:00 today vs 23:00 yesterday is under 24h apart but still two days.
	now := time.Date(2026, 8, 29, 1, 0, 0, 0, kl)
	items := Build([]chat.Message{
		msg(1, 1, now.Add(-2*time.Hour)),
		msg(2, 1, now),
	}, 1, now, kl)
	require.Len(t, separators(items), 2)

	old := time.Date(2026, 3, 5, 9, 0, 0, 0, kl)
	seps := separators(Build([]chat.Message{msg(1, 1, old)}, 1, now, kl))
	require.Equal(t, "05/03/2026", seps[0].Label)
}

func TestIsOwnFollowsViewer(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, kl)
	items := Build([]chat.Message{msg(1, 1, base), msg(2, 2, base.Add(time.Hour))}, 2, base, kl)

	got := entries(items)
	require.False(t, got[0].IsOwn)
	require.True(t, got[1].IsOwn)
}

func TestDeletedMessagesStillSortAndGroup(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, kl)
	deletedAt := base.Add(time.Hour)
	tomb := msg(2, 1, base.Add(time.Minute))
	tomb.DeletedAt = &deletedAt

	got := entries(Build([]chat.Message{msg(1, 1, base), tomb}, 1, base, kl))
	require.Len(t, got, 2)
	require.True(t, got[1].Message.Deleted())
	require.True(t, got[1].GroupedWithPrev)
}
