package readstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/chat"
)

const viewer = int64(1)

func tracker(participants ...chat.Participant) *Tracker {
	t := New(viewer)
	t.SetParticipants(participants)
	return t
}

func own(id int64) chat.Message {
	return chat.Message{ID: id, SenderID: viewer}
}

func TestIsReadRequiresEveryOtherParticipant(t *testing.T) {
	tr := tracker(
		chat.Participant{UserID: viewer, LastReadMessageID: 10},
		chat.Participant{UserID: 2, LastReadMessageID: 10},
		chat.Participant{UserID: 3, LastReadMessageID: 9},
	)

	require.False(t, tr.IsRead(own(10)))

	tr.Apply(chat.ReadAdvanced{UserID: 3, LastReadMessageID: 10})
	require.True(t, tr.IsRead(own(10)))
	require.False(t, tr.IsRead(own(11)))
}

func TestIsReadIgnoresViewerOwnMark(t *testing.T) {
	// The viewer's own high-water mark never gates their receipts.
	tr := tracker(
		chat.Participant{UserID: viewer, LastReadMessageID: 0},
		chat.Participant{UserID: 2, LastReadMessageID: 10},
	)
	require.True(t, tr.IsRead(own(10)))
}

func TestInboundMessagesAreNeverRead(t *testing.T) {
	tr := tracker(
		chat.Participant{UserID: viewer, LastReadMessageID: 99},
		chat.Participant{UserID: 2, LastReadMessageID: 99},
	)
	require.False(t, tr.IsRead(chat.Message{ID: 5, SenderID: 2}))
}

func TestReadAdvanceScenario(t *testing.T) {
	// A(viewer) sends id=10; B's mark is 9 -> unread. B advances to 10
	// -> read.
	tr := tracker(
		chat.Participant{UserID: viewer, LastReadMessageID: 10},
		chat.Participant{UserID: 2, LastReadMessageID: 9},
	)
	require.False(t, tr.IsRead(own(10)))

	tr.Apply(chat.ReadAdvanced{UserID: 2, LastReadMessageID: 10})
	require.True(t, tr.IsRead(own(10)))
}

func TestObserveVisibleFiresOncePerMessage(t *testing.T) {
	tr := tracker(
		chat.Participant{UserID: viewer, LastReadMessageID: 4},
		chat.Participant{UserID: 2},
	)
	inbound := chat.Message{ID: 5, SenderID: 2}

	require.False(t, tr.ObserveVisible(inbound, 0.4))
	require.True(t, tr.ObserveVisible(inbound, 0.5))
	require.False(t, tr.ObserveVisible(inbound, 1.0))
}

func TestObserveVisibleSkipsOwnAndAlreadyRead(t *testing.T) {
	tr := tracker(
		chat.Participant{UserID: viewer, LastReadMessageID: 7},
		chat.Participant{UserID: 2},
	)

	require.False(t, tr.ObserveVisible(own(9), 1.0))
	require.False(t, tr.ObserveVisible(chat.Message{ID: 6, SenderID: 2}, 1.0))
	require.True(t, tr.ObserveVisible(chat.Message{ID: 8, SenderID: 2}, 1.0))
}
