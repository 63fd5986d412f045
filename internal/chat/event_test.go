package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeEventRoundTripsEachKind(t *testing.T) {
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	events := []Event{
		MessageSent{Message: Message{ID: 7, ConversationID: 3, SenderID: 2, Body: "hi", Type: MessageText, CreatedAt: at}},
		MessageEdited{Message: Message{ID: 7, ConversationID: 3, Body: "hi (edited)", Type: MessageText, CreatedAt: at, EditedAt: &at}},
		MessageDeleted{ConversationID: 3, MessageID: 7, Scope: DeleteScopeAll},
		ReadAdvanced{ConversationID: 3, UserID: 2, LastReadMessageID: 7},
		TypingChanged{ConversationID: 3, UserID: 2, UserName: "lim", IsTyping: true},
		ConversationUpdated{Conversation: Conversation{ID: 3, Type: ConversationGroup, Title: "lab"}},
	}

	for _, ev := range events {
		raw, err := EncodeEvent(ev)
		require.NoError(t, err)
		decoded, err := DecodeEvent(raw)
		require.NoError(t, err)
		require.Equal(t, ev.Kind(), decoded.Kind())
		require.Equal(t, ev, decoded)
	}
}

func TestDecodeEventRejectsUnknownKind(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"event":"presence.ping","data":{}}`))
	require.ErrorIs(t, err, ErrUnknownEventKind)
}

func TestDecodeEventRejectsMalformedPayload(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"event":"message.sent","data":[1,2]}`))
	require.ErrorIs(t, err, ErrMalformedEvent)

	_, err = DecodeEvent([]byte(`not json`))
	require.ErrorIs(t, err, ErrMalformedEvent)
}

func TestConversationValidateParticipantCounts(t *testing.T) {
	two := []Participant{{UserID: 1}, {UserID: 2}}

	require.NoError(t, Conversation{Type: ConversationDirect, Participants: two}.Validate())
	require.ErrorIs(t,
		Conversation{Type: ConversationDirect, Participants: append(two, Participant{UserID: 3})}.Validate(),
		ErrDirectParticipantCount)
	require.ErrorIs(t,
		Conversation{Type: ConversationGroup, Participants: two[:1]}.Validate(),
		ErrGroupParticipantCount)
	require.ErrorIs(t,
		Conversation{Type: "broadcast", Participants: two}.Validate(),
		ErrInvalidConversationType)
}

func TestDisplayTitlePrefersPeerNameForDirect(t *testing.T) {
	conv := Conversation{
		Type: ConversationDirect,
		Participants: []Participant{
			{UserID: 1, Name: "me"},
			{UserID: 2, Name: "dr. tan"},
		},
	}
	require.Equal(t, "dr. tan", conv.DisplayTitle(1))
	require.Equal(t, "me", conv.DisplayTitle(2))
}

func TestAttachmentKindSelection(t *testing.T) {
	cases := map[string]AttachmentKind{
		"image/png":       AttachmentImage,
		"image/jpeg":      AttachmentImage,
		"video/mp4":       AttachmentVideo,
		"audio/ogg":       AttachmentAudio,
		"application/pdf": AttachmentGeneric,
		"":                AttachmentGeneric,
	}
	for mime, want := range cases {
		require.Equal(t, want, Attachment{MimeType: mime}.Kind(), mime)
	}
}

func TestDraftValidate(t *testing.T) {
	require.ErrorIs(t, Draft{}.Validate(), ErrEmptyDraft)
	require.ErrorIs(t, Draft{Body: "   \n"}.Validate(), ErrEmptyDraft)
	require.NoError(t, Draft{Body: "hello"}.Validate())
	require.NoError(t, Draft{Files: []string{"report.pdf"}}.Validate())
}
