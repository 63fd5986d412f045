package chat

import (
	"errors"
	"time"
)

// ConversationType distinguishes two-party threads from group threads.
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// Role is a participant's role within a conversation.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Conversation errors.
var (
	ErrInvalidConversationType = errors.New("invalid conversation type")
	ErrDirectParticipantCount  = errors.New("direct conversation requires exactly 2 participants")
	ErrGroupParticipantCount   = errors.New("group conversation requires at least 2 participants")
)

// Participant is a user's membership record within a conversation.
// LastReadMessageID is the read high-water mark: the highest message id
// the participant is known to have read. The server guarantees it never
// decreases.
type Participant struct {
	UserID            int64      `json:"user_id"`
	Name              string     `json:"name"`
	Role              Role       `json:"role"`
	LastReadMessageID int64      `json:"last_read_message_id"`
	Online            bool       `json:"online,omitempty"`
	LastSeenAt        *time.Time `json:"last_seen_at,omitempty"`
}

// Conversation is a direct or group thread. Title is only meaningful
// for groups; direct conversations display the peer's name instead.
type Conversation struct {
	ID           int64            `json:"id"`
	Type         ConversationType `json:"type"`
	Title        string           `json:"title,omitempty"`
	Participants []Participant    `json:"participants"`
	LastMessage  *Message         `json:"last_message,omitempty"`
	UnreadCount  int              `json:"unread_count,omitempty"`
	ArchivedAt   *time.Time       `json:"archived_at,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Archived reports whether the conversation is archived for the viewer.
func (c Conversation) Archived() bool {
	return c.ArchivedAt != nil
}

// LastActivityAt is the timestamp conversations sort by in the inbox:
// the last message's creation time when one exists, otherwise the
// conversation's own update time.
func (c Conversation) LastActivityAt() time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.UpdatedAt
}

// Validate checks the participant-count invariant for the conversation
// type.
func (c Conversation) Validate() error {
	switch c.Type {
	case ConversationDirect:
		if len(c.Participants) != 2 {
			return ErrDirectParticipantCount
		}
	case ConversationGroup:
		if len(c.Participants) < 2 {
			return ErrGroupParticipantCount
		}
	default:
		return ErrInvalidConversationType
	}
	return nil
}

// Participant returns the membership record for userID, if present.
func (c Conversation) Participant(userID int64) (Participant, bool) {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return c.Participants[i], true
		}
	}
	return Participant{}, false
}

// DisplayTitle resolves the name shown in the inbox and thread header:
// the group title for groups, the peer's name for direct conversations.
func (c Conversation) DisplayTitle(viewerID int64) string {
	if c.Type == ConversationGroup && c.Title != "" {
		return c.Title
	}
	for i := range c.Participants {
		if c.Participants[i].UserID != viewerID && c.Participants[i].Name != "" {
			return c.Participants[i].Name
		}
	}
	return c.Title
}
