// Package chat defines the data model shared by the REST client, the
// live event channel, and the rendering pipeline. Everything here is a
// DTO owned by the server; the client never mutates a message or
// conversation it did not author.
package chat

import (
	"sort"
	"time"
)

// MessageType identifies the payload class of a message.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// Message is a single message as the server reports it. ID is assigned
// by the server and increases monotonically within a conversation, so
// it doubles as the sort tiebreak for equal timestamps.
type Message struct {
	ID             int64        `json:"id"`
	ConversationID int64        `json:"conversation_id"`
	SenderID       int64        `json:"sender_id"`
	SenderName     string       `json:"sender_name,omitempty"`
	Body           string       `json:"body,omitempty"`
	Type           MessageType  `json:"type"`
	CreatedAt      time.Time    `json:"created_at"`
	EditedAt       *time.Time   `json:"edited_at,omitempty"`
	DeletedAt      *time.Time   `json:"deleted_at,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`

	// ClientID is the client-generated correlation id echoed back by the
	// server for messages this client sent.
	ClientID string `json:"client_id,omitempty"`
}

// Deleted reports whether the message has been soft-deleted. Deleted
// messages still sort and group normally but render as tombstones.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Edited reports whether an edit indicator should be shown. A deleted
// message never shows one.
func (m Message) Edited() bool {
	return m.EditedAt != nil && m.DeletedAt == nil
}

// Less orders messages ascending by (CreatedAt, ID). The ID tiebreak
// makes the order total for any set of server-assigned messages.
func (m Message) Less(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// SortMessages sorts in place by (CreatedAt, ID).
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Less(msgs[j])
	})
}
