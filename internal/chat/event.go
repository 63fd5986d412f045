package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event kind identifiers as they appear on the wire. The channel
// delivers every event as {"event": <kind>, "data": {...}}.
const (
	KindMessageSent         = "message.sent"
	KindMessageEdited       = "message.edited"
	KindMessageDeleted      = "message.deleted"
	KindReadAdvanced        = "read.advanced"
	KindTypingChanged       = "typing.changed"
	KindConversationUpdated = "conversation.updated"
)

// Event errors.
var (
	ErrUnknownEventKind = errors.New("unknown event kind")
	ErrMalformedEvent   = errors.New("malformed event")
)

// Event is the closed set of live channel events. Each concrete type
// carries exactly the payload its kind defines; consumers dispatch with
// a type switch rather than by inspecting kind strings.
type Event interface {
	Kind() string
}

// MessageSent announces a newly persisted message, including the echo
// of a message this client sent (matched by Message.ClientID).
type MessageSent struct {
	Message Message `json:"message"`
}

func (MessageSent) Kind() string { return KindMessageSent }

// MessageEdited replaces an existing message body in place.
type MessageEdited struct {
	Message Message `json:"message"`
}

func (MessageEdited) Kind() string { return KindMessageEdited }

// DeleteScope distinguishes a tombstone visible to everyone from a
// viewer-local removal.
type DeleteScope string

const (
	DeleteScopeAll  DeleteScope = "all"
	DeleteScopeSelf DeleteScope = "self"
)

// MessageDeleted soft-deletes a message by id.
type MessageDeleted struct {
	ConversationID int64       `json:"conversation_id"`
	MessageID      int64       `json:"message_id"`
	Scope          DeleteScope `json:"scope"`
}

func (MessageDeleted) Kind() string { return KindMessageDeleted }

// ReadAdvanced moves a participant's read high-water mark forward. The
// server emits these in order; the client stores the latest value as-is.
type ReadAdvanced struct {
	ConversationID    int64 `json:"conversation_id"`
	UserID            int64 `json:"user_id"`
	LastReadMessageID int64 `json:"last_read_message_id"`
}

func (ReadAdvanced) Kind() string { return KindReadAdvanced }

// TypingChanged reports a participant starting or stopping typing.
// Transient: held in memory with a short expiry and never persisted.
type TypingChanged struct {
	ConversationID int64  `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
	UserName       string `json:"user_name,omitempty"`
	IsTyping       bool   `json:"is_typing"`
}

func (TypingChanged) Kind() string { return KindTypingChanged }

// ConversationUpdated carries fresh conversation metadata (title,
// participants, archive state).
type ConversationUpdated struct {
	Conversation Conversation `json:"conversation"`
}

func (ConversationUpdated) Kind() string { return KindConversationUpdated }

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// eventDecoders is the explicit kind-to-type mapping table. Adding an
// event means adding a row here; nothing is resolved by reflection.
var eventDecoders = map[string]func(json.RawMessage) (Event, error){
	KindMessageSent: func(data json.RawMessage) (Event, error) {
		var ev MessageSent
		return ev, json.Unmarshal(data, &ev)
	},
	KindMessageEdited: func(data json.RawMessage) (Event, error) {
		var ev MessageEdited
		return ev, json.Unmarshal(data, &ev)
	},
	KindMessageDeleted: func(data json.RawMessage) (Event, error) {
		var ev MessageDeleted
		return ev, json.Unmarshal(data, &ev)
	},
	KindReadAdvanced: func(data json.RawMessage) (Event, error) {
		var ev ReadAdvanced
		return ev, json.Unmarshal(data, &ev)
	},
	KindTypingChanged: func(data json.RawMessage) (Event, error) {
		var ev TypingChanged
		return ev, json.Unmarshal(data, &ev)
	},
	KindConversationUpdated: func(data json.RawMessage) (Event, error) {
		var ev ConversationUpdated
		return ev, json.Unmarshal(data, &ev)
	},
}

// DecodeEvent parses a wire frame into its concrete event type.
func DecodeEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	decode, ok := eventDecoders[env.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, env.Event)
	}
	ev, err := decode(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Event, err)
	}
	return ev, nil
}

// EncodeEvent wraps an event in its wire envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: ev.Kind(), Data: data})
}
