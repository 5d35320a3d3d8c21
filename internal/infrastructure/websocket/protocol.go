package websocket

import "encoding/json"

// Client -> server actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// CommandFrame is what the client writes: subscribe/unsubscribe on a named
// channel.
type CommandFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// EventFrame is what the server pushes: one event on one channel.
type EventFrame struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// MessagePayload is the data of a message.sent event.
type MessagePayload struct {
	UserID         int64  `json:"user_id"`
	MessageID      int64  `json:"message_id"`
	ConversationID int64  `json:"conversation_id"`
	SenderKind     string `json:"sender_kind"`
	Content        string `json:"content"`
	Kind           string `json:"kind"`
	MediaURL       string `json:"media_url,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// TypingPayload is the data of typing.started / typing.stopped events.
type TypingPayload struct {
	UserID         int64  `json:"user_id"`
	ConversationID int64  `json:"conversation_id"`
	DisplayName    string `json:"display_name"`
	Kind           string `json:"kind"`
}

// PresencePayload is the data of a presence.changed event.
type PresencePayload struct {
	UserID         int64  `json:"user_id"`
	ConversationID int64  `json:"conversation_id"`
	Online         bool   `json:"online"`
	LastSeen       string `json:"last_seen,omitempty"`
}
