package entity

import "time"

const (
	SenderKindUser = "user"
	SenderKindShop = "shop"
)

const (
	MessageKindText  = "text"
	MessageKindImage = "image"
	MessageKindAudio = "audio"
)

type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       int64      `json:"sender_id"`
	SenderKind     string     `json:"sender_kind"` // "user", "shop"
	Content        string     `json:"content"`
	Kind           string     `json:"kind"` // "text", "image", "audio"
	MediaURL       string     `json:"media_url,omitempty"`
	ClientRef      string     `json:"client_ref,omitempty"` // caller-supplied idempotency key
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

// MarkRead stamps read_at exactly once. read_at is monotonic: once set it is
// never cleared or moved.
func (m *Message) MarkRead(at time.Time) {
	if m.ReadAt == nil {
		t := at
		m.ReadAt = &t
	}
}
