package service

import (
	"context"

	"lokapasar/internal/domain/entity"
)

// SendMessageInput is the payload for creating a message. The backend assigns
// the id and created_at; ClientRef lets it dedupe retried sends.
type SendMessageInput struct {
	ConversationID int64
	Content        string
	Kind           string // "text", "image", "audio"
	MediaURL       string
	ClientRef      string
}

// ChatAPI is the REST surface of the conversation/message backend. The
// backend owns all persistence; this engine only calls it and mirrors the
// results into the in-memory store.
type ChatAPI interface {
	// EnsureConversation gets or creates the conversation for an order.
	// Idempotent on the backend side.
	EnsureConversation(ctx context.Context, orderID string) (*entity.Conversation, error)

	// ListConversations lists the caller's conversations for the given role
	// ("buyer" or "seller").
	ListConversations(ctx context.Context, role string) ([]*entity.Conversation, error)

	// ListMessages returns a page of messages in ascending creation order.
	ListMessages(ctx context.Context, conversationID int64, limit, offset int) ([]*entity.Message, int64, error)

	// CreateMessage persists a message and returns the server-confirmed copy.
	CreateMessage(ctx context.Context, input SendMessageInput) (*entity.Message, error)

	// MarkConversationRead stamps read receipts for the caller's unread
	// messages in the conversation.
	MarkConversationRead(ctx context.Context, conversationID int64) error

	// SetTyping emits a best-effort typing start/stop ping.
	SetTyping(ctx context.Context, conversationID int64, typing bool) error

	// UpdatePresence emits a best-effort online/offline ping.
	UpdatePresence(ctx context.Context, conversationID int64, status string) error
}
