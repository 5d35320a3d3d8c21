package usecase

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"lokapasar/internal/domain/entity"
	"lokapasar/internal/domain/service"
	ws "lokapasar/internal/infrastructure/websocket"
	"lokapasar/pkg/logger"
)

// SubscriptionManager keeps the invariant that at most one channel
// subscription is live, bound to the active conversation. Inbound events are
// decoded and routed into the store; the local user's own typing/presence
// echoes are filtered out.
type SubscriptionManager struct {
	channels    service.ChannelService
	store       *ConversationStore
	localUserID int64
	typingTTL   time.Duration

	mu      sync.Mutex
	boundID int64
	handle  service.ChannelHandle
}

func NewSubscriptionManager(channels service.ChannelService, store *ConversationStore, localUserID int64, typingTTL time.Duration) *SubscriptionManager {
	return &SubscriptionManager{
		channels:    channels,
		store:       store,
		localUserID: localUserID,
		typingTTL:   typingTTL,
	}
}

func channelName(conversationID int64) string {
	return fmt.Sprintf("conversation.%d", conversationID)
}

// Bind subscribes the conversation's channel, tearing down any previous
// subscription first. A failed subscribe is logged and reported but is not
// fatal: the store's error field stays untouched and the UI degrades to
// pull-based loading until the next conversation switch rebinds.
func (m *SubscriptionManager) Bind(conversation *entity.Conversation) error {
	if conversation == nil {
		return m.Unbind()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.unbindLocked()

	handle, err := m.channels.Subscribe(channelName(conversation.ID))
	if err != nil {
		logger.Warn("subscription manager: failed to subscribe conversation %d: %v", conversation.ID, err)
		return err
	}

	handle.On(service.EventMessageSent, m.onMessageSent)
	handle.On(service.EventTypingStarted, m.onTypingStarted)
	handle.On(service.EventTypingStopped, m.onTypingStopped)
	handle.On(service.EventPresenceChanged, m.onPresenceChanged)

	m.boundID = conversation.ID
	m.handle = handle
	return nil
}

// Unbind performs the stop-and-leave regardless of whether a subscription is
// currently believed open. A detached channel must never block rebinding, so
// transport errors are swallowed here.
func (m *SubscriptionManager) Unbind() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unbindLocked()
	return nil
}

func (m *SubscriptionManager) unbindLocked() {
	if m.boundID != 0 {
		if err := m.channels.Unsubscribe(channelName(m.boundID)); err != nil {
			logger.Warn("subscription manager: unsubscribe conversation %d failed: %v", m.boundID, err)
		}
	}
	m.boundID = 0
	m.handle = nil
}

// Rebind re-establishes the current binding on a fresh transport generation.
// Called after the channel client was reset, which invalidated every handle.
func (m *SubscriptionManager) Rebind() error {
	m.mu.Lock()
	boundID := m.boundID
	m.boundID = 0
	m.handle = nil
	m.mu.Unlock()

	if boundID == 0 {
		return nil
	}
	return m.Bind(&entity.Conversation{ID: boundID})
}

// BoundConversationID reports which conversation the live subscription is
// attached to, zero when none.
func (m *SubscriptionManager) BoundConversationID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boundID
}

func (m *SubscriptionManager) onMessageSent(payload []byte) {
	var data ws.MessagePayload
	if err := json.Unmarshal(payload, &data); err != nil {
		logger.Warn("subscription manager: dropping malformed message.sent payload: %v", err)
		return
	}

	createdAt := parseEventTime(data.CreatedAt)
	message := &entity.Message{
		ID:             data.MessageID,
		ConversationID: data.ConversationID,
		SenderID:       data.UserID,
		SenderKind:     data.SenderKind,
		Content:        data.Content,
		Kind:           data.Kind,
		MediaURL:       data.MediaURL,
		CreatedAt:      createdAt,
	}

	m.store.AddMessage(message)
	m.store.UpdateLastMessage(data.ConversationID, createdAt)
}

func (m *SubscriptionManager) onTypingStarted(payload []byte) {
	var data ws.TypingPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		logger.Warn("subscription manager: dropping malformed typing.started payload: %v", err)
		return
	}
	if data.UserID == m.localUserID {
		return
	}

	m.store.SetTypingUser(data.ConversationID, entity.TypingEntry{
		UserID:      data.UserID,
		DisplayName: data.DisplayName,
		Kind:        data.Kind,
		ExpiresAt:   time.Now().Add(m.typingTTL),
	})
}

func (m *SubscriptionManager) onTypingStopped(payload []byte) {
	var data ws.TypingPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		logger.Warn("subscription manager: dropping malformed typing.stopped payload: %v", err)
		return
	}
	if data.UserID == m.localUserID {
		return
	}

	m.store.RemoveTypingUser(data.ConversationID, data.UserID)
}

func (m *SubscriptionManager) onPresenceChanged(payload []byte) {
	var data ws.PresencePayload
	if err := json.Unmarshal(payload, &data); err != nil {
		logger.Warn("subscription manager: dropping malformed presence.changed payload: %v", err)
		return
	}
	if data.UserID == m.localUserID {
		return
	}

	m.store.SetPresence(data.ConversationID, entity.PresenceEntry{
		UserID:   data.UserID,
		Online:   data.Online,
		LastSeen: parseEventTime(data.LastSeen),
	})
}

func parseEventTime(value string) time.Time {
	if value == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Now()
	}
	return t
}
