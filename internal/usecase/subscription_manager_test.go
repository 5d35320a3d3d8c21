package usecase

import (
	"testing"
	"time"

	"lokapasar/internal/domain/entity"
	"lokapasar/internal/domain/service"
	ws "lokapasar/internal/infrastructure/websocket"
	"lokapasar/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() (*SubscriptionManager, *fakeChannel, *ConversationStore) {
	channel := newFakeChannel()
	store := NewConversationStore(localUserID)
	manager := NewSubscriptionManager(channel, store, localUserID, 6*time.Second)
	return manager, channel, store
}

func TestBindHoldsAtMostOneSubscription(t *testing.T) {
	manager, channel, _ := newTestManager()

	require.NoError(t, manager.Bind(conv(1, "ORD-1")))
	require.NoError(t, manager.Bind(conv(2, "ORD-2")))
	require.NoError(t, manager.Bind(conv(3, "ORD-3")))

	assert.Equal(t, []string{"conversation.3"}, channel.subscribedChannels())
	assert.Equal(t, int64(3), manager.BoundConversationID())
	// Every bind after the first tore down its predecessor.
	assert.Equal(t, []string{"conversation.1", "conversation.2"}, channel.unsubscribeCalls)
}

func TestBindUnbindsEvenWhenUnsubscribeFails(t *testing.T) {
	manager, channel, _ := newTestManager()

	require.NoError(t, manager.Bind(conv(1, "ORD-1")))
	channel.unsubscribeErr = errors.TransportFailure("socket wedged", nil)

	require.NoError(t, manager.Bind(conv(2, "ORD-2")))

	assert.Equal(t, int64(2), manager.BoundConversationID())
	assert.Contains(t, channel.subscribedChannels(), "conversation.2")
}

func TestBindFailureIsNonFatal(t *testing.T) {
	manager, channel, store := newTestManager()
	channel.subscribeErr = errors.TransportFailure("no transport", nil)

	err := manager.Bind(conv(1, "ORD-1"))

	assert.Error(t, err)
	assert.Zero(t, manager.BoundConversationID())
	// Transport failures never touch the store's error field.
	assert.Empty(t, store.LastError())
}

func TestUnbindIsIdempotent(t *testing.T) {
	manager, _, _ := newTestManager()

	assert.NoError(t, manager.Unbind())
	require.NoError(t, manager.Bind(conv(1, "ORD-1")))
	assert.NoError(t, manager.Unbind())
	assert.NoError(t, manager.Unbind())
	assert.Zero(t, manager.BoundConversationID())
}

func TestInboundMessageLandsInStore(t *testing.T) {
	manager, channel, store := newTestManager()
	store.SetActiveConversation(conv(42, "ORD-42"))
	store.SetConversations([]*entity.Conversation{conv(42, "ORD-42")})
	require.NoError(t, manager.Bind(conv(42, "ORD-42")))

	created := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	channel.emit("conversation.42", service.EventMessageSent, ws.MessagePayload{
		UserID:         9,
		MessageID:      7,
		ConversationID: 42,
		SenderKind:     entity.SenderKindShop,
		Content:        "your order shipped",
		Kind:           entity.MessageKindText,
		CreatedAt:      created.Format(time.RFC3339),
	})

	messages := store.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, int64(7), messages[0].ID)
	assert.Equal(t, int64(42), messages[0].ConversationID)

	for _, c := range store.Conversations() {
		if c.ID == 42 {
			assert.True(t, c.LastMessageAt.Equal(created))
		}
	}
}

func TestEventsForTornDownChannelAreNotApplied(t *testing.T) {
	manager, channel, store := newTestManager()
	store.SetActiveConversation(conv(1, "ORD-1"))
	require.NoError(t, manager.Bind(conv(1, "ORD-1")))

	// Switch to conversation 2: the old channel's subscription is gone.
	store.SetActiveConversation(conv(2, "ORD-2"))
	require.NoError(t, manager.Bind(conv(2, "ORD-2")))

	channel.emit("conversation.1", service.EventMessageSent, ws.MessagePayload{
		UserID: 9, MessageID: 5, ConversationID: 1,
		SenderKind: entity.SenderKindShop, Content: "late event",
		CreatedAt: time.Now().Format(time.RFC3339),
	})

	assert.Zero(t, store.MessageCount())
}

func TestTypingEventsAreSelfFiltered(t *testing.T) {
	manager, channel, store := newTestManager()
	require.NoError(t, manager.Bind(conv(1, "ORD-1")))

	channel.emit("conversation.1", service.EventTypingStarted, ws.TypingPayload{
		UserID: localUserID, ConversationID: 1, DisplayName: "me",
	})
	channel.emit("conversation.1", service.EventTypingStarted, ws.TypingPayload{
		UserID: 9, ConversationID: 1, DisplayName: "peer", Kind: entity.SenderKindShop,
	})

	entries := store.TypingUsers(1)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(9), entries[0].UserID)
	assert.False(t, entries[0].ExpiresAt.IsZero())

	channel.emit("conversation.1", service.EventTypingStopped, ws.TypingPayload{
		UserID: 9, ConversationID: 1,
	})
	assert.Empty(t, store.TypingUsers(1))
}

func TestPresenceEventsRouteToStore(t *testing.T) {
	manager, channel, store := newTestManager()
	require.NoError(t, manager.Bind(conv(1, "ORD-1")))

	channel.emit("conversation.1", service.EventPresenceChanged, ws.PresencePayload{
		UserID: 9, ConversationID: 1, Online: true,
	})
	channel.emit("conversation.1", service.EventPresenceChanged, ws.PresencePayload{
		UserID: localUserID, ConversationID: 1, Online: true,
	})

	assert.Equal(t, []int64{9}, store.OnlineUsers(1))
}

func TestMalformedPayloadsAreDropped(t *testing.T) {
	manager, channel, store := newTestManager()
	require.NoError(t, manager.Bind(conv(1, "ORD-1")))

	assert.NotPanics(t, func() {
		channel.emit("conversation.1", service.EventMessageSent, "not an object")
		channel.emit("conversation.1", service.EventTypingStarted, []int{1, 2, 3})
	})
	assert.Zero(t, store.MessageCount())
}

func TestRebindRestoresCurrentBinding(t *testing.T) {
	manager, channel, _ := newTestManager()
	require.NoError(t, manager.Bind(conv(5, "ORD-5")))

	// A transport reset invalidates the subscription server-side.
	require.NoError(t, channel.Reset())
	require.NoError(t, manager.Rebind())

	assert.Equal(t, []string{"conversation.5"}, channel.subscribedChannels())
	assert.Equal(t, int64(5), manager.BoundConversationID())
}

func TestRebindWithoutBindingIsNoop(t *testing.T) {
	manager, channel, _ := newTestManager()
	require.NoError(t, manager.Rebind())
	assert.Empty(t, channel.subscribeCalls)
}
