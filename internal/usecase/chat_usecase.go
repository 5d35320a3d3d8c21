package usecase

import (
	"context"
	"sync"
	"time"

	"lokapasar/internal/domain/entity"
	"lokapasar/internal/domain/service"
	"lokapasar/pkg/logger"
)

const (
	defaultMessagePageSize = 50
	typingSweepInterval    = time.Second
)

// Notifier raises user-visible transient notifications. Send failures go
// through here; everything else is store state or log lines.
type Notifier interface {
	Notify(message string)
}

// NopNotifier drops notifications. Useful for headless runs and tests.
type NopNotifier struct{}

func (NopNotifier) Notify(string) {}

// ChatUseCaseConfig carries the identity and tuning the engine needs.
type ChatUseCaseConfig struct {
	LocalUserID    int64
	Role           string // "buyer" or "seller"
	TypingDebounce time.Duration
	TypingTTL      time.Duration
}

// ChatUseCase is the public operation surface of the order-chat engine. It
// composes the store, the subscription manager, the typing coordinator, the
// presence tracker and the window manager; every view component goes through
// it. Operations never panic: failures become store state, notifications or
// log lines.
type ChatUseCase struct {
	api      service.ChatAPI
	channels service.ChannelService
	store    *ConversationStore
	subs     *SubscriptionManager
	typing   *TypingCoordinator
	presence *PresenceTracker
	windows  *WindowManager
	notifier Notifier

	localUserID int64
	role        string

	sweepDone   chan struct{}
	disposeOnce sync.Once
}

func NewChatUseCase(
	api service.ChatAPI,
	channels service.ChannelService,
	store *ConversationStore,
	notifier Notifier,
	cfg ChatUseCaseConfig,
) *ChatUseCase {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if cfg.TypingDebounce <= 0 {
		cfg.TypingDebounce = 2 * time.Second
	}
	if cfg.TypingTTL <= 0 {
		cfg.TypingTTL = 6 * time.Second
	}

	uc := &ChatUseCase{
		api:         api,
		channels:    channels,
		store:       store,
		notifier:    notifier,
		localUserID: cfg.LocalUserID,
		role:        cfg.Role,
		sweepDone:   make(chan struct{}),
	}

	uc.subs = NewSubscriptionManager(channels, store, cfg.LocalUserID, cfg.TypingTTL)
	uc.typing = NewTypingCoordinator(api, cfg.TypingDebounce)
	uc.presence = NewPresenceTracker(api)
	uc.windows = NewWindowManager(uc.activeConversationID, uc.promoteConversation, uc.deactivateConversation)

	go uc.sweepTypingLoop()
	return uc
}

// localKind is the sender kind of messages the local party authors: buyers
// write as "user", sellers as "shop".
func (uc *ChatUseCase) localKind() string {
	if uc.role == entity.RoleSeller {
		return entity.SenderKindShop
	}
	return entity.SenderKindUser
}

// LoadConversations fetches the caller's conversation list. The endpoint is
// role-dependent: buyers list their purchases' chats, sellers their shop's.
func (uc *ChatUseCase) LoadConversations(ctx context.Context) error {
	uc.store.SetLoading(true)
	defer uc.store.SetLoading(false)

	conversations, err := uc.api.ListConversations(ctx, uc.role)
	if err != nil {
		logger.Error("chat: failed to load conversations: %v", err)
		uc.store.SetError("failed to load conversations")
		return err
	}

	uc.store.SetConversations(conversations)
	uc.store.SetError("")
	return nil
}

// EnsureConversationForOrder gets or creates the conversation for an order.
// Idempotent against the backend.
func (uc *ChatUseCase) EnsureConversationForOrder(ctx context.Context, orderID string) (*entity.Conversation, error) {
	conversation, err := uc.api.EnsureConversation(ctx, orderID)
	if err != nil {
		logger.Error("chat: failed to ensure conversation for order %s: %v", orderID, err)
		uc.store.SetError("failed to open conversation")
		return nil, err
	}
	return conversation, nil
}

// SetActiveConversation drives the activation switch: tear down the previous
// conversation's typing timers, swap store state, rebind the subscription,
// load messages and mark them read. Passing nil deactivates.
func (uc *ChatUseCase) SetActiveConversation(ctx context.Context, conversation *entity.Conversation) {
	previous := uc.store.ActiveConversation()
	if previous != nil && (conversation == nil || previous.ID != conversation.ID) {
		uc.typing.Deactivate(previous.ID)
	}

	uc.store.SetActiveConversation(conversation)

	if conversation == nil {
		uc.subs.Unbind()
		return
	}

	if err := uc.subs.Bind(conversation); err != nil {
		// Non-fatal: live updates degrade to pull-based loading until the
		// next switch rebinds.
		logger.Warn("chat: live subscription unavailable for conversation %d: %v", conversation.ID, err)
	}

	uc.LoadMessages(ctx, conversation.ID)
	uc.MarkAsRead(ctx, conversation.ID)
}

// LoadMessages fetches the first page of the conversation's messages. The
// result is applied only if the same activation is still current when the
// call resolves; a slow load racing a conversation switch is discarded.
func (uc *ChatUseCase) LoadMessages(ctx context.Context, conversationID int64) error {
	epoch := uc.store.Epoch()
	uc.store.SetLoading(true)

	messages, _, err := uc.api.ListMessages(ctx, conversationID, defaultMessagePageSize, 0)

	if uc.store.Epoch() != epoch {
		// The racing switch may have been a deactivation that starts no new
		// load, so the flag is cleared on this path too.
		uc.store.SetLoading(false)
		logger.Debug("chat: discarding stale message load for conversation %d", conversationID)
		return nil
	}
	uc.store.SetLoading(false)

	if err != nil {
		logger.Error("chat: failed to load messages for conversation %d: %v", conversationID, err)
		uc.store.SetError("failed to load messages")
		return err
	}

	uc.store.SetMessages(messages)
	uc.store.SetError("")
	return nil
}

// SendMessage is pessimistic: nothing is inserted until the backend confirms.
// On failure the message simply never appears and the user gets a transient
// notification; there is no optimistic insert and therefore no rollback.
func (uc *ChatUseCase) SendMessage(ctx context.Context, input service.SendMessageInput) (*entity.Message, error) {
	message, err := uc.api.CreateMessage(ctx, input)
	if err != nil {
		logger.Error("chat: failed to send message in conversation %d: %v", input.ConversationID, err)
		uc.notifier.Notify("Message could not be sent. Please try again.")
		return nil, err
	}

	uc.store.AddMessage(message)
	uc.store.UpdateLastMessage(message.ConversationID, message.CreatedAt)
	uc.typing.Stop(input.ConversationID)
	return message, nil
}

// MarkAsRead stamps local read receipts and tells the backend. The local
// stamp is applied regardless of the REST outcome; a failed call is logged
// and retried implicitly the next time the conversation is activated.
func (uc *ChatUseCase) MarkAsRead(ctx context.Context, conversationID int64) error {
	uc.store.MarkRead(conversationID, uc.localKind(), time.Now())

	if err := uc.api.MarkConversationRead(ctx, conversationID); err != nil {
		logger.Warn("chat: mark-read for conversation %d failed: %v", conversationID, err)
		return err
	}
	return nil
}

// StartTyping feeds a local input change into the typing debounce.
func (uc *ChatUseCase) StartTyping(conversationID int64, content string) {
	uc.typing.InputChanged(conversationID, content)
}

// StopTyping ends the local typing state immediately.
func (uc *ChatUseCase) StopTyping(conversationID int64) {
	uc.typing.Stop(conversationID)
}

// ChatSurfaceVisible reports that a chat surface for the conversation became
// visible; the local user is marked online there.
func (uc *ChatUseCase) ChatSurfaceVisible(conversationID int64) {
	uc.presence.SurfaceVisible(conversationID)
}

// ChatSurfaceHidden is the counterpart of ChatSurfaceVisible.
func (uc *ChatUseCase) ChatSurfaceHidden(conversationID int64) {
	uc.presence.SurfaceHidden(conversationID)
}

// UpdatePresence emits a direct best-effort presence ping.
func (uc *ChatUseCase) UpdatePresence(ctx context.Context, conversationID int64, status string) {
	if err := uc.api.UpdatePresence(ctx, conversationID, status); err != nil {
		logger.Debug("chat: presence update for conversation %d failed: %v", conversationID, err)
	}
}

// Read-only selectors.

func (uc *ChatUseCase) GetUnreadCount(conversationID int64) int {
	return uc.store.UnreadCount(conversationID, uc.localKind())
}

func (uc *ChatUseCase) GetTypingUsers(conversationID int64) []entity.TypingEntry {
	return uc.store.TypingUsers(conversationID)
}

func (uc *ChatUseCase) GetOnlineUsers(conversationID int64) []int64 {
	return uc.store.OnlineUsers(conversationID)
}

func (uc *ChatUseCase) Store() *ConversationStore {
	return uc.store
}

// Window operations.

// OpenChatForOrder is the entry point behind every "chat about this order"
// button: ensure the conversation exists, open (or refresh) its window and
// promote it to active.
func (uc *ChatUseCase) OpenChatForOrder(ctx context.Context, order *entity.Order) (*entity.Conversation, error) {
	if order == nil {
		return nil, nil
	}

	conversation, err := uc.EnsureConversationForOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	uc.windows.Open(conversation, order)
	uc.SetActiveConversation(ctx, conversation)
	return conversation, nil
}

func (uc *ChatUseCase) Windows() *WindowManager {
	return uc.windows
}

func (uc *ChatUseCase) CloseWindow(orderID string) {
	uc.windows.Close(orderID)
}

func (uc *ChatUseCase) MinimizeWindow(orderID string) {
	uc.windows.Minimize(orderID)
}

func (uc *ChatUseCase) MaximizeWindow(orderID string) {
	uc.windows.Maximize(orderID)
}

// HandleTransportReset recreates the channel connection and rebinds the
// active conversation. The repair action for a wedged socket.
func (uc *ChatUseCase) HandleTransportReset() {
	if err := uc.channels.Reset(); err != nil {
		logger.Warn("chat: transport reset failed: %v", err)
		return
	}
	if err := uc.subs.Rebind(); err != nil {
		logger.Warn("chat: rebind after transport reset failed: %v", err)
	}
}

// Dispose tears the engine down: typing timers cleared, presence marked
// offline, subscription unbound, transport closed, sweeper stopped.
func (uc *ChatUseCase) Dispose() {
	uc.disposeOnce.Do(func() {
		close(uc.sweepDone)
		uc.typing.Dispose()
		uc.presence.Dispose()
		uc.subs.Unbind()
		if err := uc.channels.Dispose(); err != nil {
			logger.Warn("chat: transport dispose failed: %v", err)
		}
	})
}

func (uc *ChatUseCase) activeConversationID() int64 {
	if active := uc.store.ActiveConversation(); active != nil {
		return active.ID
	}
	return 0
}

func (uc *ChatUseCase) promoteConversation(conversation *entity.Conversation) {
	uc.SetActiveConversation(context.Background(), conversation)
}

func (uc *ChatUseCase) deactivateConversation() {
	uc.SetActiveConversation(context.Background(), nil)
}

// sweepTypingLoop clears remote typing entries whose refresh deadline passed.
// Covers the lost typing.stopped case.
func (uc *ChatUseCase) sweepTypingLoop() {
	ticker := time.NewTicker(typingSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if cleared := uc.store.SweepExpiredTyping(now); cleared > 0 {
				logger.Debug("chat: cleared %d expired typing entries", cleared)
			}
		case <-uc.sweepDone:
			return
		}
	}
}
