package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"lokapasar/internal/domain/entity"
	"lokapasar/internal/domain/service"
	"lokapasar/pkg/errors"
)

// fakeHandle mirrors the transport client's handle: handlers keyed by event.
type fakeHandle struct {
	channel  string
	mu       sync.RWMutex
	handlers map[string]service.EventHandler
}

func (h *fakeHandle) On(event string, fn service.EventHandler) {
	h.mu.Lock()
	h.handlers[event] = fn
	h.mu.Unlock()
}

func (h *fakeHandle) Channel() string { return h.channel }

func (h *fakeHandle) dispatch(event string, data []byte) {
	h.mu.RLock()
	fn, ok := h.handlers[event]
	h.mu.RUnlock()
	if ok {
		fn(data)
	}
}

// fakeChannel is an in-process ChannelService. Emit only reaches channels
// that are currently subscribed, which is exactly how the real transport
// drops events for torn-down subscriptions.
type fakeChannel struct {
	mu               sync.Mutex
	subscribed       map[string]*fakeHandle
	subscribeCalls   []string
	unsubscribeCalls []string
	subscribeErr     error
	unsubscribeErr   error
	resets           int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{subscribed: make(map[string]*fakeHandle)}
}

func (f *fakeChannel) Subscribe(channel string) (service.ChannelHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subscribeCalls = append(f.subscribeCalls, channel)
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	h := &fakeHandle{channel: channel, handlers: make(map[string]service.EventHandler)}
	f.subscribed[channel] = h
	return h, nil
}

func (f *fakeChannel) Unsubscribe(channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.unsubscribeCalls = append(f.unsubscribeCalls, channel)
	delete(f.subscribed, channel)
	return f.unsubscribeErr
}

func (f *fakeChannel) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.subscribed = make(map[string]*fakeHandle)
	return nil
}

func (f *fakeChannel) Dispose() error { return nil }

func (f *fakeChannel) subscribedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.subscribed))
	for channel := range f.subscribed {
		out = append(out, channel)
	}
	return out
}

// emit delivers one event to the channel's handle, if subscribed.
func (f *fakeChannel) emit(channel, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}

	f.mu.Lock()
	h, ok := f.subscribed[channel]
	f.mu.Unlock()
	if ok {
		h.dispatch(event, data)
	}
}

type typingCall struct {
	conversationID int64
	typing         bool
	at             time.Time
}

type presenceCall struct {
	conversationID int64
	status         string
}

// fakeChatAPI records calls and serves canned data.
type fakeChatAPI struct {
	mu sync.Mutex

	conversations []*entity.Conversation
	messages      map[int64][]*entity.Message
	nextMessageID int64

	typingCalls   []typingCall
	presenceCalls []presenceCall
	readCalls     []int64

	listErr          error
	createErr        error
	listMessagesHook func()
}

func newFakeChatAPI() *fakeChatAPI {
	return &fakeChatAPI{messages: make(map[int64][]*entity.Message)}
}

func (f *fakeChatAPI) EnsureConversation(ctx context.Context, orderID string) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.conversations {
		if c.OrderID == orderID {
			return c, nil
		}
	}
	conv := &entity.Conversation{
		ID:      int64(len(f.conversations) + 1),
		OrderID: orderID,
		Status:  entity.ConversationStatusActive,
	}
	f.conversations = append(f.conversations, conv)
	return conv, nil
}

func (f *fakeChatAPI) ListConversations(ctx context.Context, role string) ([]*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.conversations, nil
}

func (f *fakeChatAPI) ListMessages(ctx context.Context, conversationID int64, limit, offset int) ([]*entity.Message, int64, error) {
	f.mu.Lock()
	hook := f.listMessagesHook
	msgs := f.messages[conversationID]
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return msgs, int64(len(msgs)), nil
}

func (f *fakeChatAPI) CreateMessage(ctx context.Context, input service.SendMessageInput) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextMessageID++
	msg := &entity.Message{
		ID:             f.nextMessageID,
		ConversationID: input.ConversationID,
		SenderID:       1,
		SenderKind:     entity.SenderKindUser,
		Content:        input.Content,
		Kind:           entity.MessageKindText,
		CreatedAt:      time.Now(),
	}
	f.messages[input.ConversationID] = append(f.messages[input.ConversationID], msg)
	return msg, nil
}

func (f *fakeChatAPI) MarkConversationRead(ctx context.Context, conversationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls = append(f.readCalls, conversationID)
	return nil
}

func (f *fakeChatAPI) SetTyping(ctx context.Context, conversationID int64, typing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typingCalls = append(f.typingCalls, typingCall{conversationID, typing, time.Now()})
	return nil
}

func (f *fakeChatAPI) UpdatePresence(ctx context.Context, conversationID int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presenceCalls = append(f.presenceCalls, presenceCall{conversationID, status})
	return nil
}

func (f *fakeChatAPI) typingCallsSnapshot() []typingCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]typingCall, len(f.typingCalls))
	copy(out, f.typingCalls)
	return out
}

func (f *fakeChatAPI) presenceCallsSnapshot() []presenceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]presenceCall, len(f.presenceCalls))
	copy(out, f.presenceCalls)
	return out
}

// recordingNotifier captures user-facing notifications.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(message string) {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

var errBackendDown = errors.PersistenceFailure("backend down", fmt.Errorf("connection refused"))
