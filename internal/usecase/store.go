package usecase

import (
	"sort"
	"sync"
	"time"

	"lokapasar/internal/domain/entity"
)

// ConversationStore is the authoritative in-memory chat state: conversations,
// the active conversation's messages, typing/presence arenas, loading/error
// flags. It is a pure state machine; it never performs network calls. Every
// mutation goes through one of the action methods below, each of which is
// total and never panics. The mutex keeps the single-writer discipline the
// event-delivery goroutine and UI goroutine share.
type ConversationStore struct {
	localUserID int64

	mu            sync.RWMutex
	conversations []*entity.Conversation
	active        *entity.Conversation
	messages      []*entity.Message
	messageIDs    map[int64]struct{}
	typing        map[int64]map[int64]entity.TypingEntry
	presence      map[int64]map[int64]entity.PresenceEntry
	loading       bool
	lastError     string
	epoch         int64
}

func NewConversationStore(localUserID int64) *ConversationStore {
	return &ConversationStore{
		localUserID: localUserID,
		messageIDs:  make(map[int64]struct{}),
		typing:      make(map[int64]map[int64]entity.TypingEntry),
		presence:    make(map[int64]map[int64]entity.PresenceEntry),
	}
}

func (s *ConversationStore) SetConversations(conversations []*entity.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make([]*entity.Conversation, 0, len(conversations))
	for _, c := range conversations {
		if c != nil {
			s.conversations = append(s.conversations, c)
		}
	}
}

// SetActiveConversation switches the active conversation. Activating nil
// clears the message list but leaves the typing/presence arenas alone;
// activating a conversation resets its arenas (and drops the previous
// conversation's) so stale signals never bleed across a switch. Each
// non-nil activation advances the epoch used to discard stale message loads.
func (s *ConversationStore) SetActiveConversation(conversation *entity.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.active
	s.active = conversation
	s.messages = nil
	s.messageIDs = make(map[int64]struct{})
	s.epoch++

	if conversation == nil {
		return
	}

	if previous != nil && previous.ID != conversation.ID {
		delete(s.typing, previous.ID)
		delete(s.presence, previous.ID)
	}
	delete(s.typing, conversation.ID)
	delete(s.presence, conversation.ID)
}

func (s *ConversationStore) SetMessages(messages []*entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.messageIDs = make(map[int64]struct{})
	for _, m := range messages {
		if m == nil {
			continue
		}
		if _, seen := s.messageIDs[m.ID]; seen {
			continue
		}
		s.messages = append(s.messages, m)
		s.messageIDs[m.ID] = struct{}{}
	}
}

// AddMessage appends in call order; the transport is trusted to deliver in
// arrival order, so no re-sorting happens here. Duplicate ids (REST confirm
// racing the channel echo of the same message) are dropped.
func (s *ConversationStore) AddMessage(message *entity.Message) {
	if message == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil || s.active.ID != message.ConversationID {
		return
	}
	if _, seen := s.messageIDs[message.ID]; seen {
		return
	}
	s.messages = append(s.messages, message)
	s.messageIDs[message.ID] = struct{}{}
}

func (s *ConversationStore) UpdateLastMessage(conversationID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if c.ID == conversationID {
			c.TouchLastMessage(at)
		}
	}
	if s.active != nil && s.active.ID == conversationID {
		s.active.TouchLastMessage(at)
	}
}

// MarkRead stamps read_at on every loaded message of the conversation whose
// sender kind differs from localKind and that has no read_at yet. Idempotent;
// messages authored by the local party are never touched.
func (s *ConversationStore) MarkRead(conversationID int64, localKind string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if m.SenderKind == localKind {
			continue
		}
		m.MarkRead(at)
	}
}

// SetTypingUser records a remote participant typing. The local user's own id
// is never admitted, so a mis-routed echo of our own typing ping cannot show
// up as a phantom peer.
func (s *ConversationStore) SetTypingUser(conversationID int64, entry entity.TypingEntry) {
	if entry.UserID == s.localUserID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	arena, ok := s.typing[conversationID]
	if !ok {
		arena = make(map[int64]entity.TypingEntry)
		s.typing[conversationID] = arena
	}
	arena[entry.UserID] = entry
}

func (s *ConversationStore) RemoveTypingUser(conversationID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if arena, ok := s.typing[conversationID]; ok {
		delete(arena, userID)
		if len(arena) == 0 {
			delete(s.typing, conversationID)
		}
	}
}

func (s *ConversationStore) SetPresence(conversationID int64, entry entity.PresenceEntry) {
	if entry.UserID == s.localUserID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	arena, ok := s.presence[conversationID]
	if !ok {
		arena = make(map[int64]entity.PresenceEntry)
		s.presence[conversationID] = arena
	}
	arena[entry.UserID] = entry
}

func (s *ConversationStore) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

func (s *ConversationStore) SetError(message string) {
	s.mu.Lock()
	s.lastError = message
	s.mu.Unlock()
}

// SweepExpiredTyping drops typing entries whose deadline passed without a
// refresh. A peer whose typing.stopped event was lost would otherwise appear
// to type forever. Returns how many entries were cleared.
func (s *ConversationStore) SweepExpiredTyping(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	for conversationID, arena := range s.typing {
		for userID, entry := range arena {
			if entry.Expired(now) {
				delete(arena, userID)
				cleared++
			}
		}
		if len(arena) == 0 {
			delete(s.typing, conversationID)
		}
	}
	return cleared
}

// Selectors. Conversations and Messages return snapshot copies of the
// entities, not the store's own pointers: the store keeps mutating its
// entities (TouchLastMessage, MarkRead) under its lock, and callers read the
// results from another goroutine.

func (s *ConversationStore) ActiveConversation() *entity.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *ConversationStore) Conversations() []*entity.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		snapshot := *c
		out[i] = &snapshot
	}
	return out
}

func (s *ConversationStore) Messages() []*entity.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Message, len(s.messages))
	for i, m := range s.messages {
		snapshot := *m
		out[i] = &snapshot
	}
	return out
}

func (s *ConversationStore) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *ConversationStore) TypingUsers(conversationID int64) []entity.TypingEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	arena := s.typing[conversationID]
	out := make([]entity.TypingEntry, 0, len(arena))
	for _, entry := range arena {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *ConversationStore) OnlineUsers(conversationID int64) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	arena := s.presence[conversationID]
	out := make([]int64, 0, len(arena))
	for userID, entry := range arena {
		if entry.Online {
			out = append(out, userID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UnreadCount counts loaded messages of the conversation that were authored
// by the other party and carry no read receipt yet.
func (s *ConversationStore) UnreadCount(conversationID int64, localKind string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if m.SenderKind == localKind {
			continue
		}
		if m.ReadAt == nil {
			count++
		}
	}
	return count
}

func (s *ConversationStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *ConversationStore) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Epoch identifies the current activation generation. Loads capture it when
// they start and compare on resolution; a mismatch means the user switched
// conversations while the load was in flight and the result must be dropped.
func (s *ConversationStore) Epoch() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}
