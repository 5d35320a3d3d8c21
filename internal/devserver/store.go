package devserver

import (
	"sync"
	"time"

	"lokapasar/internal/domain/entity"
	"lokapasar/pkg/errors"
)

// memStore is the harness's in-memory persistence. It exists so the engine
// can be exercised end to end without a real backend; nothing here survives a
// restart.
type memStore struct {
	mu            sync.Mutex
	conversations map[int64]*entity.Conversation
	byOrder       map[string]int64
	messages      map[int64][]*entity.Message
	byClientRef   map[string]*entity.Message
	nextConvID    int64
	nextMsgID     int64
}

func newMemStore() *memStore {
	return &memStore{
		conversations: make(map[int64]*entity.Conversation),
		byOrder:       make(map[string]int64),
		messages:      make(map[int64][]*entity.Message),
		byClientRef:   make(map[string]*entity.Message),
	}
}

// ensureConversation is the get-or-create behind the order chat button.
func (s *memStore) ensureConversation(orderID string, claims *Claims) *entity.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byOrder[orderID]; ok {
		return s.conversations[id]
	}

	s.nextConvID++
	conv := &entity.Conversation{
		ID:            s.nextConvID,
		OrderID:       orderID,
		Status:        entity.ConversationStatusActive,
		CreatedAt:     time.Now(),
		LastMessageAt: time.Now(),
	}
	if claims.Kind == entity.SenderKindShop {
		conv.ShopID = claims.ShopID
		conv.ShopName = claims.Name
	} else {
		conv.UserID = claims.UserID
		conv.BuyerName = claims.Name
		conv.ShopID = 1
		conv.ShopName = "Demo Shop"
	}

	s.conversations[conv.ID] = conv
	s.byOrder[orderID] = conv.ID
	return conv
}

func (s *memStore) listConversations(role string, claims *Claims) []*entity.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entity.Conversation, 0)
	for _, conv := range s.conversations {
		if role == entity.RoleSeller {
			if conv.ShopID == claims.ShopID {
				out = append(out, conv)
			}
		} else if conv.UserID == claims.UserID {
			out = append(out, conv)
		}
	}
	return out
}

func (s *memStore) conversation(id int64) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, errors.NotFound("conversation", nil)
	}
	return conv, nil
}

func (s *memStore) listMessages(conversationID int64, limit, offset int) ([]*entity.Message, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.messages[conversationID]
	total := int64(len(all))
	if offset >= len(all) {
		return []*entity.Message{}, total
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	page := make([]*entity.Message, end-offset)
	copy(page, all[offset:end])
	return page, total
}

func (s *memStore) createMessage(conversationID int64, claims *Claims, content, kind, mediaURL, clientRef string) (*entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, errors.NotFound("conversation", nil)
	}

	// Retried sends with the same client ref return the original message.
	if clientRef != "" {
		if existing, ok := s.byClientRef[clientRef]; ok {
			return existing, nil
		}
	}

	s.nextMsgID++
	msg := &entity.Message{
		ID:             s.nextMsgID,
		ConversationID: conversationID,
		SenderID:       claims.UserID,
		SenderKind:     claims.Kind,
		Content:        content,
		Kind:           kind,
		MediaURL:       mediaURL,
		ClientRef:      clientRef,
		CreatedAt:      time.Now(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	if clientRef != "" {
		s.byClientRef[clientRef] = msg
	}
	conv.TouchLastMessage(msg.CreatedAt)
	return msg, nil
}

func (s *memStore) markRead(conversationID int64, claims *Claims) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, msg := range s.messages[conversationID] {
		if msg.SenderKind != claims.Kind {
			msg.MarkRead(now)
		}
	}
}
