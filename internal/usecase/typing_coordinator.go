package usecase

import (
	"context"
	"sync"
	"time"

	"lokapasar/internal/domain/service"
	"lokapasar/pkg/logger"
)

const typingCallTimeout = 5 * time.Second

// TypingCoordinator is the local side of typing signals: a per-conversation
// {idle, typing} state machine that debounces keystrokes into start/stop
// pings. Remote typing events are the SubscriptionManager's business, not
// this one's.
//
// At most one debounce timer exists per conversation; every armed timer has a
// matching guaranteed-cleared path through Stop, Deactivate or Dispose.
type TypingCoordinator struct {
	api      service.ChatAPI
	debounce time.Duration

	mu     sync.Mutex
	typing map[int64]bool
	timers map[int64]*time.Timer
}

func NewTypingCoordinator(api service.ChatAPI, debounce time.Duration) *TypingCoordinator {
	return &TypingCoordinator{
		api:      api,
		debounce: debounce,
		typing:   make(map[int64]bool),
		timers:   make(map[int64]*time.Timer),
	}
}

// InputChanged feeds one local content change through the state machine.
// idle + non-empty content -> typing (start ping emitted, timer armed); any
// further change while typing re-arms the timer. Debounce, not throttle.
func (t *TypingCoordinator) InputChanged(conversationID int64, content string) {
	t.mu.Lock()

	if !t.typing[conversationID] {
		if content == "" {
			t.mu.Unlock()
			return
		}
		t.typing[conversationID] = true
		t.armTimerLocked(conversationID)
		t.mu.Unlock()

		t.emit(conversationID, true)
		return
	}

	t.armTimerLocked(conversationID)
	t.mu.Unlock()
}

// Stop transitions back to idle and emits the stop ping. Used on debounce
// expiry, on explicit stop, and when a message is sent.
func (t *TypingCoordinator) Stop(conversationID int64) {
	t.mu.Lock()
	wasTyping := t.typing[conversationID]
	delete(t.typing, conversationID)
	t.clearTimerLocked(conversationID)
	t.mu.Unlock()

	if wasTyping {
		t.emit(conversationID, false)
	}
}

// Deactivate clears the conversation's state without emitting anything. The
// conversation is no longer in focus; a trailing stop ping for it would be
// noise at best and misleading at worst.
func (t *TypingCoordinator) Deactivate(conversationID int64) {
	t.mu.Lock()
	delete(t.typing, conversationID)
	t.clearTimerLocked(conversationID)
	t.mu.Unlock()
}

// Dispose silently clears every outstanding timer.
func (t *TypingCoordinator) Dispose() {
	t.mu.Lock()
	for conversationID := range t.timers {
		t.clearTimerLocked(conversationID)
	}
	t.typing = make(map[int64]bool)
	t.mu.Unlock()
}

// IsTyping reports the local state for a conversation.
func (t *TypingCoordinator) IsTyping(conversationID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing[conversationID]
}

func (t *TypingCoordinator) armTimerLocked(conversationID int64) {
	t.clearTimerLocked(conversationID)
	t.timers[conversationID] = time.AfterFunc(t.debounce, func() {
		t.onExpiry(conversationID)
	})
}

func (t *TypingCoordinator) clearTimerLocked(conversationID int64) {
	if timer, ok := t.timers[conversationID]; ok {
		timer.Stop()
		delete(t.timers, conversationID)
	}
}

func (t *TypingCoordinator) onExpiry(conversationID int64) {
	t.mu.Lock()
	wasTyping := t.typing[conversationID]
	delete(t.typing, conversationID)
	delete(t.timers, conversationID)
	t.mu.Unlock()

	if wasTyping {
		t.emit(conversationID, false)
	}
}

// emit fires the ping without blocking the caller. Failures are logged and
// otherwise silent: typing indicators are best-effort and must never block
// message sending.
func (t *TypingCoordinator) emit(conversationID int64, typing bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), typingCallTimeout)
		defer cancel()

		if err := t.api.SetTyping(ctx, conversationID, typing); err != nil {
			logger.Debug("typing coordinator: ping (typing=%v) for conversation %d failed: %v", typing, conversationID, err)
		}
	}()
}
