package usecase

import (
	"context"
	"sync"
	"time"

	"lokapasar/internal/domain/service"
	"lokapasar/pkg/logger"
)

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

const presenceCallTimeout = 5 * time.Second

// PresenceTracker marks the local user online when a chat surface for a
// conversation becomes visible and offline when it goes away. Pings are
// best-effort; failures are logged and never surfaced.
type PresenceTracker struct {
	api service.ChatAPI

	mu      sync.Mutex
	visible map[int64]bool
}

func NewPresenceTracker(api service.ChatAPI) *PresenceTracker {
	return &PresenceTracker{
		api:     api,
		visible: make(map[int64]bool),
	}
}

func (p *PresenceTracker) SurfaceVisible(conversationID int64) {
	p.mu.Lock()
	already := p.visible[conversationID]
	p.visible[conversationID] = true
	p.mu.Unlock()

	if !already {
		p.emit(conversationID, PresenceOnline)
	}
}

func (p *PresenceTracker) SurfaceHidden(conversationID int64) {
	p.mu.Lock()
	wasVisible := p.visible[conversationID]
	delete(p.visible, conversationID)
	p.mu.Unlock()

	if wasVisible {
		p.emit(conversationID, PresenceOffline)
	}
}

// Dispose marks every still-visible conversation offline.
func (p *PresenceTracker) Dispose() {
	p.mu.Lock()
	remaining := make([]int64, 0, len(p.visible))
	for conversationID := range p.visible {
		remaining = append(remaining, conversationID)
	}
	p.visible = make(map[int64]bool)
	p.mu.Unlock()

	for _, conversationID := range remaining {
		p.emit(conversationID, PresenceOffline)
	}
}

func (p *PresenceTracker) emit(conversationID int64, status string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), presenceCallTimeout)
		defer cancel()

		if err := p.api.UpdatePresence(ctx, conversationID, status); err != nil {
			logger.Debug("presence tracker: %s ping for conversation %d failed: %v", status, conversationID, err)
		}
	}()
}
