package usecase

import (
	"sort"
	"sync"

	"lokapasar/internal/domain/entity"
)

// RenderMode picks how the dock is laid out. It affects eligibility for
// rendering only; window bookkeeping is identical in every mode.
type RenderMode string

const (
	RenderModeDocked  RenderMode = "docked"
	RenderModeCompact RenderMode = "compact"
)

// compactViewportWidth is the widest viewport still considered constrained.
const compactViewportWidth = 768

// SelectRenderMode maps a viewport width to a render mode.
func SelectRenderMode(viewportWidth int) RenderMode {
	if viewportWidth < compactViewportWidth {
		return RenderModeCompact
	}
	return RenderModeDocked
}

const (
	windowBaseX    = 24
	windowBaseY    = 24
	windowCascade  = 36
	maxCascadeStep = 8
)

// WindowManager tracks the set of concurrently open chat windows, keyed by
// order id, independent of which conversation is active. Many windows can be
// open; the transport supports a single inbound stream of interest, so only
// the window bound to the active conversation is actually live. Everything
// else is bookkeeping until promoted.
type WindowManager struct {
	activeID   func() int64
	activate   func(conversation *entity.Conversation)
	deactivate func()

	mu      sync.Mutex
	windows map[string]*entity.ChatWindow
	openSeq int64
}

// NewWindowManager wires the manager to the facade: activeID reports the
// currently active conversation, activate/deactivate drive the subscription
// switch when a window is promoted or the active one closes.
func NewWindowManager(activeID func() int64, activate func(*entity.Conversation), deactivate func()) *WindowManager {
	return &WindowManager{
		activeID:   activeID,
		activate:   activate,
		deactivate: deactivate,
		windows:    make(map[string]*entity.ChatWindow),
	}
}

// Open inserts or replaces the window for the order. A replacement keeps the
// last-known position but adopts the newest conversation/order snapshot and
// becomes the most recently opened window; a fresh window gets a cascaded
// default position and starts maximized.
func (w *WindowManager) Open(conversation *entity.Conversation, order *entity.Order) {
	if conversation == nil || order == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.openSeq++
	if existing, ok := w.windows[order.ID]; ok {
		existing.Conversation = conversation
		existing.Order = order
		existing.IsMinimized = false
		existing.OpenedSeq = w.openSeq
		return
	}

	step := len(w.windows)
	if step > maxCascadeStep {
		step = maxCascadeStep
	}
	w.windows[order.ID] = &entity.ChatWindow{
		OrderID:      order.ID,
		Conversation: conversation,
		Order:        order,
		IsMinimized:  false,
		Position: entity.Position{
			X: windowBaseX + step*windowCascade,
			Y: windowBaseY + step*windowCascade,
		},
		OpenedSeq: w.openSeq,
	}
}

// Close removes the window. Closing the window of the active conversation
// deactivates it, which tears down the live subscription.
func (w *WindowManager) Close(orderID string) {
	w.mu.Lock()
	window, ok := w.windows[orderID]
	if ok {
		delete(w.windows, orderID)
	}
	w.mu.Unlock()

	if !ok || window.Conversation == nil {
		return
	}
	if window.Conversation.ID == w.activeID() {
		w.deactivate()
	}
}

func (w *WindowManager) Minimize(orderID string) {
	w.mu.Lock()
	if window, ok := w.windows[orderID]; ok {
		window.IsMinimized = true
	}
	w.mu.Unlock()
}

// Maximize restores the window and promotes its conversation to active if it
// is not already.
func (w *WindowManager) Maximize(orderID string) {
	w.mu.Lock()
	window, ok := w.windows[orderID]
	if ok {
		window.IsMinimized = false
	}
	w.mu.Unlock()

	if !ok || window.Conversation == nil {
		return
	}
	if window.Conversation.ID != w.activeID() {
		w.activate(window.Conversation)
	}
}

// SetPosition persists a dragged window position for the session.
func (w *WindowManager) SetPosition(orderID string, position entity.Position) {
	w.mu.Lock()
	if window, ok := w.windows[orderID]; ok {
		window.Position = position
	}
	w.mu.Unlock()
}

// Windows returns every open window, oldest opened first.
func (w *WindowManager) Windows() []*entity.ChatWindow {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]*entity.ChatWindow, 0, len(w.windows))
	for _, window := range w.windows {
		out = append(out, window)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedSeq < out[j].OpenedSeq })
	return out
}

func (w *WindowManager) Window(orderID string) (*entity.ChatWindow, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	window, ok := w.windows[orderID]
	return window, ok
}

func (w *WindowManager) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.windows)
}

// Renderable returns the windows the view layer may actually mount live.
// Only the window bound to the active conversation qualifies; on compact
// viewports it additionally must be the most recently opened window. All
// other open windows stay bookkeeping-only until promoted.
func (w *WindowManager) Renderable(mode RenderMode) []*entity.ChatWindow {
	activeID := w.activeID()

	w.mu.Lock()
	defer w.mu.Unlock()

	var live *entity.ChatWindow
	var newest *entity.ChatWindow
	for _, window := range w.windows {
		if newest == nil || window.OpenedSeq > newest.OpenedSeq {
			newest = window
		}
		if window.Conversation != nil && window.Conversation.ID == activeID {
			live = window
		}
	}

	if live == nil {
		return nil
	}
	if mode == RenderModeCompact && live != newest {
		return nil
	}
	return []*entity.ChatWindow{live}
}
