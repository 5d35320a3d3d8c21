package devserver

import (
	"encoding/json"
	"net/http"
	"sync"

	ws "lokapasar/internal/infrastructure/websocket"
	"lokapasar/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// hubClient is one connected socket with its outbound queue.
type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans channel events out to whoever subscribed the channel. It speaks
// the same frame protocol the engine's channel client does.
type Hub struct {
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[string]map[*hubClient]bool
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subscribers: make(map[string]map[*hubClient]bool),
	}
}

// ServeConn upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeConn(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &hubClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 64),
	}
	logger.Debug("hub: client %s connected", client.id)

	go h.writePump(client)
	h.readPump(client)
	return nil
}

func (h *Hub) readPump(client *hubClient) {
	defer func() {
		h.dropClient(client)
		client.conn.Close()
		close(client.send)
		logger.Debug("hub: client %s disconnected", client.id)
	}()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("hub: read error from client %s: %v", client.id, err)
			}
			return
		}

		var frame ws.CommandFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Warn("hub: dropping malformed command from client %s: %v", client.id, err)
			continue
		}

		switch frame.Action {
		case ws.ActionSubscribe:
			h.subscribe(client, frame.Channel)
		case ws.ActionUnsubscribe:
			h.unsubscribe(client, frame.Channel)
		default:
			logger.Warn("hub: unknown action %q from client %s", frame.Action, client.id)
		}
	}
}

func (h *Hub) writePump(client *hubClient) {
	for payload := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (h *Hub) subscribe(client *hubClient, channel string) {
	if channel == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[channel]
	if !ok {
		subs = make(map[*hubClient]bool)
		h.subscribers[channel] = subs
	}
	subs[client] = true
}

func (h *Hub) unsubscribe(client *hubClient, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subscribers[channel]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscribers, channel)
		}
	}
}

func (h *Hub) dropClient(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for channel, subs := range h.subscribers {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscribers, channel)
		}
	}
}

// Publish pushes one event to every subscriber of the channel. Slow clients
// are skipped rather than blocking the publisher.
func (h *Hub) Publish(channel, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Error("hub: failed to marshal %s payload: %v", event, err)
		return
	}
	frame, err := json.Marshal(ws.EventFrame{Channel: channel, Event: event, Data: payload})
	if err != nil {
		logger.Error("hub: failed to marshal %s frame: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.subscribers[channel] {
		select {
		case client.send <- frame:
		default:
			logger.Warn("hub: client %s send queue full, skipping", client.id)
		}
	}
}
