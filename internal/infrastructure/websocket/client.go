package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"lokapasar/internal/domain/service"
	"lokapasar/pkg/errors"
	"lokapasar/pkg/logger"

	"github.com/gorilla/websocket"
)

// handle is one live channel subscription. Handles from before a Reset stay
// allocated but are detached from the client's routing table, so their
// handlers simply never fire again.
type handle struct {
	channel  string
	mu       sync.RWMutex
	handlers map[string]service.EventHandler
}

func (h *handle) On(event string, fn service.EventHandler) {
	h.mu.Lock()
	h.handlers[event] = fn
	h.mu.Unlock()
}

func (h *handle) Channel() string {
	return h.channel
}

func (h *handle) dispatch(event string, data []byte) {
	h.mu.RLock()
	fn, ok := h.handlers[event]
	h.mu.RUnlock()
	if ok {
		fn(data)
	}
}

// Client is the process-wide channel transport: one socket, many rebindable
// subscriptions. It is constructed explicitly and injected where needed.
type Client struct {
	url    string
	token  string
	dialer *websocket.Dialer

	mu      sync.RWMutex
	conn    *websocket.Conn
	handles map[string]*handle
	closed  bool
}

func NewClient(url, token string) *Client {
	return &Client{
		url:     url,
		token:   token,
		dialer:  websocket.DefaultDialer,
		handles: make(map[string]*handle),
	}
}

// Init dials the socket and starts the read pump. Calling Init on an already
// connected client is a no-op.
func (c *Client) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, err := c.dial()
	if err != nil {
		return err
	}

	c.conn = conn
	c.closed = false
	go c.readPump(conn)
	return nil
}

func (c *Client) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := c.dialer.Dial(c.url, header)
	if err != nil {
		return nil, errors.TransportFailure("failed to connect channel service", err)
	}
	return conn, nil
}

// Subscribe opens a subscription on a channel and returns its handle.
// Subscribing to an already subscribed channel replaces the previous handle.
func (c *Client) Subscribe(channel string) (service.ChannelHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, errors.TransportFailure("channel client is not connected", nil)
	}

	if err := c.writeCommand(CommandFrame{Action: ActionSubscribe, Channel: channel}); err != nil {
		return nil, err
	}

	h := &handle{
		channel:  channel,
		handlers: make(map[string]service.EventHandler),
	}
	c.handles[channel] = h
	logger.Debug("channel client: subscribed %s", channel)
	return h, nil
}

// Unsubscribe closes the subscription on a channel. Unknown channels are
// tolerated; a detached channel must never block a rebind.
func (c *Client) Unsubscribe(channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.handles, channel)

	if c.conn == nil {
		return nil
	}

	if err := c.writeCommand(CommandFrame{Action: ActionUnsubscribe, Channel: channel}); err != nil {
		return err
	}
	logger.Debug("channel client: unsubscribed %s", channel)
	return nil
}

// Reset drops the socket and reconnects. Every subscription made before the
// reset is invalid afterwards; callers rebind the channels they still want.
func (c *Client) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.handles = make(map[string]*handle)

	conn, err := c.dial()
	if err != nil {
		return err
	}

	c.conn = conn
	c.closed = false
	go c.readPump(conn)
	logger.Info("channel client: reset, previous subscriptions invalidated")
	return nil
}

// Dispose closes the socket for good.
func (c *Client) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.handles = make(map[string]*handle)
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// writeCommand must be called with c.mu held; gorilla permits one concurrent
// writer only.
func (c *Client) writeCommand(frame CommandFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return errors.Internal("failed to marshal channel command", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.TransportFailure(fmt.Sprintf("failed to send %s for %s", frame.Action, frame.Channel), err)
	}
	return nil
}

// readPump is the single event-delivery goroutine for one socket generation.
// It exits when the socket closes; a Reset starts a fresh pump on the new
// socket.
func (c *Client) readPump(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.RLock()
			closed := c.closed || c.conn != conn
			c.mu.RUnlock()
			if !closed {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn("channel client: read error: %v", err)
				}
			}
			return
		}

		var frame EventFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Warn("channel client: dropping malformed frame: %v", err)
			continue
		}

		c.mu.RLock()
		h, ok := c.handles[frame.Channel]
		stale := c.conn != conn
		c.mu.RUnlock()

		// Frames still in flight from a torn-down socket generation are not
		// applied.
		if stale || !ok {
			continue
		}

		h.dispatch(frame.Event, frame.Data)
	}
}
