package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lokapasar/internal/domain/entity"
	"lokapasar/internal/domain/service"
	"lokapasar/pkg/errors"
	"lokapasar/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const defaultTimeout = 15 * time.Second

// pingBurst bounds how many typing/presence pings may go out back to back.
// The signals are best-effort; flooding the backend with them buys nothing.
const pingBurst = 5

// ChatClient implements service.ChatAPI over the backend's REST surface.
type ChatClient struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	pingLimiter *rate.Limiter
}

var _ service.ChatAPI = (*ChatClient)(nil)

func NewChatClient(baseURL, token string) *ChatClient {
	return &ChatClient{
		baseURL:     baseURL,
		token:       token,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		pingLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), pingBurst),
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *envelopeError  `json:"error"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pageData struct {
	Items json.RawMessage `json:"items"`
	Total int64           `json:"total"`
}

func (c *ChatClient) EnsureConversation(ctx context.Context, orderID string) (*entity.Conversation, error) {
	var conv entity.Conversation
	path := fmt.Sprintf("/v1/conversations/order/%s", orderID)
	if err := c.do(ctx, http.MethodPost, path, nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *ChatClient) ListConversations(ctx context.Context, role string) ([]*entity.Conversation, error) {
	var conversations []*entity.Conversation
	path := fmt.Sprintf("/v1/conversations?role=%s", role)
	if err := c.do(ctx, http.MethodGet, path, nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (c *ChatClient) ListMessages(ctx context.Context, conversationID int64, limit, offset int) ([]*entity.Message, int64, error) {
	var page pageData
	path := fmt.Sprintf("/v1/conversations/%d/messages?limit=%d&offset=%d", conversationID, limit, offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, 0, err
	}

	var messages []*entity.Message
	if len(page.Items) > 0 {
		if err := json.Unmarshal(page.Items, &messages); err != nil {
			return nil, 0, errors.PersistenceFailure("failed to decode message page", err)
		}
	}
	return messages, page.Total, nil
}

type createMessageRequest struct {
	Content   string `json:"content"`
	Kind      string `json:"kind"`
	MediaURL  string `json:"media_url,omitempty"`
	ClientRef string `json:"client_ref"`
}

func (c *ChatClient) CreateMessage(ctx context.Context, input service.SendMessageInput) (*entity.Message, error) {
	ref := input.ClientRef
	if ref == "" {
		ref = uuid.NewString()
	}
	kind := input.Kind
	if kind == "" {
		kind = entity.MessageKindText
	}

	body := createMessageRequest{
		Content:   input.Content,
		Kind:      kind,
		MediaURL:  input.MediaURL,
		ClientRef: ref,
	}

	var message entity.Message
	path := fmt.Sprintf("/v1/conversations/%d/messages", input.ConversationID)
	if err := c.do(ctx, http.MethodPost, path, body, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *ChatClient) MarkConversationRead(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/v1/conversations/%d/read", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *ChatClient) SetTyping(ctx context.Context, conversationID int64, typing bool) error {
	// Stop pings are exempt from the limiter: dropping one leaves the peer
	// showing a phantom typing indicator until the TTL sweep clears it.
	if typing && !c.pingLimiter.Allow() {
		logger.Debug("chat client: typing ping for conversation %d dropped by rate limit", conversationID)
		return nil
	}

	path := fmt.Sprintf("/v1/conversations/%d/typing", conversationID)
	body := map[string]bool{"typing": typing}
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return errors.AuxiliarySignal("typing ping failed", err)
	}
	return nil
}

func (c *ChatClient) UpdatePresence(ctx context.Context, conversationID int64, status string) error {
	if !c.pingLimiter.Allow() {
		logger.Debug("chat client: presence ping for conversation %d dropped by rate limit", conversationID)
		return nil
	}

	path := fmt.Sprintf("/v1/conversations/%d/presence", conversationID)
	body := map[string]string{"status": status}
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return errors.AuxiliarySignal("presence ping failed", err)
	}
	return nil
}

func (c *ChatClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Internal("failed to marshal request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Internal("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.PersistenceFailure(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.PersistenceFailure("failed to read response body", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.PersistenceFailure(fmt.Sprintf("unexpected response from %s (status %d)", path, resp.StatusCode), err)
	}

	if !env.Success {
		code := "PERSISTENCE_FAILURE"
		message := fmt.Sprintf("%s %s returned status %d", method, path, resp.StatusCode)
		if env.Error != nil {
			code = env.Error.Code
			message = env.Error.Message
		}
		return errors.New(code, message, resp.StatusCode, nil)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.PersistenceFailure("failed to decode response data", err)
		}
	}
	return nil
}
