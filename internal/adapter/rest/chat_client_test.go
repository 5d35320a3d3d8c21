package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"lokapasar/internal/domain/service"
	"lokapasar/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelopeJSON(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

func errorJSON(code, message string) map[string]interface{} {
	return map[string]interface{}{
		"success":   false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"error":     map[string]string{"code": code, "message": message},
	}
}

func TestEnsureConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/conversations/order/ORD-7", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(envelopeJSON(map[string]interface{}{
			"id": 7, "order_id": "ORD-7", "status": "active",
		}))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "token-123")
	conv, err := client.EnsureConversation(context.Background(), "ORD-7")

	require.NoError(t, err)
	assert.Equal(t, int64(7), conv.ID)
	assert.Equal(t, "ORD-7", conv.OrderID)
}

func TestListConversationsSendsRole(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "seller", r.URL.Query().Get("role"))
		json.NewEncoder(w).Encode(envelopeJSON([]map[string]interface{}{
			{"id": 1, "order_id": "A"},
			{"id": 2, "order_id": "B"},
		}))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "")
	conversations, err := client.ListConversations(context.Background(), "seller")

	require.NoError(t, err)
	assert.Len(t, conversations, 2)
}

func TestListMessagesDecodesPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "50", r.URL.Query().Get("offset"))
		json.NewEncoder(w).Encode(envelopeJSON(map[string]interface{}{
			"items": []map[string]interface{}{
				{"id": 51, "conversation_id": 4, "sender_kind": "shop", "content": "hi"},
			},
			"total": 120, "page": 3, "pageSize": 25, "totalPages": 5,
		}))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "")
	messages, total, err := client.ListMessages(context.Background(), 4, 25, 50)

	require.NoError(t, err)
	assert.Equal(t, int64(120), total)
	require.Len(t, messages, 1)
	assert.Equal(t, int64(51), messages[0].ID)
}

func TestCreateMessageFillsClientRef(t *testing.T) {
	var received createMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(envelopeJSON(map[string]interface{}{
			"id": 12, "conversation_id": 4, "content": received.Content,
		}))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "")
	message, err := client.CreateMessage(context.Background(), service.SendMessageInput{
		ConversationID: 4,
		Content:        "on its way",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(12), message.ID)
	assert.Equal(t, "text", received.Kind)
	assert.NotEmpty(t, received.ClientRef, "client ref must be generated when absent")
}

func TestErrorEnvelopeBecomesAppError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errorJSON("NOT_FOUND", "conversation not found"))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "")
	_, err := client.EnsureConversation(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestNonJSONResponseIsPersistenceFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>upstream exploded</html>"))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "")
	err := client.MarkConversationRead(context.Background(), 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, "PERSISTENCE_FAILURE"))
}

func TestTypingPingFailureIsAuxiliary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errorJSON("INTERNAL_ERROR", "boom"))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "")
	err := client.SetTyping(context.Background(), 1, true)

	require.Error(t, err)
	assert.True(t, errors.Is(err, "AUXILIARY_SIGNAL"))
}

func TestPingRateLimitDropsExcess(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(envelopeJSON(map[string]bool{"typing": true}))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "")
	for i := 0; i < 50; i++ {
		assert.NoError(t, client.SetTyping(context.Background(), 1, true))
	}

	// The limiter admits the burst and drops the flood silently.
	assert.LessOrEqual(t, calls, pingBurst+2)
	assert.Greater(t, calls, 0)
}

func TestStopTypingPingBypassesRateLimit(t *testing.T) {
	var mu sync.Mutex
	var received []bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		received = append(received, body["typing"])
		mu.Unlock()
		json.NewEncoder(w).Encode(envelopeJSON(body))
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "")
	for i := 0; i < 50; i++ {
		require.NoError(t, client.SetTyping(context.Background(), 1, true))
	}

	// Even with the limiter exhausted, the stop ping goes out; a dropped
	// stop would strand the peer's typing indicator.
	require.NoError(t, client.SetTyping(context.Background(), 1, false))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, received)
	assert.False(t, received[len(received)-1])
}
