package devserver

import (
	"strconv"
	"time"

	"lokapasar/internal/domain/entity"
	"lokapasar/internal/domain/service"
	ws "lokapasar/internal/infrastructure/websocket"
	"lokapasar/pkg/errors"
	"lokapasar/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server is the development backend harness: the REST surface and channel
// transport the engine consumes, backed by an in-memory store. A test
// fixture, not a product surface.
type Server struct {
	echo   *echo.Echo
	store  *memStore
	hub    *Hub
	secret string
}

type requestValidator struct {
	validator *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

func New(secret string) *Server {
	s := &Server{
		echo:   echo.New(),
		store:  newMemStore(),
		hub:    NewHub(),
		secret: secret,
	}

	e := s.echo
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Validator = &requestValidator{validator: validator.New()}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	auth := authMiddleware(secret)
	v1 := e.Group("/v1", auth)
	v1.POST("/conversations/order/:orderID", s.ensureConversation)
	v1.GET("/conversations", s.listConversations)
	v1.GET("/conversations/:id/messages", s.listMessages)
	v1.POST("/conversations/:id/messages", s.createMessage)
	v1.POST("/conversations/:id/read", s.markRead)
	v1.POST("/conversations/:id/typing", s.setTyping)
	v1.POST("/conversations/:id/presence", s.updatePresence)
	v1.GET("/channel", s.channel)

	return s
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) ensureConversation(c echo.Context) error {
	orderID := c.Param("orderID")
	if orderID == "" {
		return response.Error(c, errors.BadRequest("order id is required", nil))
	}
	conv := s.store.ensureConversation(orderID, claimsFrom(c))
	return response.Success(c, conv)
}

func (s *Server) listConversations(c echo.Context) error {
	role := c.QueryParam("role")
	if role == "" {
		role = entity.RoleBuyer
	}
	if role != entity.RoleBuyer && role != entity.RoleSeller {
		return response.Error(c, errors.BadRequest("role must be buyer or seller", nil))
	}
	return response.Success(c, s.store.listConversations(role, claimsFrom(c)))
}

func (s *Server) listMessages(c echo.Context) error {
	conversationID, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}
	if _, err := s.store.conversation(conversationID); err != nil {
		return response.Error(c, err)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	messages, total := s.store.listMessages(conversationID, limit, offset)
	page := (offset / limit) + 1
	return response.Paginated(c, messages, total, page, limit)
}

type createMessageRequest struct {
	Content   string `json:"content" validate:"required"`
	Kind      string `json:"kind" validate:"omitempty,oneof=text image audio"`
	MediaURL  string `json:"media_url"`
	ClientRef string `json:"client_ref"`
}

func (s *Server) createMessage(c echo.Context) error {
	conversationID, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req createMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}
	if req.Kind == "" {
		req.Kind = entity.MessageKindText
	}

	claims := claimsFrom(c)
	msg, err := s.store.createMessage(conversationID, claims, req.Content, req.Kind, req.MediaURL, req.ClientRef)
	if err != nil {
		return response.Error(c, err)
	}

	s.hub.Publish(channelFor(conversationID), service.EventMessageSent, ws.MessagePayload{
		UserID:         claims.UserID,
		MessageID:      msg.ID,
		ConversationID: conversationID,
		SenderKind:     msg.SenderKind,
		Content:        msg.Content,
		Kind:           msg.Kind,
		MediaURL:       msg.MediaURL,
		CreatedAt:      msg.CreatedAt.UTC().Format(time.RFC3339),
	})

	return response.Created(c, msg)
}

func (s *Server) markRead(c echo.Context) error {
	conversationID, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}
	if _, err := s.store.conversation(conversationID); err != nil {
		return response.Error(c, err)
	}
	s.store.markRead(conversationID, claimsFrom(c))
	return response.Success(c, map[string]bool{"marked": true})
}

type typingRequest struct {
	Typing bool `json:"typing"`
}

func (s *Server) setTyping(c echo.Context) error {
	conversationID, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req typingRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("invalid request body", err))
	}

	claims := claimsFrom(c)
	event := service.EventTypingStopped
	if req.Typing {
		event = service.EventTypingStarted
	}
	s.hub.Publish(channelFor(conversationID), event, ws.TypingPayload{
		UserID:         claims.UserID,
		ConversationID: conversationID,
		DisplayName:    claims.Name,
		Kind:           claims.Kind,
	})

	return response.Success(c, map[string]bool{"typing": req.Typing})
}

type presenceRequest struct {
	Status string `json:"status" validate:"required,oneof=online offline"`
}

func (s *Server) updatePresence(c echo.Context) error {
	conversationID, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req presenceRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	claims := claimsFrom(c)
	s.hub.Publish(channelFor(conversationID), service.EventPresenceChanged, ws.PresencePayload{
		UserID:         claims.UserID,
		ConversationID: conversationID,
		Online:         req.Status == "online",
		LastSeen:       time.Now().UTC().Format(time.RFC3339),
	})

	return response.Success(c, map[string]string{"status": req.Status})
}

func (s *Server) channel(c echo.Context) error {
	return s.hub.ServeConn(c.Response(), c.Request())
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.BadRequest("invalid conversation id", err)
	}
	return id, nil
}

func channelFor(conversationID int64) string {
	return "conversation." + strconv.FormatInt(conversationID, 10)
}
