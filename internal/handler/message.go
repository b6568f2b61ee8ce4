package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/flynkle/flynkle-api/internal/middleware"
	"github.com/flynkle/flynkle-api/internal/model"
	"github.com/flynkle/flynkle-api/internal/quota"
	"github.com/flynkle/flynkle-api/internal/ratelimit"
	"github.com/flynkle/flynkle-api/internal/repository"
	"github.com/flynkle/flynkle-api/internal/response"
)

// MessageHandler serves the messages nested under a conversation.  All
// routes take the conversation id from the path and apply the same
// ownership-as-404 rule as the conversation endpoints.
type MessageHandler struct {
	Conversations *repository.ConversationRepo
	Messages      *repository.MessageRepo
	Gate          *quota.Gate
	Limiter       *ratelimit.Limiter
}

func NewMessageHandler(convs *repository.ConversationRepo, msgs *repository.MessageRepo, g *quota.Gate, l *ratelimit.Limiter) *MessageHandler {
	return &MessageHandler{Conversations: convs, Messages: msgs, Gate: g, Limiter: l}
}

type messageReq struct {
	Content     json.RawMessage `json:"content"`
	MessageType string          `json:"message_type"`
	Metadata    json.RawMessage `json:"metadata"`
}

type messageView struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	UserID         *string         `json:"user_id"`
	Content        json.RawMessage `json:"content"`
	MessageType    string          `json:"message_type"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toMessageView(m model.Message) messageView {
	return messageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		Content:        m.Content,
		MessageType:    m.MessageType,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
	}
}

// ownedMessageConversation checks the caller owns the conversation named
// in the path.
func (h *MessageHandler) ownedMessageConversation(ctx context.Context, c echo.Context) (model.Conversation, error) {
	cv, err := h.Conversations.GetByID(ctx, c.Param("id"))
	if err != nil {
		return model.Conversation{}, err
	}
	if cv.UserID != middleware.CurrentUser(c).ID {
		return model.Conversation{}, repository.ErrNotFound
	}
	return cv, nil
}

// Create appends a message to one of the caller's conversations.  The
// daily message ceiling (and, for file messages, the upload ceiling) is
// checked before anything is written; the counter is incremented after the
// row exists.
func (h *MessageHandler) Create(c echo.Context) error {
	u := middleware.CurrentUser(c)

	var req messageReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	if len(req.Content) == 0 {
		return response.Fail(c, http.StatusBadRequest, "content required")
	}
	if req.MessageType == "" {
		req.MessageType = model.MessageTypeText
	}
	if req.MessageType != model.MessageTypeText && req.MessageType != model.MessageTypeFile {
		return response.Fail(c, http.StatusBadRequest, "unknown message_type")
	}

	if err := h.Limiter.Check(u.ID, ratelimit.ActionMessaging); err != nil {
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(h.Limiter.Window().Seconds())))
		return response.Fail(c, http.StatusTooManyRequests, "too many messages")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cv, err := h.ownedMessageConversation(ctx, c)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "conversation not found")
		}
		log.Printf("message: get conversation: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "create failed")
	}

	if err := h.Gate.CheckMessageCreate(ctx, u.ID, u.Plan, req.MessageType == model.MessageTypeFile); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			return response.Fail(c, http.StatusForbidden, "daily limit reached, upgrade required")
		}
		log.Printf("message: quota check: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "create failed")
	}

	uid := u.ID
	m, err := h.Messages.Create(ctx, cv.ID, &uid, req.Content, req.MessageType)
	if err != nil {
		log.Printf("message: create: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "create failed")
	}

	if err := h.Gate.Ledger().IncrementMessages(ctx, u.ID, h.Gate.Today()); err != nil {
		log.Printf("message: increment usage: %v", err) // message exists, counter is best-effort
	}
	return response.Created(c, toMessageView(m))
}

// List returns a page of messages in one of the caller's conversations,
// oldest first.
func (h *MessageHandler) List(c echo.Context) error {
	offset, limit := pageParams(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cv, err := h.ownedMessageConversation(ctx, c)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "conversation not found")
		}
		log.Printf("message: get conversation: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "list failed")
	}

	msgs, err := h.Messages.ListByConversation(ctx, cv.ID, offset, limit)
	if err != nil {
		log.Printf("message: list: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "list failed")
	}
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, toMessageView(m))
	}
	return response.Success(c, views)
}

// Get returns one message from one of the caller's conversations.
func (h *MessageHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.ownedMessage(ctx, c)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "message not found")
		}
		log.Printf("message: get: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "lookup failed")
	}
	return response.Success(c, toMessageView(m))
}

// Update patches a message's content, type or metadata.
func (h *MessageHandler) Update(c echo.Context) error {
	var req messageReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	if len(req.Content) == 0 && req.MessageType == "" && len(req.Metadata) == 0 {
		return response.Fail(c, http.StatusBadRequest, "nothing to update")
	}
	var mt *string
	if req.MessageType != "" {
		if req.MessageType != model.MessageTypeText && req.MessageType != model.MessageTypeFile {
			return response.Fail(c, http.StatusBadRequest, "unknown message_type")
		}
		mt = &req.MessageType
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.ownedMessage(ctx, c)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "message not found")
		}
		log.Printf("message: get for update: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "update failed")
	}

	updated, err := h.Messages.Update(ctx, m.ID, req.Content, mt, req.Metadata)
	if err != nil {
		log.Printf("message: update: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "update failed")
	}
	return response.Success(c, toMessageView(updated))
}

// Delete removes a message from one of the caller's conversations.
func (h *MessageHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.ownedMessage(ctx, c)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "message not found")
		}
		log.Printf("message: get for delete: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "delete failed")
	}

	if err := h.Messages.Delete(ctx, m.ID); err != nil {
		log.Printf("message: delete: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "delete failed")
	}
	return response.Success(c, echo.Map{"detail": "message deleted"})
}

// ownedMessage loads the message named by :message_id and verifies it
// belongs to the conversation in the path and that conversation to the
// caller.
func (h *MessageHandler) ownedMessage(ctx context.Context, c echo.Context) (model.Message, error) {
	cv, err := h.ownedMessageConversation(ctx, c)
	if err != nil {
		return model.Message{}, err
	}
	m, err := h.Messages.GetByID(ctx, c.Param("message_id"))
	if err != nil {
		return model.Message{}, err
	}
	if m.ConversationID != cv.ID {
		return model.Message{}, repository.ErrNotFound
	}
	return m, nil
}

// pageParams reads offset/limit query parameters with sane defaults.
func pageParams(c echo.Context) (int, int) {
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	return offset, limit
}
