package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/flynkle/flynkle-api/internal/middleware"
	"github.com/flynkle/flynkle-api/internal/model"
	"github.com/flynkle/flynkle-api/internal/quota"
	"github.com/flynkle/flynkle-api/internal/repository"
	"github.com/flynkle/flynkle-api/internal/response"
)

// ConversationHandler serves conversation CRUD for the authenticated user.
// Conversations belong to exactly one user; access to someone else's
// conversation answers 404, never 403, so ids cannot be probed.
type ConversationHandler struct {
	Conversations *repository.ConversationRepo
	Gate          *quota.Gate
}

func NewConversationHandler(convs *repository.ConversationRepo, g *quota.Gate) *ConversationHandler {
	return &ConversationHandler{Conversations: convs, Gate: g}
}

type conversationReq struct {
	Title  *string `json:"title"`
	Status *string `json:"status"`
}

type conversationView struct {
	ID        string    `json:"id"`
	Title     *string   `json:"title"`
	Status    *string   `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toConversationView(cv model.Conversation) conversationView {
	return conversationView{
		ID:        cv.ID,
		Title:     cv.Title,
		Status:    cv.Status,
		CreatedAt: cv.CreatedAt,
		UpdatedAt: cv.UpdatedAt,
	}
}

// ownedConversation loads a conversation and verifies the caller owns it.
// Both a missing row and someone else's row come back as ErrNotFound.
func (h *ConversationHandler) ownedConversation(ctx context.Context, c echo.Context, id string) (model.Conversation, error) {
	cv, err := h.Conversations.GetByID(ctx, id)
	if err != nil {
		return model.Conversation{}, err
	}
	if cv.UserID != middleware.CurrentUser(c).ID {
		return model.Conversation{}, repository.ErrNotFound
	}
	return cv, nil
}

// Create opens a new conversation, subject to the plan's standing
// max_conversations ceiling.
func (h *ConversationHandler) Create(c echo.Context) error {
	u := middleware.CurrentUser(c)

	var req conversationReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Gate.CheckConversationCreate(ctx, u.ID, u.Plan); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			return response.Fail(c, http.StatusForbidden, "conversation limit reached, upgrade required")
		}
		log.Printf("conversation: quota check: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "create failed")
	}

	cv, err := h.Conversations.Create(ctx, u.ID, req.Title)
	if err != nil {
		log.Printf("conversation: create: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "create failed")
	}
	return response.Created(c, toConversationView(cv))
}

// List returns the caller's conversations, newest first.
func (h *ConversationHandler) List(c echo.Context) error {
	u := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	convs, err := h.Conversations.ListByUser(ctx, u.ID)
	if err != nil {
		log.Printf("conversation: list: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "list failed")
	}
	views := make([]conversationView, 0, len(convs))
	for _, cv := range convs {
		views = append(views, toConversationView(cv))
	}
	return response.Success(c, views)
}

// Get returns one of the caller's conversations.
func (h *ConversationHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cv, err := h.ownedConversation(ctx, c, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "conversation not found")
		}
		log.Printf("conversation: get: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "lookup failed")
	}
	return response.Success(c, toConversationView(cv))
}

// Update patches title and/or status on one of the caller's conversations.
func (h *ConversationHandler) Update(c echo.Context) error {
	var req conversationReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	if req.Title == nil && req.Status == nil {
		return response.Fail(c, http.StatusBadRequest, "nothing to update")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cv, err := h.ownedConversation(ctx, c, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "conversation not found")
		}
		log.Printf("conversation: get for update: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "update failed")
	}

	updated, err := h.Conversations.Update(ctx, cv.ID, req.Title, req.Status)
	if err != nil {
		log.Printf("conversation: update: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "update failed")
	}
	return response.Success(c, toConversationView(updated))
}

// Delete removes one of the caller's conversations and all its messages.
func (h *ConversationHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cv, err := h.ownedConversation(ctx, c, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "conversation not found")
		}
		log.Printf("conversation: get for delete: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "delete failed")
	}

	if err := h.Conversations.Delete(ctx, cv.ID); err != nil {
		log.Printf("conversation: delete: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "delete failed")
	}
	return response.Success(c, echo.Map{"detail": "conversation deleted"})
}
