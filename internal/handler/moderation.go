package handler

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/flynkle/flynkle-api/internal/response"
)

// ModerationHandler keeps a process-local staging list of messages flagged
// for review.  The list is deliberately best-effort: it lives in memory,
// is not shared between instances and is lost on restart.
type ModerationHandler struct {
	mu     sync.Mutex
	staged []stagedItem
}

func NewModerationHandler() *ModerationHandler {
	return &ModerationHandler{}
}

type stagedItem struct {
	ID        string `json:"id"`
	Direction string `json:"direction"` // "in" or "out"
	Message   string `json:"message"`
}

type stageReq struct {
	Message string `json:"message"`
}

func (h *ModerationHandler) stage(c echo.Context, direction string) error {
	var req stageReq
	if err := c.Bind(&req); err != nil || req.Message == "" {
		return response.Fail(c, http.StatusBadRequest, "message required")
	}

	item := stagedItem{ID: uuid.NewString(), Direction: direction, Message: req.Message}
	h.mu.Lock()
	h.staged = append(h.staged, item)
	h.mu.Unlock()

	log.Printf("moderation: staged %s message %s", direction, item.ID)
	return response.Success(c, item)
}

// StageIn stages an incoming message for review.
func (h *ModerationHandler) StageIn(c echo.Context) error { return h.stage(c, "in") }

// StageOut stages an outgoing message for review.
func (h *ModerationHandler) StageOut(c echo.Context) error { return h.stage(c, "out") }

// List returns all currently staged messages.
func (h *ModerationHandler) List(c echo.Context) error {
	h.mu.Lock()
	items := make([]stagedItem, len(h.staged))
	copy(items, h.staged)
	h.mu.Unlock()
	return response.Success(c, items)
}
