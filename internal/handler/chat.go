package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/flynkle/flynkle-api/internal/config"
	"github.com/flynkle/flynkle-api/internal/llm"
	"github.com/flynkle/flynkle-api/internal/middleware"
	"github.com/flynkle/flynkle-api/internal/model"
	"github.com/flynkle/flynkle-api/internal/queue"
	"github.com/flynkle/flynkle-api/internal/quota"
	"github.com/flynkle/flynkle-api/internal/ratelimit"
	"github.com/flynkle/flynkle-api/internal/repository"
	"github.com/flynkle/flynkle-api/internal/response"
	queue_publisher "github.com/flynkle/flynkle-api/internal/service"
)

// chat replies can take a while; DB-style 5s timeouts are too tight here.
const chatTimeout = 2 * time.Minute

// historyWindow bounds how many stored messages are replayed to the model
// when a conversation id is supplied.
const historyWindow = 20

// ChatHandler serves the model invocation endpoints.  When a conversation
// id is supplied the stored history is replayed to the model and both the
// user message and the reply are persisted; without one the exchange is
// stateless.  Usage is checked before the call and recorded with the
// provider's real token count afterwards, so a single call may finish over
// the token ceiling but the next one is refused.
type ChatHandler struct {
	Cfg           config.Config
	LLM           *llm.Client
	Conversations *repository.ConversationRepo
	Messages      *repository.MessageRepo
	Gate          *quota.Gate
	Limiter       *ratelimit.Limiter
}

func NewChatHandler(cfg config.Config, client *llm.Client, convs *repository.ConversationRepo, msgs *repository.MessageRepo, g *quota.Gate, l *ratelimit.Limiter) *ChatHandler {
	return &ChatHandler{Cfg: cfg, LLM: client, Conversations: convs, Messages: msgs, Gate: g, Limiter: l}
}

type chatReq struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type chatResp struct {
	Response       string `json:"response"`
	TokenCount     int    `json:"token_count"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// prepare runs the shared preamble of both chat endpoints: validate the
// request, rate limit, quota check, resolve the optional conversation and
// build the model input.  A non-nil echo error means the response has
// already been written.
func (h *ChatHandler) prepare(ctx context.Context, c echo.Context) (chatReq, []llm.Message, *model.Conversation, error) {
	u := middleware.CurrentUser(c)

	var req chatReq
	if err := c.Bind(&req); err != nil {
		return req, nil, nil, response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return req, nil, nil, response.Fail(c, http.StatusBadRequest, "message required")
	}

	if err := h.Limiter.Check(u.ID, ratelimit.ActionChat); err != nil {
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(h.Limiter.Window().Seconds())))
		return req, nil, nil, response.Fail(c, http.StatusTooManyRequests, "too many chat requests")
	}

	if err := h.Gate.CheckChat(ctx, u.ID, u.Plan); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			return req, nil, nil, response.Fail(c, http.StatusForbidden, "daily limit reached, upgrade required")
		}
		log.Printf("chat: quota check: %v", err)
		return req, nil, nil, response.Fail(c, http.StatusInternalServerError, "chat failed")
	}

	if req.ConversationID == "" {
		history := []llm.Message{{Role: "user", Content: req.Message}}
		return req, llm.WithSystem(history), nil, nil
	}

	cv, err := h.Conversations.GetByID(ctx, req.ConversationID)
	if err == nil && cv.UserID != u.ID {
		err = repository.ErrNotFound
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return req, nil, nil, response.Fail(c, http.StatusNotFound, "conversation not found")
		}
		log.Printf("chat: get conversation: %v", err)
		return req, nil, nil, response.Fail(c, http.StatusInternalServerError, "chat failed")
	}

	stored, err := h.Messages.ListByConversation(ctx, cv.ID, 0, historyWindow)
	if err != nil {
		log.Printf("chat: load history: %v", err)
		return req, nil, nil, response.Fail(c, http.StatusInternalServerError, "chat failed")
	}

	history := make([]llm.Message, 0, len(stored)+1)
	for _, m := range stored {
		role := "assistant"
		if m.UserID != nil {
			role = "user"
		}
		history = append(history, llm.Message{Role: role, Content: textContent(m.Content)})
	}
	history = append(history, llm.Message{Role: "user", Content: req.Message})
	return req, llm.WithSystem(history), &cv, nil
}

// finalize persists the exchange, records usage and publishes the usage
// event.  It runs after the model call regardless of how the call ended;
// tokens may be zero when the provider never reported usage.
func (h *ChatHandler) finalize(c echo.Context, cv *model.Conversation, userMsg, reply string, tokens int, streamed bool) {
	u := middleware.CurrentUser(c)

	// The request context may already be gone (client hung up mid-stream);
	// bookkeeping still has to land.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	convID := ""
	if cv != nil {
		convID = cv.ID
		uid := u.ID
		if _, err := h.Messages.Create(ctx, cv.ID, &uid, textJSON(userMsg), model.MessageTypeText); err != nil {
			log.Printf("chat: persist user message: %v", err)
		}
		if reply != "" {
			if _, err := h.Messages.Create(ctx, cv.ID, nil, textJSON(reply), model.MessageTypeText); err != nil {
				log.Printf("chat: persist reply: %v", err)
			}
		}
	}

	day := h.Gate.Today()
	if err := h.Gate.Ledger().IncrementMessages(ctx, u.ID, day); err != nil {
		log.Printf("chat: increment messages: %v", err)
	}
	if tokens > 0 {
		if err := h.Gate.Ledger().AddTokens(ctx, u.ID, day, tokens); err != nil {
			log.Printf("chat: add tokens: %v", err)
		}
	}

	go func() {
		pubCtx, pubCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pubCancel()
		_ = queue_publisher.PublishChatCompleted(pubCtx, queue.ChatCompletedEvent{
			UserID:         u.ID,
			ConversationID: convID,
			Plan:           u.Plan,
			Model:          h.Cfg.OpenAIModel,
			TokenCount:     tokens,
			Streamed:       streamed,
			CompletedAt:    time.Now().UTC().Format(time.RFC3339),
		})
	}()
}

// Chat performs a single blocking model invocation.
func (h *ChatHandler) Chat(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), chatTimeout)
	defer cancel()

	req, input, cv, err := h.prepare(ctx, c)
	if err != nil {
		return err
	}

	reply, tokens, err := h.LLM.ChatHistory(ctx, input)
	if err != nil {
		log.Printf("chat: provider: %v", err)
		return response.Fail(c, http.StatusBadGateway, "LLM request failed")
	}

	h.finalize(c, cv, req.Message, reply, tokens, false)

	out := chatResp{Response: reply, TokenCount: tokens}
	if cv != nil {
		out.ConversationID = cv.ID
	}
	return response.Success(c, out)
}

// ChatStream performs a model invocation and relays the reply to the
// client as server-sent events, one `data:` event per text delta and a
// final `[DONE]` marker.  Bookkeeping runs exactly once after the stream
// ends, whether it completed, failed upstream or the client went away.
func (h *ChatHandler) ChatStream(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), chatTimeout)
	defer cancel()

	req, input, cv, err := h.prepare(ctx, c)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	flusher, _ := res.Writer.(http.Flusher)
	writeEvent := func(data string) error {
		if _, err := fmt.Fprintf(res, "data: %s\n\n", data); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	var once sync.Once
	finish := func(reply string, tokens int) {
		once.Do(func() { h.finalize(c, cv, req.Message, reply, tokens, true) })
	}

	reply, tokens, err := h.LLM.ChatStream(ctx, input, func(delta string) error {
		raw, err := json.Marshal(echo.Map{"delta": delta})
		if err != nil {
			return err
		}
		return writeEvent(string(raw))
	})
	finish(reply, tokens)
	if err != nil {
		// Headers are out; the best we can do is signal the error in-band.
		log.Printf("chat: stream: %v", err)
		_ = writeEvent(`{"error":"stream interrupted"}`)
		return nil
	}

	_ = writeEvent("[DONE]")
	return nil
}

// textContent extracts the text of a stored message's JSON content.  Plain
// strings come back verbatim; structured payloads fall back to their raw
// JSON so nothing silently disappears from the history.
func textContent(content []byte) string {
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}
	return string(content)
}

// textJSON encodes plain text as the JSON content column value.
func textJSON(s string) []byte {
	raw, _ := json.Marshal(s)
	return raw
}
