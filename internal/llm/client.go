// Package llm wraps the language-model provider behind a small client: a
// call takes a message or an ordered role/content history and returns the
// response text plus the token count the provider billed.  Provider
// failures surface as ErrProvider; the raw provider error text is logged
// by callers, never returned to clients.
package llm

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "time"
)

// ErrProvider marks any failure of the upstream model provider: transport
// errors, non-2xx statuses and malformed responses.
var ErrProvider = errors.New("llm provider error")

const (
    apiURL = "https://api.openai.com/v1/chat/completions"

    // systemPrompt frames every single-message chat.
    systemPrompt = "You are Flynkle, a witty, deeply personal AI assistant " +
        "who speaks like a friend and doesn't say 'As an AI...'"
)

// Message is one turn of a chat history.
type Message struct {
    Role    string `json:"role"`
    Content string `json:"content"`
}

// Client calls the provider's chat-completions endpoint.
type Client struct {
    apiKey string
    model  string
    httpc  *http.Client
}

// NewClient builds a Client for the given API key and model.
func NewClient(apiKey, model string) *Client {
    return &Client{
        apiKey: apiKey,
        model:  model,
        httpc:  &http.Client{Timeout: 120 * time.Second},
    }
}

type chatRequest struct {
    Model         string         `json:"model"`
    Messages      []Message      `json:"messages"`
    Stream        bool           `json:"stream,omitempty"`
    StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
    IncludeUsage bool `json:"include_usage"`
}

type chatResponse struct {
    Choices []struct {
        Message struct {
            Content string `json:"content"`
        } `json:"message"`
    } `json:"choices"`
    Usage struct {
        TotalTokens int `json:"total_tokens"`
    } `json:"usage"`
}

// WithSystem prepends the assistant's system prompt to a history.
func WithSystem(history []Message) []Message {
    return append([]Message{{Role: "system", Content: systemPrompt}}, history...)
}

// ChatHistory sends an ordered role/content history.
func (c *Client) ChatHistory(ctx context.Context, messages []Message) (string, int, error) {
    body, err := c.do(ctx, chatRequest{Model: c.model, Messages: messages})
    if err != nil {
        return "", 0, err
    }
    defer body.Close()

    var out chatResponse
    if err := json.NewDecoder(body).Decode(&out); err != nil {
        return "", 0, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
    }
    if len(out.Choices) == 0 {
        return "", 0, fmt.Errorf("%w: empty choices", ErrProvider)
    }
    return out.Choices[0].Message.Content, out.Usage.TotalTokens, nil
}

// do posts the request and returns the response body, mapping transport
// and status failures to ErrProvider.
func (c *Client) do(ctx context.Context, payload chatRequest) (io.ReadCloser, error) {
    raw, err := json.Marshal(payload)
    if err != nil {
        return nil, fmt.Errorf("%w: marshal request: %v", ErrProvider, err)
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(raw))
    if err != nil {
        return nil, fmt.Errorf("%w: build request: %v", ErrProvider, err)
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Authorization", "Bearer "+c.apiKey)

    resp, err := c.httpc.Do(req)
    if err != nil {
        return nil, fmt.Errorf("%w: %v", ErrProvider, err)
    }
    if resp.StatusCode < 200 || resp.StatusCode > 299 {
        msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
        resp.Body.Close()
        return nil, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, msg)
    }
    return resp.Body, nil
}
