// Package queue defines message payloads exchanged over the message broker.
package queue

// ChatCompletedEvent is published after a chat invocation finishes and its
// usage has been recorded.  It carries enough information for downstream
// consumers to log, bill or aggregate without querying the primary
// database.
type ChatCompletedEvent struct {
    UserID         string `json:"user_id"`
    ConversationID string `json:"conversation_id,omitempty"`
    Plan           string `json:"plan"`
    Model          string `json:"model"`
    TokenCount     int    `json:"token_count"`
    Streamed       bool   `json:"streamed"`
    CompletedAt    string `json:"completed_at"`
}
