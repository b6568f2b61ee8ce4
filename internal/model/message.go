package model

import "time"

// Message models a row in the `messages` table.  Content is stored as raw
// JSON so text and structured payloads share one column.  UserID is nil
// for assistant-authored messages.
type Message struct {
    ID             string    // messages.id
    ConversationID string    // messages.conversation_id
    UserID         *string   // messages.user_id (nil for assistant messages)
    Content        []byte    // messages.content (JSON)
    MessageType    string    // messages.message_type ("text", "file", ...)
    Metadata       []byte    // messages.metadata (JSON, nullable)
    CreatedAt      time.Time // messages.created_at
}

// Message types understood by the quota gate.  File-type messages count
// against the plan's upload ceiling in addition to the message ceiling.
const (
    MessageTypeText = "text"
    MessageTypeFile = "file"
)
