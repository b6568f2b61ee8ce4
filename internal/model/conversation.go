package model

import "time"

// Conversation models a row in the `conversations` table.  Conversations
// group messages per user; creation is quota-gated against the plan's
// max_conversations ceiling.
type Conversation struct {
    ID        string    // conversations.id
    UserID    string    // conversations.user_id
    Title     *string   // conversations.title (nullable)
    Status    *string   // conversations.status (nullable)
    CreatedAt time.Time // conversations.created_at
    UpdatedAt time.Time // conversations.updated_at
}
