package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/google/uuid"

    "github.com/flynkle/flynkle-api/internal/model"
)

// MessageRepo persists messages within conversations.
type MessageRepo struct{ DB *sql.DB }

func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{DB: db} }

const messageColumns = "id,conversation_id,user_id,content,message_type,metadata,created_at"

// Create inserts a message.  userID is nil for assistant-authored
// messages.
func (r *MessageRepo) Create(ctx context.Context, conversationID string, userID *string, content []byte, messageType string) (model.Message, error) {
    id := uuid.NewString()
    _, err := r.DB.ExecContext(ctx,
        "INSERT INTO messages (id, conversation_id, user_id, content, message_type) VALUES (?,?,?,?,?)",
        id, conversationID, userID, content, messageType)
    if err != nil {
        return model.Message{}, err
    }
    return r.GetByID(ctx, id)
}

// GetByID fetches a message by id.
func (r *MessageRepo) GetByID(ctx context.Context, id string) (model.Message, error) {
    row := r.DB.QueryRowContext(ctx,
        "SELECT "+messageColumns+" FROM messages WHERE id=? LIMIT 1", id)
    m, err := scanMessage(row)
    if err == sql.ErrNoRows {
        return model.Message{}, ErrNotFound
    }
    return m, err
}

// ListByConversation returns a conversation's messages in chronological
// order with offset/limit paging.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string, offset, limit int) ([]model.Message, error) {
    rows, err := r.DB.QueryContext(ctx,
        "SELECT "+messageColumns+" FROM messages WHERE conversation_id=? ORDER BY created_at LIMIT ? OFFSET ?",
        conversationID, limit, offset)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []model.Message
    for rows.Next() {
        m, err := scanMessage(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, m)
    }
    return out, rows.Err()
}

// Update sets content, type and/or metadata.  Nil arguments leave columns
// unchanged.
func (r *MessageRepo) Update(ctx context.Context, id string, content []byte, messageType *string, metadata []byte) (model.Message, error) {
    var (
        sets []string
        args []any
    )
    if content != nil {
        sets = append(sets, "content=?")
        args = append(args, content)
    }
    if messageType != nil {
        sets = append(sets, "message_type=?")
        args = append(args, *messageType)
    }
    if metadata != nil {
        sets = append(sets, "metadata=?")
        args = append(args, metadata)
    }
    if len(sets) > 0 {
        args = append(args, id)
        res, err := r.DB.ExecContext(ctx,
            "UPDATE messages SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
        if err != nil {
            return model.Message{}, err
        }
        if err := requireRow(res); err != nil {
            return model.Message{}, err
        }
    }
    return r.GetByID(ctx, id)
}

// Delete removes a message.
func (r *MessageRepo) Delete(ctx context.Context, id string) error {
    res, err := r.DB.ExecContext(ctx, "DELETE FROM messages WHERE id=?", id)
    if err != nil {
        return err
    }
    return requireRow(res)
}

func scanMessage(row rowScanner) (model.Message, error) {
    var (
        m        model.Message
        userID   sql.NullString
        metadata []byte
    )
    err := row.Scan(&m.ID, &m.ConversationID, &userID, &m.Content, &m.MessageType, &metadata, &m.CreatedAt)
    if err != nil {
        return model.Message{}, err
    }
    m.UserID = nullStr(userID)
    m.Metadata = metadata
    return m, nil
}
