package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/google/uuid"

    "github.com/flynkle/flynkle-api/internal/model"
)

// ConversationRepo persists conversations.  It also provides the standing
// conversation count consumed by the quota gate.
type ConversationRepo struct{ DB *sql.DB }

func NewConversationRepo(db *sql.DB) *ConversationRepo { return &ConversationRepo{DB: db} }

const conversationColumns = "id,user_id,title,status,created_at,updated_at"

// Create inserts a conversation and returns it.
func (r *ConversationRepo) Create(ctx context.Context, userID string, title *string) (model.Conversation, error) {
    id := uuid.NewString()
    _, err := r.DB.ExecContext(ctx,
        "INSERT INTO conversations (id, user_id, title) VALUES (?,?,?)",
        id, userID, title)
    if err != nil {
        return model.Conversation{}, err
    }
    return r.GetByID(ctx, id)
}

// GetByID fetches a conversation by id.
func (r *ConversationRepo) GetByID(ctx context.Context, id string) (model.Conversation, error) {
    var (
        c      model.Conversation
        title  sql.NullString
        status sql.NullString
    )
    err := r.DB.QueryRowContext(ctx,
        "SELECT "+conversationColumns+" FROM conversations WHERE id=? LIMIT 1", id).
        Scan(&c.ID, &c.UserID, &title, &status, &c.CreatedAt, &c.UpdatedAt)
    if err == sql.ErrNoRows {
        return model.Conversation{}, ErrNotFound
    }
    if err != nil {
        return model.Conversation{}, err
    }
    c.Title = nullStr(title)
    c.Status = nullStr(status)
    return c, nil
}

// ListByUser returns the user's conversations, newest first.
func (r *ConversationRepo) ListByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
    rows, err := r.DB.QueryContext(ctx,
        "SELECT "+conversationColumns+" FROM conversations WHERE user_id=? ORDER BY created_at DESC", userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []model.Conversation
    for rows.Next() {
        var (
            c      model.Conversation
            title  sql.NullString
            status sql.NullString
        )
        if err := rows.Scan(&c.ID, &c.UserID, &title, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
            return nil, err
        }
        c.Title = nullStr(title)
        c.Status = nullStr(status)
        out = append(out, c)
    }
    return out, rows.Err()
}

// CountConversations reports the user's standing conversation count.  This
// satisfies the quota gate's ConversationCounter port.
func (r *ConversationRepo) CountConversations(ctx context.Context, userID string) (int, error) {
    var n int
    err := r.DB.QueryRowContext(ctx,
        "SELECT COUNT(*) FROM conversations WHERE user_id=?", userID).Scan(&n)
    return n, err
}

// Update sets title and/or status.  Nil pointers leave columns unchanged.
func (r *ConversationRepo) Update(ctx context.Context, id string, title, status *string) (model.Conversation, error) {
    var (
        sets []string
        args []any
    )
    if title != nil {
        sets = append(sets, "title=?")
        args = append(args, *title)
    }
    if status != nil {
        sets = append(sets, "status=?")
        args = append(args, *status)
    }
    if len(sets) > 0 {
        args = append(args, id)
        res, err := r.DB.ExecContext(ctx,
            "UPDATE conversations SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
        if err != nil {
            return model.Conversation{}, err
        }
        if err := requireRow(res); err != nil {
            return model.Conversation{}, err
        }
    }
    return r.GetByID(ctx, id)
}

// Delete removes a conversation and its messages.
func (r *ConversationRepo) Delete(ctx context.Context, id string) error {
    tx, err := r.DB.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer tx.Rollback()

    if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id=?", id); err != nil {
        return err
    }
    res, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id=?", id)
    if err != nil {
        return err
    }
    if err := requireRow(res); err != nil {
        return err
    }
    return tx.Commit()
}
