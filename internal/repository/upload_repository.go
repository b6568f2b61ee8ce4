package repository

import (
    "context"
    "database/sql"

    "github.com/google/uuid"

    "github.com/flynkle/flynkle-api/internal/model"
)

// UploadRepo records one row per object stored for a user.
type UploadRepo struct{ DB *sql.DB }

func NewUploadRepo(db *sql.DB) *UploadRepo { return &UploadRepo{DB: db} }

// Create inserts an upload record and returns its id.
func (r *UploadRepo) Create(ctx context.Context, userID, bucket, key string, contentType *string, size int64) (string, error) {
    id := uuid.NewString()
    _, err := r.DB.ExecContext(ctx,
        "INSERT INTO uploads (id, user_id, bucket, object_key, content_type, size) VALUES (?,?,?,?,?,?)",
        id, userID, bucket, key, contentType, size)
    if err != nil {
        return "", err
    }
    return id, nil
}

// ListByUser returns the user's uploads, newest first.
func (r *UploadRepo) ListByUser(ctx context.Context, userID string) ([]model.Upload, error) {
    rows, err := r.DB.QueryContext(ctx,
        "SELECT id, user_id, bucket, object_key, content_type, size, created_at FROM uploads WHERE user_id=? ORDER BY created_at DESC",
        userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []model.Upload
    for rows.Next() {
        var (
            u  model.Upload
            ct sql.NullString
        )
        if err := rows.Scan(&u.ID, &u.UserID, &u.Bucket, &u.Key, &ct, &u.Size, &u.CreatedAt); err != nil {
            return nil, err
        }
        u.ContentType = nullStr(ct)
        out = append(out, u)
    }
    return out, rows.Err()
}
