package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/google/uuid"

    "github.com/flynkle/flynkle-api/internal/model"
    "github.com/flynkle/flynkle-api/internal/quota"
)

// UsageRepo is the SQL implementation of the quota ledger.  Every
// increment is a single INSERT ... ON DUPLICATE KEY UPDATE statement, so
// the (user_id, usage_date) row is created lazily and concurrent
// increments against the same key serialize inside the storage engine —
// no read-modify-write, no lost updates.
type UsageRepo struct{ DB *sql.DB }

func NewUsageRepo(db *sql.DB) *UsageRepo { return &UsageRepo{DB: db} }

var _ quota.Ledger = (*UsageRepo)(nil)

// DailyUsage returns the day's counters, or a zero-valued view when no
// row exists yet.  A pure read never creates a row.
func (r *UsageRepo) DailyUsage(ctx context.Context, userID string, day time.Time) (quota.Usage, error) {
    var (
        u      quota.Usage
        tokens sql.NullInt64
        files  sql.NullInt64
    )
    err := r.DB.QueryRowContext(ctx,
        "SELECT message_count, token_count, file_uploads FROM usage_records WHERE user_id=? AND usage_date=? LIMIT 1",
        userID, quota.DayKey(day)).Scan(&u.MessageCount, &tokens, &files)
    if err == sql.ErrNoRows {
        return quota.Usage{}, nil
    }
    if err != nil {
        return quota.Usage{}, err
    }
    if tokens.Valid {
        v := int(tokens.Int64)
        u.TokenCount = &v
    }
    if files.Valid {
        v := int(files.Int64)
        u.FileUploads = &v
    }
    return u, nil
}

// IncrementMessages adds one to the day's message counter.
func (r *UsageRepo) IncrementMessages(ctx context.Context, userID string, day time.Time) error {
    _, err := r.DB.ExecContext(ctx,
        `INSERT INTO usage_records (id, user_id, usage_date, message_count)
         VALUES (?,?,?,1)
         ON DUPLICATE KEY UPDATE message_count = message_count + 1, last_updated_at = NOW()`,
        uuid.NewString(), userID, quota.DayKey(day))
    return err
}

// AddTokens adds n to the day's token counter, initializing the nullable
// column on first use.
func (r *UsageRepo) AddTokens(ctx context.Context, userID string, day time.Time, n int) error {
    _, err := r.DB.ExecContext(ctx,
        `INSERT INTO usage_records (id, user_id, usage_date, message_count, token_count)
         VALUES (?,?,?,0,?)
         ON DUPLICATE KEY UPDATE token_count = COALESCE(token_count, 0) + VALUES(token_count), last_updated_at = NOW()`,
        uuid.NewString(), userID, quota.DayKey(day), n)
    return err
}

// IncrementFileUploads adds one to the day's upload counter, initializing
// the nullable column on first use.
func (r *UsageRepo) IncrementFileUploads(ctx context.Context, userID string, day time.Time) error {
    _, err := r.DB.ExecContext(ctx,
        `INSERT INTO usage_records (id, user_id, usage_date, message_count, file_uploads)
         VALUES (?,?,?,0,1)
         ON DUPLICATE KEY UPDATE file_uploads = COALESCE(file_uploads, 0) + 1, last_updated_at = NOW()`,
        uuid.NewString(), userID, quota.DayKey(day))
    return err
}

// ListByUser returns the user's usage history, most recent day first.
func (r *UsageRepo) ListByUser(ctx context.Context, userID string) ([]model.UsageRecord, error) {
    rows, err := r.DB.QueryContext(ctx,
        `SELECT id, user_id, usage_date, message_count, token_count, file_uploads, last_updated_at
         FROM usage_records WHERE user_id=? ORDER BY usage_date DESC`, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []model.UsageRecord
    for rows.Next() {
        var (
            rec    model.UsageRecord
            tokens sql.NullInt64
            files  sql.NullInt64
        )
        if err := rows.Scan(&rec.ID, &rec.UserID, &rec.UsageDate, &rec.MessageCount, &tokens, &files, &rec.LastUpdatedAt); err != nil {
            return nil, err
        }
        if tokens.Valid {
            v := int(tokens.Int64)
            rec.TokenCount = &v
        }
        if files.Valid {
            v := int(files.Int64)
            rec.FileUploads = &v
        }
        out = append(out, rec)
    }
    return out, rows.Err()
}
