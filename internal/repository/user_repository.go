package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/flynkle/flynkle-api/internal/model"
    "github.com/flynkle/flynkle-api/internal/utils"
)

// UserRepo persists users.  Soft-deleted rows (deleted_at set) are
// excluded from every lookup except the explicit include-deleted paths
// used for restoration.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,phone_number,provider,provider_id,password_hash," +
    "is_verified,verified_at,is_active,is_suspended,is_admin,plan," +
    "created_at,updated_at,last_login,deleted_at"

// Create inserts a local-provider user with a hashed password and returns
// its id.
func (r *UserRepo) Create(ctx context.Context, email, password string, cost int) (string, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return "", err
    }
    id := uuid.NewString()
    _, err = r.DB.ExecContext(ctx,
        "INSERT INTO users (id, email, provider, password_hash, plan) VALUES (?,?,?,?,?)",
        id, email, "local", hash, "free")
    if err != nil {
        if strings.Contains(strings.ToLower(err.Error()), "1062") {
            return "", ErrEmailExists
        }
        return "", err
    }
    return id, nil
}

// GetByID fetches an active (non-deleted) user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
    return r.scanOne(r.DB.QueryRowContext(ctx,
        "SELECT "+userColumns+" FROM users WHERE id=? AND deleted_at IS NULL LIMIT 1", id))
}

// GetByEmail fetches an active user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    return r.scanOne(r.DB.QueryRowContext(ctx,
        "SELECT "+userColumns+" FROM users WHERE email=? AND deleted_at IS NULL LIMIT 1", email))
}

// GetByIDIncludeDeleted fetches a user regardless of deletion state.  This
// is the explicit restoration path; normal lookups never see deleted rows.
func (r *UserRepo) GetByIDIncludeDeleted(ctx context.Context, id string) (model.User, error) {
    return r.scanOne(r.DB.QueryRowContext(ctx,
        "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// List returns users ordered newest first, optionally matching email or
// phone against search and optionally including soft-deleted rows.
func (r *UserRepo) List(ctx context.Context, search string, includeDeleted bool, offset, limit int) ([]model.User, error) {
    q := "SELECT " + userColumns + " FROM users"
    var (
        where []string
        args  []any
    )
    if !includeDeleted {
        where = append(where, "deleted_at IS NULL")
    }
    if search != "" {
        where = append(where, "(email LIKE ? OR phone_number LIKE ?)")
        pattern := "%" + search + "%"
        args = append(args, pattern, pattern)
    }
    if len(where) > 0 {
        q += " WHERE " + strings.Join(where, " AND ")
    }
    q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
    args = append(args, limit, offset)

    rows, err := r.DB.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var users []model.User
    for rows.Next() {
        u, err := scanUser(rows)
        if err != nil {
            return nil, err
        }
        users = append(users, u)
    }
    return users, rows.Err()
}

// UpdateProfile sets the caller-editable fields.  Nil pointers leave the
// column unchanged.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, email, phone *string) error {
    var (
        sets []string
        args []any
    )
    if email != nil {
        normalized := strings.ToLower(strings.TrimSpace(*email))
        sets = append(sets, "email=?")
        args = append(args, normalized)
    }
    if phone != nil {
        sets = append(sets, "phone_number=?")
        args = append(args, *phone)
    }
    if len(sets) == 0 {
        return nil
    }
    args = append(args, id)
    res, err := r.DB.ExecContext(ctx,
        "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=? AND deleted_at IS NULL", args...)
    if err != nil {
        if strings.Contains(strings.ToLower(err.Error()), "1062") {
            return ErrEmailExists
        }
        return err
    }
    return requireRow(res)
}

// SetPassword replaces the stored password hash.
func (r *UserRepo) SetPassword(ctx context.Context, id, password string, cost int) error {
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return err
    }
    res, err := r.DB.ExecContext(ctx,
        "UPDATE users SET password_hash=? WHERE id=? AND deleted_at IS NULL", hash, id)
    if err != nil {
        return err
    }
    return requireRow(res)
}

// SetPlan updates the subscription plan tag.
func (r *UserRepo) SetPlan(ctx context.Context, id, plan string) error {
    res, err := r.DB.ExecContext(ctx,
        "UPDATE users SET plan=? WHERE id=? AND deleted_at IS NULL", plan, id)
    if err != nil {
        return err
    }
    return requireRow(res)
}

// SetSuspended toggles admin suspension.
func (r *UserRepo) SetSuspended(ctx context.Context, id string, suspended bool) error {
    res, err := r.DB.ExecContext(ctx,
        "UPDATE users SET is_suspended=? WHERE id=? AND deleted_at IS NULL", suspended, id)
    if err != nil {
        return err
    }
    return requireRow(res)
}

// SetVerified marks the identifying credential verified, stamping
// verified_at.
func (r *UserRepo) SetVerified(ctx context.Context, id string) error {
    res, err := r.DB.ExecContext(ctx,
        "UPDATE users SET is_verified=TRUE, verified_at=NOW() WHERE id=? AND deleted_at IS NULL", id)
    if err != nil {
        return err
    }
    return requireRow(res)
}

// TouchLastLogin stamps last_login after a successful login.  Failures are
// non-fatal for the login flow, so the caller may ignore the error.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id string) error {
    _, err := r.DB.ExecContext(ctx,
        "UPDATE users SET last_login=NOW() WHERE id=? AND deleted_at IS NULL", id)
    return err
}

// SoftDelete marks the user deleted and inactive.  The row is never hard
// deleted in normal flow.
func (r *UserRepo) SoftDelete(ctx context.Context, id string) error {
    res, err := r.DB.ExecContext(ctx,
        "UPDATE users SET deleted_at=NOW(), is_active=FALSE WHERE id=? AND deleted_at IS NULL", id)
    if err != nil {
        return err
    }
    return requireRow(res)
}

// Restore clears a soft delete and reactivates the account.
func (r *UserRepo) Restore(ctx context.Context, id string) error {
    res, err := r.DB.ExecContext(ctx,
        "UPDATE users SET deleted_at=NULL, is_active=TRUE WHERE id=? AND deleted_at IS NOT NULL", id)
    if err != nil {
        return err
    }
    return requireRow(res)
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
    u, err := scanUser(row)
    if err == sql.ErrNoRows {
        return model.User{}, ErrNotFound
    }
    return u, err
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface{ Scan(dest ...any) error }

func scanUser(row rowScanner) (model.User, error) {
    var (
        u            model.User
        email        sql.NullString
        phone        sql.NullString
        providerID   sql.NullString
        passwordHash sql.NullString
        verifiedAt   sql.NullTime
        lastLogin    sql.NullTime
        deletedAt    sql.NullTime
    )
    err := row.Scan(&u.ID, &email, &phone, &u.Provider, &providerID, &passwordHash,
        &u.IsVerified, &verifiedAt, &u.IsActive, &u.IsSuspended, &u.IsAdmin, &u.Plan,
        &u.CreatedAt, &u.UpdatedAt, &lastLogin, &deletedAt)
    if err != nil {
        return model.User{}, err
    }
    u.Email = nullStr(email)
    u.PhoneNumber = nullStr(phone)
    u.ProviderID = nullStr(providerID)
    u.PasswordHash = nullStr(passwordHash)
    u.VerifiedAt = nullTime(verifiedAt)
    u.LastLogin = nullTime(lastLogin)
    u.DeletedAt = nullTime(deletedAt)
    return u, nil
}

func nullStr(v sql.NullString) *string {
    if !v.Valid {
        return nil
    }
    s := v.String
    return &s
}

func nullTime(v sql.NullTime) *time.Time {
    if !v.Valid {
        return nil
    }
    t := v.Time
    return &t
}

// requireRow converts a zero-row UPDATE into ErrNotFound. The connection
// is opened with clientFoundRows=true, so RowsAffected counts matched
// rows and a no-op update on an existing row still reports one row.
func requireRow(res sql.Result) error {
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrNotFound
    }
    return nil
}
