package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Accounts carry at least one identifying credential (email or
// phone number); OAuth-only accounts have no password hash.  Deletion is
// always soft: deleted_at is set and the row is excluded from normal
// lookups but remains restorable.
//
// Fields:
//  ID           – UUID primary key of the user.
//  Email        – unique email address (nullable).
//  PhoneNumber  – unique phone number (nullable).
//  Provider     – authentication provider tag ("local", "google", ...).
//  ProviderID   – identifier at the external provider (nullable).
//  PasswordHash – bcrypt hashed password; nil for OAuth-only accounts.
//  IsVerified   – whether the identifying credential has been verified.
//  VerifiedAt   – when verification happened (nullable).
//  IsActive     – whether the account is active.
//  IsSuspended  – set by admin suspension.
//  IsAdmin      – grants access to admin endpoints.
//  Plan         – subscription plan tag ("free", "pro", ...).
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
//  LastLogin    – timestamp of last successful login (nullable).
//  DeletedAt    – soft-delete timestamp (nullable).
type User struct {
    ID           string     // users.id
    Email        *string    // users.email
    PhoneNumber  *string    // users.phone_number
    Provider     string     // users.provider
    ProviderID   *string    // users.provider_id
    PasswordHash *string    // users.password_hash
    IsVerified   bool       // users.is_verified
    VerifiedAt   *time.Time // users.verified_at
    IsActive     bool       // users.is_active
    IsSuspended  bool       // users.is_suspended
    IsAdmin      bool       // users.is_admin
    Plan         string     // users.plan
    CreatedAt    time.Time  // users.created_at
    UpdatedAt    time.Time  // users.updated_at
    LastLogin    *time.Time // users.last_login
    DeletedAt    *time.Time // users.deleted_at
}
