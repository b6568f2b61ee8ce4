// Package otp issues short-lived one-time codes for password reset and
// email verification.  Codes live in the injected store under a scope key
// such as "reset:alice@example.com"; generating a new code overwrites any
// outstanding one, and a successful verification consumes the code.
package otp

import (
    "context"
    "crypto/rand"
    "crypto/subtle"
    "encoding/hex"
    "errors"
    "fmt"
    "time"

    "github.com/flynkle/flynkle-api/internal/store"
)

// ErrInvalidOTP is returned when a code is missing, mismatched or expired.
var ErrInvalidOTP = errors.New("invalid otp")

const (
    // TTL is the lifetime of a generated code.
    TTL = 300 * time.Second

    codeBytes = 3 // 6 hex characters
    keyPrefix = "otp:"
)

// ScopeReset returns the scope key for a password-reset code.
func ScopeReset(email string) string { return "reset:" + email }

// ScopeVerify returns the scope key for an email-verification code.
func ScopeVerify(email string) string { return "verify:" + email }

// Service generates and consumes one-time codes.
type Service struct {
    store store.Store
    ttl   time.Duration
}

// New builds an OTP service over the given store.
func New(st store.Store) *Service {
    return &Service{store: st, ttl: TTL}
}

// Generate creates a cryptographically random fixed-length code for the
// scope key, replacing any live code for the same scope.
func (s *Service) Generate(ctx context.Context, scopeKey string) (string, error) {
    buf := make([]byte, codeBytes)
    if _, err := rand.Read(buf); err != nil {
        return "", fmt.Errorf("generate otp: %w", err)
    }
    code := hex.EncodeToString(buf)
    if err := s.store.SetWithTTL(ctx, keyPrefix+scopeKey, code, s.ttl); err != nil {
        return "", fmt.Errorf("save otp: %w", err)
    }
    return code, nil
}

// VerifyAndConsume checks code against the live code for scopeKey.  On
// success the code is deleted so it can be used exactly once.  A mismatch
// does not consume the stored code.
func (s *Service) VerifyAndConsume(ctx context.Context, scopeKey, code string) (bool, error) {
    saved, ok, err := s.store.Get(ctx, keyPrefix+scopeKey)
    if err != nil {
        return false, fmt.Errorf("load otp: %w", err)
    }
    if !ok {
        return false, nil
    }
    if subtle.ConstantTimeCompare([]byte(saved), []byte(code)) != 1 {
        return false, nil
    }
    if err := s.store.Delete(ctx, keyPrefix+scopeKey); err != nil {
        return false, fmt.Errorf("consume otp: %w", err)
    }
    return true, nil
}
