// Package token issues, validates and revokes the two credential kinds used
// by the API: short-lived access tokens (stateless HS256 JWTs checked
// against a revocation set) and longer-lived refresh tokens (JWTs whose
// validity additionally requires a positive existence record in the store;
// deleting the record terminates the session instantly).
package token

import (
    "context"
    "crypto/sha256"
    "encoding/hex"
    "errors"
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v5"

    "github.com/flynkle/flynkle-api/internal/store"
)

// ErrInvalidToken covers every client-visible validation failure: bad
// signature, expiry, wrong token type and revocation.  Callers never learn
// which of these happened.
var ErrInvalidToken = errors.New("invalid token")

const (
    typeAccess  = "access"
    typeRefresh = "refresh"

    revokedKeyPrefix = "revoked:"
    refreshKeyPrefix = "refresh:"
)

// Pair is an access+refresh token pair as returned to clients.
type Pair struct {
    Access     string
    AccessExp  time.Time
    Refresh    string
    RefreshExp time.Time
}

// Service signs and verifies JWTs and keeps the revocation / existence
// records in an injected Store.
type Service struct {
    secret     []byte
    store      store.Store
    accessTTL  time.Duration
    refreshTTL time.Duration

    // now is replaceable in tests to simulate expiry.
    now func() time.Time
}

// New builds a token Service.  accessTTL applies when IssueAccess is called
// with ttl <= 0.
func New(secret string, st store.Store, accessTTL, refreshTTL time.Duration) *Service {
    return &Service{
        secret:     []byte(secret),
        store:      st,
        accessTTL:  accessTTL,
        refreshTTL: refreshTTL,
        now:        time.Now,
    }
}

// IssueAccess signs a new access token for userID.  A non-positive ttl
// selects the configured default.
func (s *Service) IssueAccess(userID string, ttl time.Duration) (string, time.Time, error) {
    if ttl <= 0 {
        ttl = s.accessTTL
    }
    return s.sign(userID, typeAccess, ttl)
}

// IssueRefresh signs a new refresh token for userID and records its
// existence in the store with TTL equal to the token lifetime.  The record
// is what makes the token honorable; without it DecodeRefresh fails.
func (s *Service) IssueRefresh(ctx context.Context, userID string) (string, time.Time, error) {
    raw, exp, err := s.sign(userID, typeRefresh, s.refreshTTL)
    if err != nil {
        return "", time.Time{}, err
    }
    if err := s.store.SetWithTTL(ctx, refreshKeyPrefix+hashRaw(raw), userID, s.refreshTTL); err != nil {
        return "", time.Time{}, fmt.Errorf("record refresh token: %w", err)
    }
    return raw, exp, nil
}

// DecodeAccess validates an access token and returns its subject user id.
// The revocation set is consulted before the claims are trusted, so a
// revoked-but-unexpired token can never be honored.
func (s *Service) DecodeAccess(ctx context.Context, raw string) (string, error) {
    revoked, err := s.store.Exists(ctx, revokedKeyPrefix+hashRaw(raw))
    if err != nil {
        return "", fmt.Errorf("check revocation: %w", err)
    }
    if revoked {
        return "", ErrInvalidToken
    }
    uid, _, err := s.parse(raw, typeAccess)
    return uid, err
}

// DecodeRefresh validates a refresh token: the existence record must be
// present and the JWT itself must verify with type=refresh.
func (s *Service) DecodeRefresh(ctx context.Context, raw string) (string, error) {
    ok, err := s.store.Exists(ctx, refreshKeyPrefix+hashRaw(raw))
    if err != nil {
        return "", fmt.Errorf("check refresh record: %w", err)
    }
    if !ok {
        return "", ErrInvalidToken
    }
    uid, _, err := s.parse(raw, typeRefresh)
    return uid, err
}

// RevokeAccess inserts the token into the revoked set.  The entry's TTL is
// the token's remaining lifetime, so the set never outgrows the tokens it
// guards; entries self-expire no later than the token would have anyway.
func (s *Service) RevokeAccess(ctx context.Context, raw string) error {
    _, exp, err := s.parse(raw, typeAccess)
    if err != nil {
        // Expired or malformed tokens need no revocation record.
        return nil
    }
    remaining := exp.Sub(s.now())
    if remaining <= 0 {
        return nil
    }
    return s.store.SetWithTTL(ctx, revokedKeyPrefix+hashRaw(raw), "1", remaining)
}

// RevokeRefresh deletes the existence record for a refresh token.
// Idempotent: deleting an absent record is not an error.
func (s *Service) RevokeRefresh(ctx context.Context, raw string) error {
    return s.store.Delete(ctx, refreshKeyPrefix+hashRaw(raw))
}

// Refresh rotates a refresh token: validate, revoke the old token, issue a
// new access+refresh pair.  The old token is revoked before issuance, so a
// failure in the issue step surfaces as an error and can never leave the
// used token silently reusable.
func (s *Service) Refresh(ctx context.Context, raw string) (Pair, error) {
    uid, err := s.DecodeRefresh(ctx, raw)
    if err != nil {
        return Pair{}, err
    }
    if err := s.RevokeRefresh(ctx, raw); err != nil {
        return Pair{}, fmt.Errorf("revoke used refresh token: %w", err)
    }
    access, accessExp, err := s.IssueAccess(uid, 0)
    if err != nil {
        return Pair{}, fmt.Errorf("issue access token: %w", err)
    }
    refresh, refreshExp, err := s.IssueRefresh(ctx, uid)
    if err != nil {
        return Pair{}, fmt.Errorf("issue refresh token: %w", err)
    }
    return Pair{Access: access, AccessExp: accessExp, Refresh: refresh, RefreshExp: refreshExp}, nil
}

// sign builds and signs an HS256 JWT with the standard claim set used by
// both token kinds: subject, expiry, issued-at and the type discriminant.
func (s *Service) sign(userID, tokenType string, ttl time.Duration) (string, time.Time, error) {
    now := s.now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":  userID,
        "type": tokenType,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString(s.secret)
    if err != nil {
        return "", time.Time{}, err
    }
    return signed, exp, nil
}

// parse verifies the signature and expiry and checks the type discriminant.
// Every failure maps to ErrInvalidToken.
func (s *Service) parse(raw, wantType string) (string, time.Time, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return s.secret, nil
    }, jwt.WithTimeFunc(func() time.Time { return s.now() }))
    if err != nil || !tok.Valid {
        return "", time.Time{}, ErrInvalidToken
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return "", time.Time{}, ErrInvalidToken
    }
    if tt, _ := claims["type"].(string); tt != wantType {
        return "", time.Time{}, ErrInvalidToken
    }
    sub, _ := claims["sub"].(string)
    if sub == "" {
        return "", time.Time{}, ErrInvalidToken
    }
    expVal, err := claims.GetExpirationTime()
    if err != nil || expVal == nil {
        return "", time.Time{}, ErrInvalidToken
    }
    return sub, expVal.Time, nil
}

// hashRaw returns the SHA-256 hex digest of a raw token.  Only digests are
// used as store keys so a leaked store dump cannot replay sessions.
func hashRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}
