package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flynkle/flynkle-api/internal/store"
)

// newTestService wires a Service to an in-process store with a shared
// simulated clock so both token expiry and store TTLs move together.
func newTestService(t *testing.T) (*Service, *store.MemoryStore, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore()
	svc := New("test-secret", mem, 15*time.Minute, 7*24*time.Hour)

	clock := &now
	svc.now = func() time.Time { return *clock }
	// MemoryStore's clock is unexported too; reuse the store as-is and
	// advance only the service clock where TTL interplay is not the point.
	return svc, mem, clock
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	raw, exp, err := svc.IssueAccess("user-1", 0)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}
	if !exp.After(svc.now()) {
		t.Fatalf("IssueAccess() exp = %v, not in the future", exp)
	}

	uid, err := svc.DecodeAccess(ctx, raw)
	if err != nil {
		t.Fatalf("DecodeAccess() error = %v", err)
	}
	if uid != "user-1" {
		t.Fatalf("DecodeAccess() subject = %q, want \"user-1\"", uid)
	}
}

func TestDecodeAccessRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestService(t)

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.DecodeAccess(context.Background(), raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("DecodeAccess(%q) error = %v, want ErrInvalidToken", raw, err)
		}
	}
}

func TestDecodeAccessRejectsWrongSecret(t *testing.T) {
	svc, _, _ := newTestService(t)
	other := New("different-secret", store.NewMemoryStore(), 15*time.Minute, time.Hour)

	raw, _, err := other.IssueAccess("user-1", 0)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}
	if _, err := svc.DecodeAccess(context.Background(), raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("DecodeAccess() error = %v, want ErrInvalidToken", err)
	}
}

func TestDecodeAccessRejectsExpired(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	raw, _, err := svc.IssueAccess("user-1", time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	*clock = clock.Add(2 * time.Minute)
	if _, err := svc.DecodeAccess(ctx, raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("DecodeAccess() after expiry error = %v, want ErrInvalidToken", err)
	}
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	raw, _, err := svc.IssueRefresh(ctx, "user-1")
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}
	if _, err := svc.DecodeAccess(ctx, raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("DecodeAccess(refresh token) error = %v, want ErrInvalidToken", err)
	}
}

func TestRevokeAccessBlocksUnexpiredToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	raw, _, err := svc.IssueAccess("user-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}
	if err := svc.RevokeAccess(ctx, raw); err != nil {
		t.Fatalf("RevokeAccess() error = %v", err)
	}
	if _, err := svc.DecodeAccess(ctx, raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("DecodeAccess() after revoke error = %v, want ErrInvalidToken", err)
	}
}

func TestRevokeAccessExpiredTokenIsNoop(t *testing.T) {
	svc, mem, clock := newTestService(t)
	ctx := context.Background()

	raw, _, err := svc.IssueAccess("user-1", time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	*clock = clock.Add(2 * time.Minute)
	if err := svc.RevokeAccess(ctx, raw); err != nil {
		t.Fatalf("RevokeAccess() on expired token error = %v", err)
	}
	// No revocation record should have been written.
	if ok, _ := mem.Exists(ctx, revokedKeyPrefix+hashRaw(raw)); ok {
		t.Fatal("revocation record written for an already expired token")
	}
}

func TestRefreshRotationInvalidatesUsedToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	raw, _, err := svc.IssueRefresh(ctx, "user-1")
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}

	pair, err := svc.Refresh(ctx, raw)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatal("Refresh() returned an empty pair")
	}
	if pair.Refresh == raw {
		t.Fatal("Refresh() returned the same refresh token")
	}

	// Replaying the consumed token must fail.
	if _, err := svc.Refresh(ctx, raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Refresh() replay error = %v, want ErrInvalidToken", err)
	}

	// The new pair works.
	if _, err := svc.DecodeAccess(ctx, pair.Access); err != nil {
		t.Fatalf("DecodeAccess(new access) error = %v", err)
	}
	if _, err := svc.DecodeRefresh(ctx, pair.Refresh); err != nil {
		t.Fatalf("DecodeRefresh(new refresh) error = %v", err)
	}
}

func TestRevokeRefreshIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	raw, _, err := svc.IssueRefresh(ctx, "user-1")
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}
	if err := svc.RevokeRefresh(ctx, raw); err != nil {
		t.Fatalf("RevokeRefresh() error = %v", err)
	}
	if err := svc.RevokeRefresh(ctx, raw); err != nil {
		t.Fatalf("second RevokeRefresh() error = %v", err)
	}
	if _, err := svc.DecodeRefresh(ctx, raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("DecodeRefresh() after revoke error = %v, want ErrInvalidToken", err)
	}
}

func TestDecodeRefreshRequiresExistenceRecord(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// A structurally valid refresh JWT with no store record: signed by the
	// same service but with the record deleted.
	raw, _, err := svc.IssueRefresh(ctx, "user-1")
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}
	if err := svc.RevokeRefresh(ctx, raw); err != nil {
		t.Fatalf("RevokeRefresh() error = %v", err)
	}
	if _, err := svc.DecodeRefresh(ctx, raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("DecodeRefresh() without record error = %v, want ErrInvalidToken", err)
	}
}
