package store

import (
	"context"
	"testing"
	"time"
)

// clock is a manually advanced time source for expiry tests.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemoryStore() (*MemoryStore, *clock) {
	ck := &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore()
	s.now = ck.now
	return s, ck
}

func TestMemoryStoreSetGet(t *testing.T) {
	s, _ := newTestMemoryStore()
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || v != "v" {
		t.Fatalf("Get() = (%q, %v), want (\"v\", true)", v, ok)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s, ck := newTestMemoryStore()
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}

	ck.advance(59 * time.Second)
	if ok, _ := s.Exists(ctx, "k"); !ok {
		t.Fatal("Exists() = false just before expiry")
	}

	ck.advance(2 * time.Second)
	if ok, _ := s.Exists(ctx, "k"); ok {
		t.Fatal("Exists() = true after expiry")
	}
}

func TestMemoryStoreRejectsNonPositiveTTL(t *testing.T) {
	s, _ := newTestMemoryStore()
	if err := s.SetWithTTL(context.Background(), "k", "v", 0); err == nil {
		t.Fatal("SetWithTTL() with zero ttl succeeded, want error")
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	s, _ := newTestMemoryStore()
	ctx := context.Background()

	_ = s.SetWithTTL(ctx, "k", "old", time.Minute)
	_ = s.SetWithTTL(ctx, "k", "new", time.Minute)
	v, _, _ := s.Get(ctx, "k")
	if v != "new" {
		t.Fatalf("Get() after overwrite = %q, want \"new\"", v)
	}
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	s, _ := newTestMemoryStore()
	ctx := context.Background()

	_ = s.SetWithTTL(ctx, "k", "v", time.Minute)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if ok, _ := s.Exists(ctx, "k"); ok {
		t.Fatal("Exists() = true after delete")
	}
}

func TestMemoryStoreSweepDropsExpired(t *testing.T) {
	s, ck := newTestMemoryStore()
	ctx := context.Background()

	_ = s.SetWithTTL(ctx, "short", "v", time.Second)
	ck.advance(sweepInterval + time.Second)
	// A write past the sweep interval triggers the sweep.
	_ = s.SetWithTTL(ctx, "other", "v", time.Minute)

	s.mu.Lock()
	_, stillThere := s.entries["short"]
	s.mu.Unlock()
	if stillThere {
		t.Fatal("expired entry survived the periodic sweep")
	}
}
