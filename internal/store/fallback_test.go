package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakyStore fails every call while broken is set.
type flakyStore struct {
	inner  *MemoryStore
	broken bool
}

var errStoreDown = errors.New("store down")

func (f *flakyStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.broken {
		return errStoreDown
	}
	return f.inner.SetWithTTL(ctx, key, value, ttl)
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.broken {
		return "", false, errStoreDown
	}
	return f.inner.Get(ctx, key)
}

func (f *flakyStore) Exists(ctx context.Context, key string) (bool, error) {
	if f.broken {
		return false, errStoreDown
	}
	return f.inner.Exists(ctx, key)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if f.broken {
		return errStoreDown
	}
	return f.inner.Delete(ctx, key)
}

func TestFallbackStorePrefersShared(t *testing.T) {
	shared := &flakyStore{inner: NewMemoryStore()}
	fb := NewFallbackStore(shared)
	ctx := context.Background()

	if err := fb.SetWithTTL(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}
	if ok, _ := shared.inner.Exists(ctx, "k"); !ok {
		t.Fatal("write did not land in the shared store")
	}
	if ok, _ := fb.local.Exists(ctx, "k"); ok {
		t.Fatal("write leaked into the local store while shared was healthy")
	}
}

func TestFallbackStoreServesLocallyWhileSharedDown(t *testing.T) {
	shared := &flakyStore{inner: NewMemoryStore(), broken: true}
	fb := NewFallbackStore(shared)
	ctx := context.Background()

	if err := fb.SetWithTTL(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}
	ok, err := fb.Exists(ctx, "k")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !ok {
		t.Fatal("Exists() = false for a key written during the outage")
	}
}

func TestFallbackStoreRetriesSharedNextCall(t *testing.T) {
	shared := &flakyStore{inner: NewMemoryStore(), broken: true}
	fb := NewFallbackStore(shared)
	ctx := context.Background()

	_ = fb.SetWithTTL(ctx, "k", "v", time.Minute)

	// Shared store recovers; the very next write must go there, with no
	// sticky degraded state.
	shared.broken = false
	if err := fb.SetWithTTL(ctx, "k2", "v2", time.Minute); err != nil {
		t.Fatalf("SetWithTTL() after recovery error = %v", err)
	}
	if ok, _ := shared.inner.Exists(ctx, "k2"); !ok {
		t.Fatal("write after recovery did not reach the shared store")
	}
}

func TestFallbackStoreDeleteClearsLocalCopy(t *testing.T) {
	shared := &flakyStore{inner: NewMemoryStore(), broken: true}
	fb := NewFallbackStore(shared)
	ctx := context.Background()

	_ = fb.SetWithTTL(ctx, "k", "v", time.Minute)
	shared.broken = false

	if err := fb.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if ok, _ := fb.Exists(ctx, "k"); ok {
		t.Fatal("key written during outage survived a delete after recovery")
	}
}

func TestFallbackStoreNilShared(t *testing.T) {
	fb := NewFallbackStore(nil)
	ctx := context.Background()

	if err := fb.SetWithTTL(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}
	if ok, _ := fb.Exists(ctx, "k"); !ok {
		t.Fatal("Exists() = false with nil shared store")
	}
}
