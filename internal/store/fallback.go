package store

import (
    "context"
    "time"
)

// FallbackStore wraps a shared store (Redis) with a process-local fallback.
// Every call first tries the shared store with a bounded timeout; on any
// error the call is served by the local map instead, and the shared store
// is retried on the very next call.  There is no persistent "degraded"
// flag.  This trades consistency for availability: revocations recorded
// while the shared cache is unreachable are visible only to this process
// until the cache recovers.
type FallbackStore struct {
    shared Store
    local  *MemoryStore

    // timeout bounds each shared-store call so a hung cache cannot stall
    // request handling.
    timeout time.Duration
}

const defaultSharedTimeout = 2 * time.Second

// NewFallbackStore builds a FallbackStore.  shared may be nil, in which
// case all traffic is served locally (single-process deployments, tests).
func NewFallbackStore(shared Store) *FallbackStore {
    return &FallbackStore{
        shared:  shared,
        local:   NewMemoryStore(),
        timeout: defaultSharedTimeout,
    }
}

func (s *FallbackStore) sharedCtx(ctx context.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(ctx, s.timeout)
}

// SetWithTTL writes to the shared store, falling back to the local map on
// error.
func (s *FallbackStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
    if s.shared != nil {
        sctx, cancel := s.sharedCtx(ctx)
        err := s.shared.SetWithTTL(sctx, key, value, ttl)
        cancel()
        if err == nil {
            return nil
        }
    }
    return s.local.SetWithTTL(ctx, key, value, ttl)
}

// Get reads from the shared store, falling back to the local map on error.
func (s *FallbackStore) Get(ctx context.Context, key string) (string, bool, error) {
    if s.shared != nil {
        sctx, cancel := s.sharedCtx(ctx)
        v, ok, err := s.shared.Get(sctx, key)
        cancel()
        if err == nil {
            return v, ok, nil
        }
    }
    return s.local.Get(ctx, key)
}

// Exists checks the shared store, falling back to the local map on error.
func (s *FallbackStore) Exists(ctx context.Context, key string) (bool, error) {
    if s.shared != nil {
        sctx, cancel := s.sharedCtx(ctx)
        ok, err := s.shared.Exists(sctx, key)
        cancel()
        if err == nil {
            return ok, nil
        }
    }
    return s.local.Exists(ctx, key)
}

// Delete removes the key from both stores: the local copy is always
// cleared so a fallback write cannot outlive a later shared-store delete.
func (s *FallbackStore) Delete(ctx context.Context, key string) error {
    _ = s.local.Delete(ctx, key)
    if s.shared != nil {
        sctx, cancel := s.sharedCtx(ctx)
        err := s.shared.Delete(sctx, key)
        cancel()
        if err == nil {
            return nil
        }
    }
    return nil
}
