package store

import (
    "context"
    "sync"
    "time"
)

// MemoryStore is a process-local Store backed by a mutex-guarded map.
// Expiry is enforced by wall-clock comparison at read time; stale entries
// are pruned lazily on access and swept opportunistically on writes.  It is
// best-effort only: entries are not visible to other processes.
type MemoryStore struct {
    mu        sync.Mutex
    entries   map[string]memoryEntry
    lastSweep time.Time

    // now is replaceable in tests to simulate the passage of time.
    now func() time.Time
}

type memoryEntry struct {
    value     string
    expiresAt time.Time
}

const sweepInterval = time.Minute

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        entries: make(map[string]memoryEntry),
        now:     time.Now,
    }
}

// SetWithTTL stores key=value, overwriting any previous entry.
func (s *MemoryStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
    if ttl <= 0 {
        return errNonPositiveTTL
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    now := s.now()
    s.sweepLocked(now)
    s.entries[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
    return nil
}

// Get returns the live value for key, treating expired entries as absent.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    e, ok := s.entries[key]
    if !ok {
        return "", false, nil
    }
    if !s.now().Before(e.expiresAt) {
        delete(s.entries, key)
        return "", false, nil
    }
    return e.value, true, nil
}

// Exists reports whether key has a live, unexpired entry.
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
    _, ok, err := s.Get(ctx, key)
    return ok, err
}

// Delete removes key.  Deleting an absent key is a no-op.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    delete(s.entries, key)
    return nil
}

// sweepLocked drops expired entries at most once per sweepInterval so the
// map does not grow without bound when keys are written but never re-read.
func (s *MemoryStore) sweepLocked(now time.Time) {
    if now.Sub(s.lastSweep) < sweepInterval {
        return
    }
    for k, e := range s.entries {
        if !now.Before(e.expiresAt) {
            delete(s.entries, k)
        }
    }
    s.lastSweep = now
}
