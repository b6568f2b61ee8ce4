// Package ratelimit implements a sliding-window request limiter keyed by
// (subject, action class).  Windows are per-process and best-effort: they
// are not shared across server instances.  Distinct action classes use
// independent windows so exhausting one (say login) does not block another
// (chat).
package ratelimit

import (
    "errors"
    "sync"
    "time"
)

// ErrRateLimited is returned when the cap for the trailing window is
// reached.  Callers should back off for the remainder of the window.
var ErrRateLimited = errors.New("rate limited")

// Action classes with independent windows.
const (
    ActionLogin     = "login"
    ActionChat      = "chat"
    ActionMessaging = "messaging"
)

// Limiter records request timestamps per key and rejects a request once
// the trailing window already holds limit entries.  Pruning is lazy: stale
// timestamps are dropped on each check, plus a periodic full sweep so keys
// that go quiet do not pin memory.
type Limiter struct {
    mu        sync.Mutex
    windows   map[string][]time.Time
    limit     int
    window    time.Duration
    lastSweep time.Time

    now func() time.Time
}

const limiterSweepInterval = time.Minute

// New builds a Limiter allowing limit requests per window for each
// (subject, action) pair.
func New(limit int, window time.Duration) *Limiter {
    return &Limiter{
        windows: make(map[string][]time.Time),
        limit:   limit,
        window:  window,
        now:     time.Now,
    }
}

// Check records one request for subject under the given action class, or
// returns ErrRateLimited when the window is full.
func (l *Limiter) Check(subject, action string) error {
    l.mu.Lock()
    defer l.mu.Unlock()

    now := l.now()
    cutoff := now.Add(-l.window)
    l.sweepLocked(now, cutoff)

    key := action + ":" + subject
    times := pruneBefore(l.windows[key], cutoff)
    if len(times) >= l.limit {
        l.windows[key] = times
        return ErrRateLimited
    }
    l.windows[key] = append(times, now)
    return nil
}

// Window returns the configured window length, used by handlers to fill
// the Retry-After header.
func (l *Limiter) Window() time.Duration { return l.window }

func (l *Limiter) sweepLocked(now time.Time, cutoff time.Time) {
    if now.Sub(l.lastSweep) < limiterSweepInterval {
        return
    }
    for k, times := range l.windows {
        pruned := pruneBefore(times, cutoff)
        if len(pruned) == 0 {
            delete(l.windows, k)
        } else {
            l.windows[k] = pruned
        }
    }
    l.lastSweep = now
}

// pruneBefore drops timestamps at or before cutoff.  Timestamps are
// appended in order, so the retained suffix is contiguous.
func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
    i := 0
    for i < len(times) && !times[i].After(cutoff) {
        i++
    }
    if i == 0 {
        return times
    }
    return append(times[:0], times[i:]...)
}
