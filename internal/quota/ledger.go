package quota

import (
    "context"
    "sync"
    "time"
)

// Usage is the daily-counter view the gate evaluates.  TokenCount and
// FileUploads are nil until the first increment of their kind that day,
// mirroring the nullable columns in the backing table.
type Usage struct {
    MessageCount int
    TokenCount   *int
    FileUploads  *int
}

// Ledger is the per-user-per-day counter port.  Implementations must make
// each increment atomic for a given (user, day) key: concurrent increments
// may interleave but must never lose an update.  A pure read never creates
// a row.
type Ledger interface {
    // DailyUsage returns the counters for the day, or a zero-valued view
    // when no record exists yet.
    DailyUsage(ctx context.Context, userID string, day time.Time) (Usage, error)
    // IncrementMessages adds one to the day's message counter, creating
    // the record if absent.
    IncrementMessages(ctx context.Context, userID string, day time.Time) error
    // AddTokens adds n to the day's token counter, creating the record if
    // absent.
    AddTokens(ctx context.Context, userID string, day time.Time, n int) error
    // IncrementFileUploads adds one to the day's upload counter, creating
    // the record if absent.
    IncrementFileUploads(ctx context.Context, userID string, day time.Time) error
}

// DayKey normalizes a timestamp to its UTC calendar date, the granularity
// at which counters reset.
func DayKey(t time.Time) string {
    return t.UTC().Format("2006-01-02")
}

// MemoryLedger is a mutex-guarded in-process Ledger used by tests and
// single-process development setups.
type MemoryLedger struct {
    mu      sync.Mutex
    records map[string]*Usage
}

// NewMemoryLedger returns an empty in-process ledger.
func NewMemoryLedger() *MemoryLedger {
    return &MemoryLedger{records: make(map[string]*Usage)}
}

func (l *MemoryLedger) key(userID string, day time.Time) string {
    return userID + ":" + DayKey(day)
}

func (l *MemoryLedger) record(userID string, day time.Time) *Usage {
    k := l.key(userID, day)
    r, ok := l.records[k]
    if !ok {
        r = &Usage{}
        l.records[k] = r
    }
    return r
}

// DailyUsage returns a copy of the day's counters, zero-valued when no
// record exists.
func (l *MemoryLedger) DailyUsage(_ context.Context, userID string, day time.Time) (Usage, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    r, ok := l.records[l.key(userID, day)]
    if !ok {
        return Usage{}, nil
    }
    out := Usage{MessageCount: r.MessageCount}
    if r.TokenCount != nil {
        v := *r.TokenCount
        out.TokenCount = &v
    }
    if r.FileUploads != nil {
        v := *r.FileUploads
        out.FileUploads = &v
    }
    return out, nil
}

func (l *MemoryLedger) IncrementMessages(_ context.Context, userID string, day time.Time) error {
    l.mu.Lock()
    defer l.mu.Unlock()
    l.record(userID, day).MessageCount++
    return nil
}

func (l *MemoryLedger) AddTokens(_ context.Context, userID string, day time.Time, n int) error {
    l.mu.Lock()
    defer l.mu.Unlock()
    r := l.record(userID, day)
    if r.TokenCount == nil {
        r.TokenCount = new(int)
    }
    *r.TokenCount += n
    return nil
}

func (l *MemoryLedger) IncrementFileUploads(_ context.Context, userID string, day time.Time) error {
    l.mu.Lock()
    defer l.mu.Unlock()
    r := l.record(userID, day)
    if r.FileUploads == nil {
        r.FileUploads = new(int)
    }
    *r.FileUploads++
    return nil
}
