package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeCounter struct{ count int }

func (f *fakeCounter) CountConversations(context.Context, string) (int, error) {
	return f.count, nil
}

func newTestGate(convCount int) (*Gate, *MemoryLedger, *time.Time) {
	ledger := NewMemoryLedger()
	g := NewGate(ledger, &fakeCounter{count: convCount})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	g.now = func() time.Time { return *clock }
	return g, ledger, clock
}

func TestCheckConversationCreateBoundary(t *testing.T) {
	ctx := context.Background()

	// Free plan allows 3 conversations: 2 existing is fine, 3 is not.
	g, _, _ := newTestGate(2)
	if err := g.CheckConversationCreate(ctx, "u", "free"); err != nil {
		t.Fatalf("CheckConversationCreate() with 2 existing error = %v", err)
	}

	g, _, _ = newTestGate(3)
	if err := g.CheckConversationCreate(ctx, "u", "free"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("CheckConversationCreate() at cap error = %v, want ErrQuotaExceeded", err)
	}
}

func TestCheckMessageCreateDailyCeiling(t *testing.T) {
	ctx := context.Background()
	g, ledger, _ := newTestGate(0)

	// 19 messages recorded: the 20th is allowed.
	for i := 0; i < 19; i++ {
		if err := ledger.IncrementMessages(ctx, "u", g.Today()); err != nil {
			t.Fatalf("IncrementMessages() error = %v", err)
		}
	}
	if err := g.CheckMessageCreate(ctx, "u", "free", false); err != nil {
		t.Fatalf("CheckMessageCreate() at 19/20 error = %v", err)
	}

	if err := ledger.IncrementMessages(ctx, "u", g.Today()); err != nil {
		t.Fatalf("IncrementMessages() error = %v", err)
	}
	if err := g.CheckMessageCreate(ctx, "u", "free", false); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("CheckMessageCreate() at 20/20 error = %v, want ErrQuotaExceeded", err)
	}
}

func TestCountersResetAtMidnightUTC(t *testing.T) {
	ctx := context.Background()
	g, ledger, clock := newTestGate(0)

	for i := 0; i < 20; i++ {
		_ = ledger.IncrementMessages(ctx, "u", g.Today())
	}
	if err := g.CheckChat(ctx, "u", "free"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("CheckChat() at daily cap error = %v, want ErrQuotaExceeded", err)
	}

	// Next UTC day: counters start fresh.
	*clock = clock.Add(13 * time.Hour)
	if err := g.CheckChat(ctx, "u", "free"); err != nil {
		t.Fatalf("CheckChat() next day error = %v", err)
	}
}

func TestTokenOvershootBlocksNextCall(t *testing.T) {
	ctx := context.Background()
	g, ledger, _ := newTestGate(0)

	// One expensive call finished over the token ceiling; recording it
	// must succeed, and the next call is refused.
	if err := g.CheckChat(ctx, "u", "free"); err != nil {
		t.Fatalf("CheckChat() before overshoot error = %v", err)
	}
	_ = ledger.IncrementMessages(ctx, "u", g.Today())
	if err := ledger.AddTokens(ctx, "u", g.Today(), 6000); err != nil {
		t.Fatalf("AddTokens() past ceiling error = %v", err)
	}

	if err := g.CheckChat(ctx, "u", "free"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("CheckChat() after overshoot error = %v, want ErrQuotaExceeded", err)
	}
}

func TestCheckFileUploadFreePlanAlwaysRejected(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGate(0)

	// Free plan has a zero upload allowance.
	if err := g.CheckFileUpload(ctx, "u", "free"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("CheckFileUpload(free) error = %v, want ErrQuotaExceeded", err)
	}
	if err := g.CheckFileUpload(ctx, "u", "pro"); err != nil {
		t.Fatalf("CheckFileUpload(pro) error = %v", err)
	}
}

func TestCheckDowngradeGuard(t *testing.T) {
	ctx := context.Background()

	// 5 standing conversations fit in pro but not in free.
	g, _, _ := newTestGate(5)
	if err := g.CheckDowngrade(ctx, "u", "free"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("CheckDowngrade() with 5 conversations error = %v, want ErrQuotaExceeded", err)
	}

	g, ledger, _ := newTestGate(2)
	if err := g.CheckDowngrade(ctx, "u", "free"); err != nil {
		t.Fatalf("CheckDowngrade() within limits error = %v", err)
	}

	// Today's usage above the target's daily ceiling also blocks.
	for i := 0; i < 25; i++ {
		_ = ledger.IncrementMessages(ctx, "u", g.Today())
	}
	if err := g.CheckDowngrade(ctx, "u", "free"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("CheckDowngrade() with 25 messages today error = %v, want ErrQuotaExceeded", err)
	}
}

func TestUnknownPlanFallsBackToFree(t *testing.T) {
	if got := LimitsFor("platinum"); got != Plans["free"] {
		t.Fatalf("LimitsFor(unknown) = %+v, want free limits", got)
	}
}

func TestMemoryLedgerConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = ledger.IncrementMessages(ctx, "u", day)
			_ = ledger.AddTokens(ctx, "u", day, 10)
		}()
	}
	wg.Wait()

	usage, err := ledger.DailyUsage(ctx, "u", day)
	if err != nil {
		t.Fatalf("DailyUsage() error = %v", err)
	}
	if usage.MessageCount != workers {
		t.Fatalf("MessageCount = %d, want %d", usage.MessageCount, workers)
	}
	if usage.TokenCount == nil || *usage.TokenCount != workers*10 {
		t.Fatalf("TokenCount = %v, want %d", usage.TokenCount, workers*10)
	}
}

func TestDailyUsageZeroViewWithoutRecord(t *testing.T) {
	ledger := NewMemoryLedger()
	usage, err := ledger.DailyUsage(context.Background(), "nobody", time.Now())
	if err != nil {
		t.Fatalf("DailyUsage() error = %v", err)
	}
	if usage.MessageCount != 0 || usage.TokenCount != nil || usage.FileUploads != nil {
		t.Fatalf("DailyUsage() = %+v, want zero view", usage)
	}
}
