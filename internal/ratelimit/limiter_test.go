package ratelimit

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestLimiter(limit int, window time.Duration) (*Limiter, *time.Time) {
	l := New(limit, window)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	l.now = func() time.Time { return *clock }
	return l, clock
}

func TestLimiterAllowsUpToCap(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		if err := l.Check("alice", ActionLogin); err != nil {
			t.Fatalf("Check() #%d error = %v", i+1, err)
		}
	}
	if err := l.Check("alice", ActionLogin); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Check() #6 error = %v, want ErrRateLimited", err)
	}
}

func TestLimiterWindowSlides(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	if err := l.Check("alice", ActionChat); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	*clock = clock.Add(30 * time.Second)
	if err := l.Check("alice", ActionChat); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if err := l.Check("alice", ActionChat); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Check() over cap error = %v, want ErrRateLimited", err)
	}

	// 31s later the first entry has left the trailing window; one slot
	// opens up while the second entry still counts.
	*clock = clock.Add(31 * time.Second)
	if err := l.Check("alice", ActionChat); err != nil {
		t.Fatalf("Check() after window slide error = %v", err)
	}
	if err := l.Check("alice", ActionChat); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Check() error = %v, want ErrRateLimited", err)
	}
}

func TestLimiterSubjectsIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	if err := l.Check("alice", ActionLogin); err != nil {
		t.Fatalf("Check(alice) error = %v", err)
	}
	if err := l.Check("bob", ActionLogin); err != nil {
		t.Fatalf("Check(bob) error = %v, another subject must not be affected", err)
	}
}

func TestLimiterActionClassesIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	if err := l.Check("alice", ActionLogin); err != nil {
		t.Fatalf("Check(login) error = %v", err)
	}
	if err := l.Check("alice", ActionChat); err != nil {
		t.Fatalf("Check(chat) error = %v, exhausting login must not block chat", err)
	}
	if err := l.Check("alice", ActionLogin); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Check(login) error = %v, want ErrRateLimited", err)
	}
}

func TestLimiterRejectedAttemptNotRecorded(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	if err := l.Check("alice", ActionLogin); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	// Hammer while limited; rejected attempts must not extend the outage.
	for i := 0; i < 10; i++ {
		*clock = clock.Add(time.Second)
		if err := l.Check("alice", ActionLogin); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("Check() error = %v, want ErrRateLimited", err)
		}
	}
	// 61s after the single accepted attempt the window is clear.
	*clock = clock.Add(51 * time.Second)
	if err := l.Check("alice", ActionLogin); err != nil {
		t.Fatalf("Check() after window elapsed error = %v", err)
	}
}

func TestLimiterSweepDropsIdleKeys(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)

	for i := 0; i < 100; i++ {
		_ = l.Check(fmt.Sprintf("user-%d", i), ActionChat)
	}
	*clock = clock.Add(limiterSweepInterval + time.Minute)
	_ = l.Check("fresh", ActionChat)

	l.mu.Lock()
	n := len(l.windows)
	l.mu.Unlock()
	if n != 1 {
		t.Fatalf("windows map holds %d keys after sweep, want 1", n)
	}
}
