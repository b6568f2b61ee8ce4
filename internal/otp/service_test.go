package otp

import (
	"context"
	"testing"

	"github.com/flynkle/flynkle-api/internal/store"
)

func TestGenerateProducesSixHexChars(t *testing.T) {
	svc := New(store.NewMemoryStore())

	code, err := svc.Generate(context.Background(), ScopeReset("a@example.com"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("Generate() code length = %d, want 6", len(code))
	}
	for _, r := range code {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("Generate() code %q contains non-hex character %q", code, r)
		}
	}
}

func TestVerifyAndConsumeSingleUse(t *testing.T) {
	svc := New(store.NewMemoryStore())
	ctx := context.Background()
	scope := ScopeReset("a@example.com")

	code, err := svc.Generate(ctx, scope)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	ok, err := svc.VerifyAndConsume(ctx, scope, code)
	if err != nil {
		t.Fatalf("VerifyAndConsume() error = %v", err)
	}
	if !ok {
		t.Fatal("VerifyAndConsume() = false for the right code")
	}

	// Second use must fail: the code was consumed.
	ok, err = svc.VerifyAndConsume(ctx, scope, code)
	if err != nil {
		t.Fatalf("second VerifyAndConsume() error = %v", err)
	}
	if ok {
		t.Fatal("VerifyAndConsume() = true for an already consumed code")
	}
}

func TestVerifyWrongCodeDoesNotConsume(t *testing.T) {
	svc := New(store.NewMemoryStore())
	ctx := context.Background()
	scope := ScopeVerify("a@example.com")

	code, err := svc.Generate(ctx, scope)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if ok, _ := svc.VerifyAndConsume(ctx, scope, "zzzzzz"); ok {
		t.Fatal("VerifyAndConsume() = true for the wrong code")
	}
	// The live code survives a failed attempt.
	ok, err := svc.VerifyAndConsume(ctx, scope, code)
	if err != nil {
		t.Fatalf("VerifyAndConsume() error = %v", err)
	}
	if !ok {
		t.Fatal("correct code no longer works after a wrong attempt")
	}
}

func TestGenerateOverwritesOutstandingCode(t *testing.T) {
	svc := New(store.NewMemoryStore())
	ctx := context.Background()
	scope := ScopeReset("a@example.com")

	first, err := svc.Generate(ctx, scope)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	second, err := svc.Generate(ctx, scope)
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}

	if first != second {
		if ok, _ := svc.VerifyAndConsume(ctx, scope, first); ok {
			t.Fatal("replaced code still verifies")
		}
	}
	if ok, _ := svc.VerifyAndConsume(ctx, scope, second); !ok {
		t.Fatal("latest code does not verify")
	}
}

func TestScopesAreIndependent(t *testing.T) {
	svc := New(store.NewMemoryStore())
	ctx := context.Background()

	resetCode, err := svc.Generate(ctx, ScopeReset("a@example.com"))
	if err != nil {
		t.Fatalf("Generate(reset) error = %v", err)
	}
	if _, err := svc.Generate(ctx, ScopeVerify("a@example.com")); err != nil {
		t.Fatalf("Generate(verify) error = %v", err)
	}

	// The reset code must not satisfy the verify scope.
	if ok, _ := svc.VerifyAndConsume(ctx, ScopeVerify("a@example.com"), resetCode); ok {
		t.Fatal("reset code verified under the verify scope")
	}
	if ok, _ := svc.VerifyAndConsume(ctx, ScopeReset("a@example.com"), resetCode); !ok {
		t.Fatal("reset code rejected under its own scope")
	}
}
