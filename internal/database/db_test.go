package database

import (
	"strings"
	"testing"
)

func TestDSNIncludesDriverOptions(t *testing.T) {
	got := dsn("app", "secret", "db.internal", "3306", "flynkle")

	if !strings.HasPrefix(got, "app:secret@tcp(db.internal:3306)/flynkle?") {
		t.Fatalf("dsn() = %q, want app:secret@tcp(db.internal:3306)/flynkle prefix", got)
	}
	for _, opt := range []string{
		"charset=utf8mb4",
		"parseTime=true",
		"loc=UTC",
		"clientFoundRows=true",
	} {
		if !strings.Contains(got, opt) {
			t.Fatalf("dsn() = %q, missing %s", got, opt)
		}
	}
}

func TestDSNOmitsEmptyPassword(t *testing.T) {
	got := dsn("app", "", "localhost", "3306", "flynkle")

	if !strings.HasPrefix(got, "app@tcp(localhost:3306)/flynkle?") {
		t.Fatalf("dsn() = %q, want app@tcp(localhost:3306)/flynkle prefix", got)
	}
	if strings.Contains(got, ":@") {
		t.Fatalf("dsn() = %q, empty password must not leave a colon", got)
	}
}
