package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRequireAdminHeaderGate(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.String(http.StatusOK, "in") }
	guarded := RequireAdmin()(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	rec := httptest.NewRecorder()
	if err := guarded(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status without header = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	req.Header.Set("X-Admin", "true")
	rec = httptest.NewRecorder()
	if err := guarded(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status with header = %d, want 200", rec.Code)
	}
}

func TestRequireAdminRejectsWrongValue(t *testing.T) {
	e := echo.New()
	guarded := RequireAdmin()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Admin", "1")
	rec := httptest.NewRecorder()
	if err := guarded(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status with X-Admin=1 = %d, want 403", rec.Code)
	}
}

func TestCacheNilClientPassesThrough(t *testing.T) {
	e := echo.New()
	calls := 0
	h := Cache(nil, time.Minute)(func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "fresh")
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(req, rec)); err != nil {
			t.Fatalf("handler error = %v", err)
		}
		if rec.Body.String() != "fresh" {
			t.Fatalf("body = %q, want \"fresh\"", rec.Body.String())
		}
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2 (no caching without redis)", calls)
	}
}
