package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/flynkle/flynkle-api/internal/response"
)

func TestListPlansEnvelopeAndOrder(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
	rec := httptest.NewRecorder()

	if err := ListPlans(e.NewContext(req, rec)); err != nil {
		t.Fatalf("ListPlans() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var env struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    []struct {
			Name          string `json:"name"`
			Price         int    `json:"price"`
			DailyMessages int    `json:"daily_messages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if env.Code != http.StatusOK || env.Message != "Success" {
		t.Fatalf("envelope = {%d %q}, want {200 \"Success\"}", env.Code, env.Message)
	}
	if len(env.Data) != 2 {
		t.Fatalf("plan count = %d, want 2", len(env.Data))
	}
	// Cheapest first.
	if env.Data[0].Name != "free" || env.Data[1].Name != "pro" {
		t.Fatalf("plan order = [%s %s], want [free pro]", env.Data[0].Name, env.Data[1].Name)
	}
	if env.Data[0].DailyMessages != 20 || env.Data[1].DailyMessages != 1000 {
		t.Fatalf("daily messages = [%d %d], want [20 1000]",
			env.Data[0].DailyMessages, env.Data[1].DailyMessages)
	}
}

func TestFailEnvelopeShape(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	if err := response.Fail(e.NewContext(req, rec), http.StatusTeapot, "nope"); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	var env response.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if env.Code != http.StatusTeapot || env.Message != "nope" || env.Data != nil {
		t.Fatalf("envelope = %+v, want {418 nope <nil>}", env)
	}
}
