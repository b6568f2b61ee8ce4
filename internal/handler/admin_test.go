package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/flynkle/flynkle-api/internal/repository"
)

const adminUserCols = "id,email,phone_number,provider,provider_id,password_hash," +
	"is_verified,verified_at,is_active,is_suspended,is_admin,plan," +
	"created_at,updated_at,last_login,deleted_at"

func newAdminHandler(t *testing.T) (*AdminHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAdminHandler(repository.NewUserRepo(db)), mock
}

func getUserRequest(t *testing.T, h *AdminHandler, id string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	if err := h.GetUser(c); err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	return rec
}

func TestAdminGetUserIncludesSoftDeleted(t *testing.T) {
	h, mock := newAdminHandler(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	deleted := now.Add(24 * time.Hour)

	mock.ExpectQuery("SELECT "+adminUserCols+" FROM users WHERE id=? LIMIT 1").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(strings.Split(adminUserCols, ",")).
			AddRow("u1", "a@b.c", nil, "local", nil, "hash",
				true, nil, false, false, false, "free",
				now, now, nil, deleted))

	rec := getUserRequest(t, h, "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var env struct {
		Data struct {
			ID        string  `json:"id"`
			DeletedAt *string `json:"deleted_at"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if env.Data.ID != "u1" {
		t.Fatalf("data.id = %q, want u1", env.Data.ID)
	}
	if env.Data.DeletedAt == nil {
		t.Fatal("data.deleted_at missing, want the soft-delete timestamp")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdminGetUserNotFound(t *testing.T) {
	h, mock := newAdminHandler(t)

	mock.ExpectQuery("SELECT "+adminUserCols+" FROM users WHERE id=? LIMIT 1").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	rec := getUserRequest(t, h, "ghost")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
