package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/flynkle/flynkle-api/internal/quota"
	"github.com/flynkle/flynkle-api/internal/repository"
	"github.com/flynkle/flynkle-api/internal/response"
)

// AdminHandler serves the operator endpoints.  Route-level middleware has
// already established the caller as an admin.
type AdminHandler struct {
	Users *repository.UserRepo
}

func NewAdminHandler(u *repository.UserRepo) *AdminHandler {
	return &AdminHandler{Users: u}
}

type adminUpdateUserReq struct {
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
	Plan        *string `json:"plan"`
	IsSuspended *bool   `json:"is_suspended"`
}

// ListUsers returns a page of users, optionally filtered by an email
// substring and optionally including soft-deleted rows.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	offset, _ := strconv.Atoi(c.QueryParam("skip"))
	if offset < 0 {
		offset = 0
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}
	search := strings.TrimSpace(c.QueryParam("search"))
	includeDeleted := c.QueryParam("include_deleted") == "true"

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx, search, includeDeleted, offset, limit)
	if err != nil {
		log.Printf("admin: list users: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "list failed")
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	return response.Success(c, views)
}

// GetUser returns a single account by id. Soft-deleted accounts are
// visible here so operators can inspect one before restoring it.
func (h *AdminHandler) GetUser(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByIDIncludeDeleted(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "user not found")
		}
		log.Printf("admin: get user: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "get failed")
	}
	return response.Success(c, toUserView(u))
}

// UpdateUser patches profile fields, plan and suspension on any account.
// Admin changes skip the downgrade guard on purpose: operators can always
// move a user to a smaller plan.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	var req adminUpdateUserReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	if req.Email == nil && req.PhoneNumber == nil && req.Plan == nil && req.IsSuspended == nil {
		return response.Fail(c, http.StatusBadRequest, "nothing to update")
	}
	if req.Plan != nil && !quota.Known(*req.Plan) {
		return response.Fail(c, http.StatusBadRequest, "unknown plan")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "user not found")
		}
		log.Printf("admin: get user: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "update failed")
	}

	if req.Email != nil || req.PhoneNumber != nil {
		if err := h.Users.UpdateProfile(ctx, u.ID, req.Email, req.PhoneNumber); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return response.Fail(c, http.StatusConflict, "email already exists")
			}
			log.Printf("admin: update profile: %v", err)
			return response.Fail(c, http.StatusInternalServerError, "update failed")
		}
	}
	if req.Plan != nil {
		if err := h.Users.SetPlan(ctx, u.ID, *req.Plan); err != nil {
			log.Printf("admin: set plan: %v", err)
			return response.Fail(c, http.StatusInternalServerError, "update failed")
		}
	}
	if req.IsSuspended != nil {
		if err := h.Users.SetSuspended(ctx, u.ID, *req.IsSuspended); err != nil {
			log.Printf("admin: set suspended: %v", err)
			return response.Fail(c, http.StatusInternalServerError, "update failed")
		}
	}

	fresh, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		log.Printf("admin: reload user: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "update failed")
	}
	return response.Success(c, toUserView(fresh))
}

// RestoreUser clears the soft-delete mark on an account.
func (h *AdminHandler) RestoreUser(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	if err := h.Users.Restore(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "user not found")
		}
		log.Printf("admin: restore user: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "restore failed")
	}

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		log.Printf("admin: reload user: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "restore failed")
	}
	return response.Success(c, toUserView(u))
}
