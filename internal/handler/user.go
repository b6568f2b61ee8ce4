package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/flynkle/flynkle-api/internal/billing"
	"github.com/flynkle/flynkle-api/internal/middleware"
	"github.com/flynkle/flynkle-api/internal/model"
	"github.com/flynkle/flynkle-api/internal/quota"
	"github.com/flynkle/flynkle-api/internal/repository"
	"github.com/flynkle/flynkle-api/internal/response"
)

// UserHandler serves the authenticated user's own account endpoints.
type UserHandler struct {
	Users *repository.UserRepo
	Usage *repository.UsageRepo
	Gate  *quota.Gate
}

func NewUserHandler(u *repository.UserRepo, usage *repository.UsageRepo, g *quota.Gate) *UserHandler {
	return &UserHandler{Users: u, Usage: usage, Gate: g}
}

// userView is the safe serialization of a user record.  The password hash
// never leaves the server.
type userView struct {
	ID          string     `json:"id"`
	Email       *string    `json:"email"`
	PhoneNumber *string    `json:"phone_number"`
	Provider    string     `json:"provider"`
	IsVerified  bool       `json:"is_verified"`
	IsActive    bool       `json:"is_active"`
	IsSuspended bool       `json:"is_suspended"`
	IsAdmin     bool       `json:"is_admin"`
	Plan        string     `json:"plan"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLogin   *time.Time `json:"last_login"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func toUserView(u model.User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Provider:    u.Provider,
		IsVerified:  u.IsVerified,
		IsActive:    u.IsActive,
		IsSuspended: u.IsSuspended,
		IsAdmin:     u.IsAdmin,
		Plan:        u.Plan,
		CreatedAt:   u.CreatedAt,
		LastLogin:   u.LastLogin,
		DeletedAt:   u.DeletedAt,
	}
}

type updateMeReq struct {
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
}

type upgradeReq struct {
	Plan string `json:"plan"`
}

// Me returns the authenticated user's profile.
func (h *UserHandler) Me(c echo.Context) error {
	u := middleware.CurrentUser(c)
	return response.Success(c, toUserView(*u))
}

// UpdateMe patches the caller's profile fields.  Only email and phone
// number are self-serviceable; plan and flags go through dedicated
// endpoints.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	u := middleware.CurrentUser(c)

	var req updateMeReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	if req.Email == nil && req.PhoneNumber == nil {
		return response.Fail(c, http.StatusBadRequest, "nothing to update")
	}
	if req.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*req.Email))
		if e == "" {
			return response.Fail(c, http.StatusBadRequest, "email cannot be empty")
		}
		req.Email = &e
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.UpdateProfile(ctx, u.ID, req.Email, req.PhoneNumber); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return response.Fail(c, http.StatusConflict, "email already exists")
		}
		log.Printf("user: update profile: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "update failed")
	}

	fresh, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		log.Printf("user: reload after update: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "update failed")
	}
	return response.Success(c, toUserView(fresh))
}

// DeleteMe soft-deletes the caller's account.  The row stays in the
// database and an admin can restore it.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	u := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.SoftDelete(ctx, u.ID); err != nil {
		log.Printf("user: soft delete: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "delete failed")
	}
	return response.Success(c, echo.Map{"detail": "account deleted"})
}

type usageView struct {
	Date         string `json:"date"`
	MessageCount int    `json:"message_count"`
	TokenCount   *int   `json:"token_count"`
	FileUploads  *int   `json:"file_uploads"`
}

type usageResp struct {
	Plan    string       `json:"plan"`
	Limits  quota.Limits `json:"limits"`
	Today   usageView    `json:"today"`
	History []usageView  `json:"history"`
}

// GetUsage returns the caller's plan limits, today's counters and the
// per-day usage history.
func (h *UserHandler) GetUsage(c echo.Context) error {
	u := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	today, err := h.Gate.Ledger().DailyUsage(ctx, u.ID, h.Gate.Today())
	if err != nil {
		log.Printf("user: daily usage: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "usage lookup failed")
	}
	records, err := h.Usage.ListByUser(ctx, u.ID)
	if err != nil {
		log.Printf("user: usage history: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "usage lookup failed")
	}
	history := make([]usageView, 0, len(records))
	for _, r := range records {
		history = append(history, usageView{
			Date:         quota.DayKey(r.UsageDate),
			MessageCount: r.MessageCount,
			TokenCount:   r.TokenCount,
			FileUploads:  r.FileUploads,
		})
	}

	return response.Success(c, usageResp{
		Plan:   u.Plan,
		Limits: quota.LimitsFor(u.Plan),
		Today: usageView{
			Date:         quota.DayKey(h.Gate.Today()),
			MessageCount: today.MessageCount,
			TokenCount:   today.TokenCount,
			FileUploads:  today.FileUploads,
		},
		History: history,
	})
}

// Upgrade switches the caller to another plan.  Moving to a smaller plan
// is refused while current usage already exceeds the target's limits.
// Payment is a logged stub.
func (h *UserHandler) Upgrade(c echo.Context) error {
	u := middleware.CurrentUser(c)

	var req upgradeReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Plan = strings.ToLower(strings.TrimSpace(req.Plan))
	if !quota.Known(req.Plan) {
		return response.Fail(c, http.StatusBadRequest, "unknown plan")
	}
	if req.Plan == u.Plan {
		return response.Fail(c, http.StatusBadRequest, "already on this plan")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Gate.CheckDowngrade(ctx, u.ID, req.Plan); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			return response.Fail(c, http.StatusConflict, "current usage exceeds target plan limits")
		}
		log.Printf("user: downgrade check: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "plan change failed")
	}

	billing.ChargePlan(u.ID, req.Plan)

	if err := h.Users.SetPlan(ctx, u.ID, req.Plan); err != nil {
		log.Printf("user: set plan: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "plan change failed")
	}

	return response.Success(c, echo.Map{"plan": req.Plan})
}
