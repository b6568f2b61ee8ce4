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

	"github.com/flynkle/flynkle-api/internal/config"
	"github.com/flynkle/flynkle-api/internal/otp"
	"github.com/flynkle/flynkle-api/internal/ratelimit"
	"github.com/flynkle/flynkle-api/internal/repository"
	"github.com/flynkle/flynkle-api/internal/response"
	"github.com/flynkle/flynkle-api/internal/token"
	"github.com/flynkle/flynkle-api/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Tokens  *token.Service
	OTPs    *otp.Service
	Limiter *ratelimit.Limiter
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *token.Service, o *otp.Service, l *ratelimit.Limiter) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, OTPs: o, Limiter: l}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type logoutReq struct {
	RefreshToken string `json:"refresh_token"`
}
type emailReq struct {
	Email string `json:"email"`
}
type resetPasswordReq struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}
type verifyEmailReq struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Plan  string `json:"plan"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// issuePair signs a fresh access+refresh pair for the given user.
func (h *AuthHandler) issuePair(ctx context.Context, userID string) (token.Pair, error) {
	access, accessExp, err := h.Tokens.IssueAccess(userID, 0)
	if err != nil {
		return token.Pair{}, err
	}
	refresh, refreshExp, err := h.Tokens.IssueRefresh(ctx, userID)
	if err != nil {
		return token.Pair{}, err
	}
	return token.Pair{Access: access, AccessExp: accessExp, Refresh: refresh, RefreshExp: refreshExp}, nil
}

func pairResp(u userPart, p token.Pair) authResp {
	return authResp{
		User:    u,
		Access:  tokenPart{Token: p.Access, Expires: p.AccessExp},
		Refresh: tokenPart{Token: p.Refresh, Expires: p.RefreshExp},
	}
}

// Register creates a local-provider account and returns tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return response.Fail(c, http.StatusBadRequest, "email/password required")
	}
	if len(req.Password) < 8 {
		return response.Fail(c, http.StatusBadRequest, "password must be at least 8 characters")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return response.Fail(c, http.StatusConflict, "email already exists")
		}
		log.Printf("auth: create user: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "create user failed")
	}

	pair, err := h.issuePair(ctx, uid)
	if err != nil {
		log.Printf("auth: issue tokens: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "issue tokens failed")
	}

	return c.JSON(http.StatusCreated, response.Envelope{
		Code:    http.StatusCreated,
		Message: "Created",
		Data:    pairResp(userPart{ID: uid, Email: req.Email, Plan: "free"}, pair),
	})
}

// Login verifies credentials and returns a new token pair.  Attempts are
// rate limited per email so credential stuffing cannot hammer bcrypt.
// Wrong email and wrong password produce the same response.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return response.Fail(c, http.StatusBadRequest, "email/password required")
	}

	if err := h.Limiter.Check(req.Email, ratelimit.ActionLogin); err != nil {
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(h.Limiter.Window().Seconds())))
		return response.Fail(c, http.StatusTooManyRequests, "too many login attempts")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusUnauthorized, "invalid credentials")
		}
		log.Printf("auth: lookup user: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "login failed")
	}
	if u.PasswordHash == nil || !utils.VerifyPassword(*u.PasswordHash, req.Password) {
		return response.Fail(c, http.StatusUnauthorized, "invalid credentials")
	}
	if u.IsSuspended {
		return response.Fail(c, http.StatusForbidden, "account suspended")
	}
	if !u.IsActive {
		return response.Fail(c, http.StatusForbidden, "account disabled")
	}

	if err := h.Users.TouchLastLogin(ctx, u.ID); err != nil {
		log.Printf("auth: touch last_login: %v", err) // non-fatal
	}

	pair, err := h.issuePair(ctx, u.ID)
	if err != nil {
		log.Printf("auth: issue tokens: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "issue tokens failed")
	}

	email := ""
	if u.Email != nil {
		email = *u.Email
	}
	return response.Success(c, pairResp(userPart{ID: u.ID, Email: email, Plan: u.Plan}, pair))
}

// Refresh rotates the presented refresh token.  The used token is revoked
// before the new pair is issued, so replaying it afterwards fails.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return response.Fail(c, http.StatusBadRequest, "refresh_token required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pair, err := h.Tokens.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			return response.Fail(c, http.StatusUnauthorized, "invalid token")
		}
		log.Printf("auth: refresh: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "refresh failed")
	}

	return response.Success(c, echo.Map{
		"access":  tokenPart{Token: pair.Access, Expires: pair.AccessExp},
		"refresh": tokenPart{Token: pair.Refresh, Expires: pair.RefreshExp},
	})
}

// Logout revokes the access token from the Authorization header and, when
// a refresh token is supplied in the body, that one too.  Revocation is
// idempotent; logging out twice succeeds.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutReq
	_ = c.Bind(&req) // body optional

	raw := bearerToken(c)
	if raw == "" && req.RefreshToken == "" {
		return response.Fail(c, http.StatusBadRequest, "nothing to revoke")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if raw != "" {
		if err := h.Tokens.RevokeAccess(ctx, raw); err != nil {
			log.Printf("auth: revoke access: %v", err)
			return response.Fail(c, http.StatusInternalServerError, "logout failed")
		}
	}
	if req.RefreshToken != "" {
		if err := h.Tokens.RevokeRefresh(ctx, req.RefreshToken); err != nil {
			log.Printf("auth: revoke refresh: %v", err)
			return response.Fail(c, http.StatusInternalServerError, "logout failed")
		}
	}

	return response.Success(c, echo.Map{"detail": "logout successful"})
}

// RequestPasswordReset issues a single-use reset code for the account.
// The response never reveals whether the email exists; the code is only
// generated (and, in dev, returned) for real accounts.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return response.Fail(c, http.StatusBadRequest, "email required")
	}

	if err := h.Limiter.Check(req.Email, ratelimit.ActionLogin); err != nil {
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(h.Limiter.Window().Seconds())))
		return response.Fail(c, http.StatusTooManyRequests, "too many attempts")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	data := echo.Map{"detail": "reset code sent"}
	if _, err := h.Users.GetByEmail(ctx, req.Email); err == nil {
		code, err := h.OTPs.Generate(ctx, otp.ScopeReset(req.Email))
		if err != nil {
			log.Printf("auth: generate reset otp: %v", err)
			return response.Fail(c, http.StatusInternalServerError, "could not generate code")
		}
		// There is no mail sender yet; outside prod the code comes back in
		// the response so the flow can be exercised end to end.
		if h.Cfg.Env != "prod" {
			data["otp"] = code
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Printf("auth: lookup user for reset: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "could not generate code")
	}

	return response.Success(c, data)
}

// ResetPassword consumes a reset code and installs the new password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.OTP == "" || req.NewPassword == "" {
		return response.Fail(c, http.StatusBadRequest, "email/otp/new_password required")
	}
	if len(req.NewPassword) < 8 {
		return response.Fail(c, http.StatusBadRequest, "password must be at least 8 characters")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.OTPs.VerifyAndConsume(ctx, otp.ScopeReset(req.Email), req.OTP)
	if err != nil {
		log.Printf("auth: verify reset otp: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "could not verify code")
	}
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "invalid or expired code")
	}

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "user not found")
		}
		log.Printf("auth: lookup user for reset: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "reset failed")
	}
	if err := h.Users.SetPassword(ctx, u.ID, req.NewPassword, h.Cfg.BcryptCost); err != nil {
		log.Printf("auth: set password: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "reset failed")
	}

	return response.Success(c, echo.Map{"detail": "password updated"})
}

// RequestVerify issues a single-use email verification code for the
// authenticated flow's counterpart: the caller supplies the email and the
// code is bound to the verify scope for that address.
func (h *AuthHandler) RequestVerify(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return response.Fail(c, http.StatusBadRequest, "email required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByEmail(ctx, req.Email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "user not found")
		}
		log.Printf("auth: lookup user for verify: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "could not generate code")
	}

	code, err := h.OTPs.Generate(ctx, otp.ScopeVerify(req.Email))
	if err != nil {
		log.Printf("auth: generate verify otp: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "could not generate code")
	}

	data := echo.Map{"detail": "verification code sent"}
	if h.Cfg.Env != "prod" {
		data["otp"] = code
	}
	return response.Success(c, data)
}

// VerifyEmail consumes a verification code and marks the account verified.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.OTP == "" {
		return response.Fail(c, http.StatusBadRequest, "email/otp required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.OTPs.VerifyAndConsume(ctx, otp.ScopeVerify(req.Email), req.OTP)
	if err != nil {
		log.Printf("auth: verify otp: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "could not verify code")
	}
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "invalid or expired code")
	}

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "user not found")
		}
		log.Printf("auth: lookup user for verify: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "verification failed")
	}
	if err := h.Users.SetVerified(ctx, u.ID); err != nil {
		log.Printf("auth: set verified: %v", err)
		return response.Fail(c, http.StatusInternalServerError, "verification failed")
	}

	return response.Success(c, echo.Map{"detail": "verification successful"})
}

// bearerToken returns the raw token from the Authorization header, or ""
// when the header is absent or not a bearer scheme.
func bearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
