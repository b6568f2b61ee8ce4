package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/flynkle/flynkle-api/internal/model"
    "github.com/flynkle/flynkle-api/internal/repository"
    "github.com/flynkle/flynkle-api/internal/response"
    "github.com/flynkle/flynkle-api/internal/token"
)

// Auth returns an Echo middleware that validates a Bearer access token via
// the token service (signature, expiry, type and revocation set) and loads
// the authenticated user.  Handlers access the user via
// `c.Get("user").(*model.User)` and the id via `c.Get("user_id")`.
// Clients are never told why a token failed, only that it is invalid.
func Auth(tokens *token.Service, users *repository.UserRepo) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return response.Fail(c, http.StatusUnauthorized, "missing bearer token")
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()

            uid, err := tokens.DecodeAccess(ctx, raw)
            if err != nil {
                if errors.Is(err, token.ErrInvalidToken) {
                    return response.Fail(c, http.StatusUnauthorized, "invalid token")
                }
                c.Logger().Errorf("decode access token: %v", err)
                return response.Fail(c, http.StatusInternalServerError, "internal error")
            }

            u, err := users.GetByID(ctx, uid)
            if err != nil {
                if errors.Is(err, repository.ErrNotFound) {
                    return response.Fail(c, http.StatusNotFound, "user not found")
                }
                c.Logger().Errorf("load user %s: %v", uid, err)
                return response.Fail(c, http.StatusInternalServerError, "internal error")
            }

            c.Set("user", &u)
            c.Set("user_id", u.ID)
            return next(c)
        }
    }
}

// CurrentUser retrieves the user stored by Auth.  It returns nil when the
// middleware did not run on this route.
func CurrentUser(c echo.Context) *model.User {
    if u, ok := c.Get("user").(*model.User); ok {
        return u
    }
    return nil
}
