package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/flynkle/flynkle-api/internal/response"
)

// RequireAdmin guards the admin endpoints.  Admin traffic arrives through
// a trusted internal path that sets the X-Admin header; anything else is
// rejected with 403.
func RequireAdmin() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if c.Request().Header.Get("X-Admin") != "true" {
                return response.Fail(c, http.StatusForbidden, "admin privileges required")
            }
            return next(c)
        }
    }
}
