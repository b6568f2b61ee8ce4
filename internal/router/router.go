package router // package router defines how HTTP routes are registered for the API

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/flynkle/flynkle-api/internal/handler"
	"github.com/flynkle/flynkle-api/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance: the health check and the plan catalog.  The
// plan catalog sits behind the shared response cache when Redis is up;
// with a nil client the middleware passes straight through.
func RegisterRoutes(e *echo.Echo, rdb *redis.Client) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
	e.GET("/v1/plans", handler.ListPlans, middleware.Cache(rdb, 5*time.Minute))
}

// RegisterAuth registers the authentication endpoints.  Everything under
// /v1/auth works without a session; register and login hand out the first
// token pair, refresh rotates it and logout revokes it.  The OTP flows
// (password reset, email verification) are two-step: request a code, then
// consume it.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/request-reset", a.RequestPasswordReset)
	g.POST("/reset-password", a.ResetPassword)
	g.POST("/request-verify", a.RequestVerify)
	g.POST("/verify-email", a.VerifyEmail)
}

// RegisterUser registers the authenticated account endpoints under /v1.
// The auth middleware resolves the bearer token to a live user and rejects
// revoked tokens and deleted accounts before any handler runs.
func RegisterUser(e *echo.Echo, auth echo.MiddlewareFunc, u *handler.UserHandler) {
	g := e.Group("/v1", auth)
	g.GET("/me", u.Me)
	g.PATCH("/me", u.UpdateMe)
	g.DELETE("/me", u.DeleteMe)
	g.GET("/user/usage", u.GetUsage)
	g.POST("/user/upgrade", u.Upgrade)
}

// RegisterConversations registers conversation CRUD and the nested
// message endpoints under /v1.  Ownership checks happen in the handlers;
// foreign and missing resources are indistinguishable to the caller.
func RegisterConversations(e *echo.Echo, auth echo.MiddlewareFunc, cv *handler.ConversationHandler, m *handler.MessageHandler) {
	g := e.Group("/v1", auth)
	g.POST("/conversations", cv.Create)
	g.GET("/conversations", cv.List)
	g.GET("/conversations/:id", cv.Get)
	g.PATCH("/conversations/:id", cv.Update)
	g.DELETE("/conversations/:id", cv.Delete)

	g.POST("/conversations/:id/messages", m.Create)
	g.GET("/conversations/:id/messages", m.List)
	g.GET("/conversations/:id/messages/:message_id", m.Get)
	g.PATCH("/conversations/:id/messages/:message_id", m.Update)
	g.DELETE("/conversations/:id/messages/:message_id", m.Delete)
}

// RegisterChat registers the model invocation endpoints under /v1.
func RegisterChat(e *echo.Echo, auth echo.MiddlewareFunc, ch *handler.ChatHandler) {
	g := e.Group("/v1", auth)
	g.POST("/chat", ch.Chat)
	g.POST("/chat/stream", ch.ChatStream)
}

// RegisterUploads registers the file upload endpoints under /v1.
func RegisterUploads(e *echo.Echo, auth echo.MiddlewareFunc, up *handler.UploadHandler) {
	g := e.Group("/v1", auth)
	g.POST("/uploads", up.Create)
	g.GET("/uploads", up.List)
}

// RegisterAdmin registers operator endpoints under /v1/admin.  Access is
// granted by the trusted X-Admin header set at the edge proxy; the
// handlers never see an unauthorized request.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler) {
	g := e.Group("/v1/admin", middleware.RequireAdmin())
	g.GET("/users", a.ListUsers)
	g.GET("/users/:id", a.GetUser)
	g.PATCH("/users/:id", a.UpdateUser)
	g.POST("/users/:id/restore", a.RestoreUser)
}

// RegisterModeration registers the staging endpoints under /v1/moderation.
func RegisterModeration(e *echo.Echo, m *handler.ModerationHandler) {
	g := e.Group("/v1/moderation", middleware.RequireAdmin())
	g.POST("/stage-in", m.StageIn)
	g.POST("/stage-out", m.StageOut)
	g.GET("", m.List)
}
