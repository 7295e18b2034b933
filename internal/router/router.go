package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/pharmacy-marketplace/internal/handler"    // import the handlers that implement the workflows
	"github.com/iliyamo/pharmacy-marketplace/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/pharmacy-marketplace/internal/storage"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	// Load balancers and monitoring poll this endpoint; it also pings the DB.
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers all authentication-related routes.  Register and
// login live under /v1/auth; /v1/me needs a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterUploads mounts the upload endpoint.  When files are kept on local
// disk the API serves them itself under the store's public path.
func RegisterUploads(e *echo.Echo, h *handler.UploadHandler, jwtSecret string) {
	e.POST("/v1/uploads", h.Upload, middleware.JWTAuth(jwtSecret))
	if local, ok := h.Store.(*storage.LocalStore); ok {
		e.Static(local.PublicPath(), local.Dir())
	}
}
