package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/handler"
	"github.com/iliyamo/pharmacy-marketplace/internal/middleware"
	"github.com/iliyamo/pharmacy-marketplace/internal/service"
)

// RegisterOffers registers the offer detail route and moderation actions.
// The detail route resolves a token when one is sent so that access holders
// and moderators can see hidden offers; everything else needs a JWT, and the
// moderation actions additionally a moderator or admin.
func RegisterOffers(e *echo.Echo, h *handler.OfferHandler, access *service.Access, jwtSecret string) {
	e.GET("/v1/offers/:id", h.View, middleware.OptionalAuth(jwtSecret))

	g := e.Group("/v1/offers", middleware.JWTAuth(jwtSecret))
	g.PATCH("/:id", h.Edit)
	g.POST("/:id/request-unfreeze", h.RequestUnfreeze)

	// ---- Moderation ----
	mod := middleware.RequireModerator(access)
	g.POST("/:id/freeze", h.Freeze, mod)
	g.POST("/:id/unfreeze", h.Unfreeze, mod)

	admin := middleware.RequireAdmin(access)
	g.POST("/:id/delete", h.Delete, admin)
	g.POST("/:id/restore", h.Restore, admin)
}
