package router

// This file registers reservation and notification routes.  Customers book
// and list their own reservations; pharmacy access holders list and decide
// the reservations of their pharmacy.  Access to a pharmacy is checked by
// the service, not by a role guard.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/handler"
	"github.com/iliyamo/pharmacy-marketplace/internal/middleware"
)

// RegisterReservations mounts reservation endpoints under /v1.  All routes
// require a valid JWT.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	auth := middleware.JWTAuth(jwtSecret)
	e.POST("/v1/reservations", h.Create, auth)
	e.GET("/v1/reservations", h.ListMine, auth)
	e.POST("/v1/reservations/:id/confirm", h.Confirm, auth)
	e.POST("/v1/reservations/:id/reject", h.Reject, auth)
	e.GET("/v1/pharmacies/:id/reservations", h.ListForPharmacy, auth)
}

// RegisterNotifications mounts the notification read side.
func RegisterNotifications(e *echo.Echo, h *handler.NotificationHandler, jwtSecret string) {
	g := e.Group("/v1/notifications", middleware.JWTAuth(jwtSecret))
	g.GET("", h.List)
	g.POST("/:id/read", h.MarkRead)
}
