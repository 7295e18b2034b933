package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/handler"
	"github.com/iliyamo/pharmacy-marketplace/internal/middleware"
	"github.com/iliyamo/pharmacy-marketplace/internal/service"
)

// RegisterPartner registers the applicant side of partner onboarding.  Any
// authenticated account may apply.
func RegisterPartner(e *echo.Echo, p *handler.PartnerHandler, jwtSecret string) {
	g := e.Group("/v1/partners", middleware.JWTAuth(jwtSecret))
	g.POST("/apply", p.Apply)
	g.PATCH("/application", p.Edit)
	g.DELETE("/application", p.Cancel)
	g.GET("/status", p.Status)
	g.GET("/me", p.Me)
}

// RegisterAdmin registers the review queue.  Routes require a valid JWT and
// an admin by role or allow-listed email.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, access *service.Access, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireAdmin(access),
	)
	g.GET("/partner-applications", a.ListApplications)
	g.POST("/partner-applications/:id/approve", a.Approve)
	g.POST("/partner-applications/:id/reject", a.Reject)
	g.GET("/dashboard", a.Dashboard)
}
