package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
	"github.com/iliyamo/pharmacy-marketplace/internal/service"
)

// guard aborts with 401 when no identity was resolved and with 403 when
// allow rejects it.  It must run after JWTAuth.
func guard(allow func(*model.Identity) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFrom(c)
			if id == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "UNAUTHORIZED"})
			}
			if !allow(id) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "FORBIDDEN"})
			}
			return next(c)
		}
	}
}

// RequireAdmin admits role ADMIN and allow-listed emails.
func RequireAdmin(a *service.Access) echo.MiddlewareFunc { return guard(a.IsAdmin) }

// RequireModerator admits admins and role MODERATOR.
func RequireModerator(a *service.Access) echo.MiddlewareFunc { return guard(a.IsModerator) }
