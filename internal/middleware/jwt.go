package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
	"github.com/iliyamo/pharmacy-marketplace/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the resolved *model.Identity in the request context.  Handlers
// read it back with IdentityFrom.  The secret must match the one used when
// issuing tokens.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "UNAUTHORIZED"})
			}
			id, err := resolve(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "UNAUTHORIZED"})
			}
			setIdentity(c, id)
			return next(c)
		}
	}
}

// OptionalAuth resolves the identity when a valid token is present and
// otherwise lets the request through anonymously.  A malformed or expired
// token is treated the same as no token.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if id, err := resolve(secret, raw); err == nil {
					setIdentity(c, id)
				}
			}
			return next(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

func resolve(secret, raw string) (*model.Identity, error) {
	accountID, claims, err := utils.ParseAccessToken(secret, raw)
	if err != nil {
		return nil, err
	}
	return &model.Identity{AccountID: accountID, Email: claims.Email, Roles: claims.Roles}, nil
}
