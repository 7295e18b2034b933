package middleware

// identity.go holds the context keys for the resolved session and the
// helpers that read them back.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/model"
)

const (
	identityKey = "identity"
	userIDKey   = "user_id"
)

func setIdentity(c echo.Context, id *model.Identity) {
	c.Set(identityKey, id)
	c.Set(userIDKey, id.AccountID)
}

// IdentityFrom returns the identity resolved by JWTAuth or OptionalAuth, or
// nil for an anonymous request.
func IdentityFrom(c echo.Context) *model.Identity {
	id, _ := c.Get(identityKey).(*model.Identity)
	return id
}

// currentUserID is the rate-limit key part for the caller.
func currentUserID(c echo.Context) string {
	if id := IdentityFrom(c); id != nil {
		return strconv.FormatUint(id.AccountID, 10)
	}
	return "anon"
}
