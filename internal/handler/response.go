package handler // handler defines http handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/service"
)

// statusByKind maps workflow failure kinds onto HTTP statuses.
var statusByKind = map[service.Kind]int{
	service.KindValidation:    http.StatusBadRequest,
	service.KindNotFound:      http.StatusNotFound,
	service.KindStateConflict: http.StatusBadRequest,
	service.KindAlreadyExists: http.StatusBadRequest,
	service.KindForbidden:     http.StatusForbidden,
}

// fail writes {"error": CODE} for business-rule failures.  Anything else is
// handed to echo as a 500 so the request logger records the cause.
func fail(c echo.Context, err error) error {
	if status, ok := statusByKind[service.KindOf(err)]; ok {
		return c.JSON(status, echo.Map{"error": service.CodeOf(err)})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, echo.Map{"error": "INTERNAL"}).SetInternal(err)
}

func badRequest(c echo.Context, code string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": code})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// queryInt reads an optional integer query parameter, falling back to def
// when it is absent or malformed.
func queryInt(c echo.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return v
	}
	return def
}
