package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/middleware"
	"github.com/iliyamo/pharmacy-marketplace/internal/model"
	"github.com/iliyamo/pharmacy-marketplace/internal/service"
)

// AdminHandler serves the partner-application review queue.  The router
// guards it with RequireAdmin.
type AdminHandler struct {
	Partners *service.PartnerService
}

func NewAdminHandler(p *service.PartnerService) *AdminHandler {
	return &AdminHandler{Partners: p}
}

type rejectReq struct {
	Reason *string `json:"reason"`
}

// ListApplications handles GET /v1/admin/partner-applications?status=&limit=&offset=.
func (h *AdminHandler) ListApplications(c echo.Context) error {
	list, err := h.Partners.List(c.Request().Context(), c.QueryParam("status"),
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return fail(c, err)
	}
	out := make([]*applicationDTO, 0, len(list))
	for i := range list {
		out = append(out, toApplicationDTO(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Approve handles POST /v1/admin/partner-applications/:id/approve.
func (h *AdminHandler) Approve(c echo.Context) error {
	appID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_ID")
	}
	res, err := h.Partners.Approve(c.Request().Context(), appID, middleware.IdentityFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Reject handles POST /v1/admin/partner-applications/:id/reject.  The
// reason is optional.
func (h *AdminHandler) Reject(c echo.Context) error {
	appID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_ID")
	}
	var req rejectReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY")
	}
	if err := h.Partners.Reject(c.Request().Context(), appID, middleware.IdentityFrom(c), req.Reason); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": appID, "status": model.ApplicationRejected})
}

// Dashboard handles GET /v1/admin/dashboard.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	counts, err := h.Partners.Dashboard(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"applications": counts})
}
