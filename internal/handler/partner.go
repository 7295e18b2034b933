package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/middleware"
	"github.com/iliyamo/pharmacy-marketplace/internal/service"
)

// PartnerHandler exposes the applicant side of partner onboarding.  Every
// route runs behind JWTAuth.
type PartnerHandler struct {
	Partners *service.PartnerService
}

func NewPartnerHandler(p *service.PartnerService) *PartnerHandler {
	return &PartnerHandler{Partners: p}
}

// Apply handles POST /v1/partners/apply.
func (h *PartnerHandler) Apply(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	var req service.ApplicationInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY")
	}
	appID, err := h.Partners.Apply(c.Request().Context(), id.AccountID, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"applicationId": appID, "status": "PENDING"})
}

// Edit handles PATCH /v1/partners/application.
func (h *PartnerHandler) Edit(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	var req service.ApplicationInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY")
	}
	if err := h.Partners.Edit(c.Request().Context(), id.AccountID, req); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Cancel handles DELETE /v1/partners/application.
func (h *PartnerHandler) Cancel(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	if err := h.Partners.Cancel(c.Request().Context(), id.AccountID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Status handles GET /v1/partners/status.
func (h *PartnerHandler) Status(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	st, err := h.Partners.Status(c.Request().Context(), id.AccountID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":       st.Status,
		"inconsistent": st.Inconsistent,
		"application":  toApplicationDTO(st.Application),
	})
}

// Me handles GET /v1/partners/me.
func (h *PartnerHandler) Me(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	pu, err := h.Partners.Me(c.Request().Context(), id.AccountID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, partnerUserDTO{
		ID: pu.ID, AccountID: pu.AccountID, OrgID: pu.OrgID, OrgName: pu.OrgName,
		ChainID: pu.ChainID, ChainName: pu.ChainName, CreatedAt: pu.CreatedAt,
	})
}
