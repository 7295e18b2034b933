package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/middleware"
	"github.com/iliyamo/pharmacy-marketplace/internal/service"
)

// ReservationHandler exposes deposit reservations to customers and to the
// pharmacies they book with.
type ReservationHandler struct {
	Reservations *service.ReservationService
}

func NewReservationHandler(r *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{Reservations: r}
}

// Create handles POST /v1/reservations and answers 201 with the payment
// instruction.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req service.CreateReservationInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY")
	}
	res, err := h.Reservations.Create(c.Request().Context(), middleware.IdentityFrom(c), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListMine handles GET /v1/reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	list, err := h.Reservations.ListMine(c.Request().Context(), middleware.IdentityFrom(c).AccountID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toReservationDTOs(list)})
}

// ListForPharmacy handles GET /v1/pharmacies/:id/reservations.
func (h *ReservationHandler) ListForPharmacy(c echo.Context) error {
	pharmacyID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_ID")
	}
	list, err := h.Reservations.ListForPharmacy(c.Request().Context(), pharmacyID, middleware.IdentityFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toReservationDTOs(list)})
}

// Confirm handles POST /v1/reservations/:id/confirm.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_ID")
	}
	if err := h.Reservations.Confirm(c.Request().Context(), id, middleware.IdentityFrom(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": "CONFIRMED"})
}

// Reject handles POST /v1/reservations/:id/reject.
func (h *ReservationHandler) Reject(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_ID")
	}
	var req reasonReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY")
	}
	if err := h.Reservations.Reject(c.Request().Context(), id, middleware.IdentityFrom(c), req.Reason); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": "REJECTED"})
}
