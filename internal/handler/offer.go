package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/middleware"
	"github.com/iliyamo/pharmacy-marketplace/internal/model"
	"github.com/iliyamo/pharmacy-marketplace/internal/service"
)

// OfferHandler serves the offer detail page and the moderation actions.
// Visibility of hidden offers is decided by the moderation service, so
// View works for anonymous and authenticated callers alike.
type OfferHandler struct {
	Moderation *service.ModerationService
}

func NewOfferHandler(m *service.ModerationService) *OfferHandler {
	return &OfferHandler{Moderation: m}
}

type reasonReq struct {
	Reason string `json:"reason"`
}

type messageReq struct {
	Message string `json:"message"`
}

// editOfferReq keeps stockQty raw so an explicit null can be told apart
// from an absent field.
type editOfferReq struct {
	BookingPrice *float64        `json:"bookingPrice"`
	StockQty     json.RawMessage `json:"stockQty"`
	Currency     *string         `json:"currency"`
}

func (r editOfferReq) input() (service.ContentInput, bool) {
	in := service.ContentInput{BookingPrice: r.BookingPrice, Currency: r.Currency}
	switch raw := bytes.TrimSpace(r.StockQty); {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		in.ClearStock = true
	default:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return in, false
		}
		in.StockQty = &n
	}
	return in, true
}

// View handles GET /v1/offers/:id.
func (h *OfferHandler) View(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_ID")
	}
	v, err := h.Moderation.View(c.Request().Context(), id, middleware.IdentityFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Edit handles PATCH /v1/offers/:id.
func (h *OfferHandler) Edit(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_ID")
	}
	var req editOfferReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY")
	}
	in, ok := req.input()
	if !ok {
		return badRequest(c, "INVALID_STOCK")
	}
	v, err := h.Moderation.EditContent(c.Request().Context(), id, middleware.IdentityFrom(c), in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

type moderationAction func(c echo.Context, offerID uint64, actor *model.Identity) (*model.Offer, error)

// moderate runs one moderation action and answers with the updated offer.
func (h *OfferHandler) moderate(act moderationAction) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c, "id")
		if !ok {
			return badRequest(c, "INVALID_ID")
		}
		o, err := act(c, id, middleware.IdentityFrom(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, service.NewOfferView(o))
	}
}

// Freeze handles POST /v1/offers/:id/freeze.
func (h *OfferHandler) Freeze(c echo.Context) error {
	return h.moderate(func(c echo.Context, id uint64, actor *model.Identity) (*model.Offer, error) {
		var req reasonReq
		if err := c.Bind(&req); err != nil {
			return nil, service.ErrInvalidInput
		}
		return h.Moderation.Freeze(c.Request().Context(), id, req.Reason, actor)
	})(c)
}

// Unfreeze handles POST /v1/offers/:id/unfreeze.
func (h *OfferHandler) Unfreeze(c echo.Context) error {
	return h.moderate(func(c echo.Context, id uint64, actor *model.Identity) (*model.Offer, error) {
		return h.Moderation.Unfreeze(c.Request().Context(), id, actor)
	})(c)
}

// Delete handles POST /v1/offers/:id/delete.
func (h *OfferHandler) Delete(c echo.Context) error {
	return h.moderate(func(c echo.Context, id uint64, actor *model.Identity) (*model.Offer, error) {
		var req reasonReq
		if err := c.Bind(&req); err != nil {
			return nil, service.ErrInvalidInput
		}
		return h.Moderation.Delete(c.Request().Context(), id, req.Reason, actor)
	})(c)
}

// Restore handles POST /v1/offers/:id/restore.
func (h *OfferHandler) Restore(c echo.Context) error {
	return h.moderate(func(c echo.Context, id uint64, actor *model.Identity) (*model.Offer, error) {
		return h.Moderation.Restore(c.Request().Context(), id, actor)
	})(c)
}

// RequestUnfreeze handles POST /v1/offers/:id/request-unfreeze.
func (h *OfferHandler) RequestUnfreeze(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_ID")
	}
	var req messageReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "INVALID_BODY")
	}
	if err := h.Moderation.RequestUnfreeze(c.Request().Context(), id, middleware.IdentityFrom(c), req.Message); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"ok": true})
}
