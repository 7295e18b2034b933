package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/middleware"
	"github.com/iliyamo/pharmacy-marketplace/internal/service"
)

// NotificationHandler is the read side of the notification sink.
type NotificationHandler struct {
	Notifications *service.NotificationService
}

func NewNotificationHandler(n *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{Notifications: n}
}

// List handles GET /v1/notifications.
func (h *NotificationHandler) List(c echo.Context) error {
	list, err := h.Notifications.List(c.Request().Context(), middleware.IdentityFrom(c).AccountID)
	if err != nil {
		return fail(c, err)
	}
	out := make([]notificationDTO, 0, len(list))
	for _, n := range list {
		out = append(out, notificationDTO{
			ID: n.ID, Type: n.Type, Title: n.Title, Body: n.Body,
			RefID: n.RefID, ReadAt: n.ReadAt, CreatedAt: n.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// MarkRead handles POST /v1/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_ID")
	}
	if err := h.Notifications.MarkRead(c.Request().Context(), id, middleware.IdentityFrom(c).AccountID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
