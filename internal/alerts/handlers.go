package alerts

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ListNotifications returns current user's notifications, newest first
func (h *Handler) ListNotifications(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": items})
}

// MarkNotificationRead marks a notification as read; null when it is not the caller's.
func (h *Handler) MarkNotificationRead(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	nid := c.Param("id")
	if nid == "" {
		return apperr.InvalidArg("missing notification id")
	}
	n, err := h.svc.MarkRead(c.Request().Context(), nid, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) UnreadCount(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	n, err := h.svc.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}
