package messaging

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/idempotency"
	"github.com/sudo-init-do/govconnect/internal/middleware"
	"github.com/sudo-init-do/govconnect/internal/store"
)

type Handler struct {
	svc   *Service
	store store.Idempotency
	hub   *Hub
}

func NewHandler(svc *Service, idem store.Idempotency, hub *Hub) *Handler {
	return &Handler{svc: svc, store: idem, hub: hub}
}

type sendMessageInput struct {
	ServiceRequestID string `json:"serviceRequestId" validate:"required"`
	Content          string `json:"content"`
}

// SendMessage - contractor or vendor sends a message in a request thread
func (h *Handler) SendMessage(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	var body sendMessageInput
	if err := middleware.BindAndValidate(c, &body); err != nil {
		return err
	}
	return idempotency.Handle(c, h.store, "POST /messages", func() (int, any, error) {
		msg, err := h.svc.SendMessage(c.Request().Context(), userID, body.ServiceRequestID, body.Content)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, msg, nil
	})
}

// ListMessages - get the conversation for a request
func (h *Handler) ListMessages(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	requestID := c.Param("id")
	if requestID == "" {
		return apperr.InvalidArg("missing request id")
	}
	t, err := h.svc.Thread(c.Request().Context(), requestID, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// UnreadCount - unread count for the current user in a request thread
func (h *Handler) UnreadCount(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	n, err := h.svc.UnreadCount(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": n})
}

// MarkRead - caller marks every message addressed to them on the thread as read
func (h *Handler) MarkRead(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkRead(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}

// ListConversations - all threads of the caller with unread totals
func (h *Handler) ListConversations(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	list, err := h.svc.ListConversations(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// ThreadWS - websocket for realtime updates on a request thread
func (h *Handler) ThreadWS(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	requestID := c.Param("id")
	if _, err := h.svc.Participant(c.Request().Context(), requestID, userID); err != nil {
		return err
	}
	return h.hub.Serve(c, requestID, userID)
}
