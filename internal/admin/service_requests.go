package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/domain"
)

// GET /admin/service-requests?status=
func (h *Handler) ListServiceRequests(c echo.Context) error {
	items, err := h.requests.List(c.Request().Context(), "", domain.RoleAdmin)
	if err != nil {
		return err
	}
	if s := domain.Status(c.QueryParam("status")); s != "" {
		filtered := make([]domain.ServiceRequest, 0, len(items))
		for _, r := range items {
			if r.Status == s {
				filtered = append(filtered, r)
			}
		}
		items = filtered
	}
	return c.JSON(http.StatusOK, echo.Map{"service_requests": items})
}
