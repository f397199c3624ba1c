package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/domain"
)

// GET /admin/request-logs?requestId=&page=&limit=
func (h *Handler) RequestLogs(c echo.Context) error {
	f := domain.LogFilter{RequestID: c.QueryParam("requestId")}
	var err error
	if f.Page, err = intParam(c, "page"); err != nil {
		return err
	}
	if f.Limit, err = intParam(c, "limit"); err != nil {
		return err
	}
	page, err := h.requests.RequestLogs(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}
