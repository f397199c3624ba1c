package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/domain"
)

type Stats struct {
	Requests int                   `json:"requests"`
	ByStatus map[domain.Status]int `json:"by_status"`
}

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	items, err := h.requests.List(c.Request().Context(), "", domain.RoleAdmin)
	if err != nil {
		return err
	}
	out := Stats{
		Requests: len(items),
		ByStatus: map[domain.Status]int{
			domain.StatusPending:    0,
			domain.StatusMatched:    0,
			domain.StatusInProgress: 0,
			domain.StatusDelivered:  0,
			domain.StatusCompleted:  0,
			domain.StatusCancelled:  0,
		},
	}
	for _, r := range items {
		out.ByStatus[r.Status]++
	}
	return c.JSON(http.StatusOK, out)
}
