// Package admin serves the operator views over requests and their audit trail.
package admin

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/requests"
)

type Handler struct {
	requests *requests.Service
}

func NewHandler(svc *requests.Service) *Handler {
	return &Handler{requests: svc}
}

func intParam(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.InvalidArg(name + " must be a positive integer")
	}
	return n, nil
}
