package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/domain"
)

// AdminGuard ensures only admin users can access admin routes
func AdminGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if Role(c) != domain.RoleAdmin {
			return apperr.Forbidden("admin access only")
		}
		return next(c)
	}
}
