package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/domain"
)

// RequireRoles ensures the requester's role is one of the allowed roles.
// Usage: route(..., RequireRoles(domain.RoleContractor))
func RequireRoles(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := Role(c)
			if role == "" {
				return apperr.Forbidden("role missing")
			}
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return apperr.Forbidden("access denied")
		}
	}
}
