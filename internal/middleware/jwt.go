package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/utils"
)

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// JWTMiddleware validates the bearer token and stores user_id and role on the context.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := utils.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				// browsers cannot set headers on websocket upgrades
				if q := c.QueryParam("token"); q != "" && c.IsWebSocket() {
					tokenStr = q
				} else {
					return apperr.Unauthenticated(err.Error())
				}
			}
			claims, err := utils.ParseToken(key, tokenStr)
			if err != nil {
				return apperr.Unauthenticated(err.Error())
			}
			if !domain.Role(claims.Role).Valid() {
				return apperr.Unauthenticated("unknown role")
			}
			c.Set(userIDKey, claims.UserID)
			c.Set(roleKey, claims.Role)
			return next(c)
		}
	}
}

// UserID returns the authenticated user id or "".
func UserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

// Role returns the authenticated role or "".
func Role(c echo.Context) domain.Role {
	role, _ := c.Get(roleKey).(string)
	return domain.Role(role)
}

// Principal returns the caller or an UNAUTHENTICATED error.
func Principal(c echo.Context) (string, domain.Role, error) {
	id := UserID(c)
	if id == "" {
		return "", "", apperr.Unauthenticated("unauthorized")
	}
	return id, Role(c), nil
}
