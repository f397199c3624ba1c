// Package user exposes the caller's identity and public vendor profiles.
package user

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/middleware"
	"github.com/sudo-init-do/govconnect/internal/store"
)

type Handler struct {
	store store.Users
}

func NewHandler(st store.Users) *Handler {
	return &Handler{store: st}
}

type Profile struct {
	domain.User
	Vendor *domain.VendorProfile `json:"vendor_profile,omitempty"`
}

func (h *Handler) profile(c echo.Context, id string) (*Profile, error) {
	ctx := c.Request().Context()
	u, err := h.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to fetch user", err)
	}
	p := &Profile{User: *u}
	if u.Role == domain.RoleVendor {
		vp, err := h.store.GetVendorProfile(ctx, u.ID)
		switch {
		case err == nil:
			p.Vendor = vp
		case !errors.Is(err, store.ErrNotFound):
			return nil, apperr.Internal("failed to fetch vendor profile", err)
		}
	}
	return p, nil
}

// GET /me
func (h *Handler) Me(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	p, err := h.profile(c, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// GET /vendors/:id
func (h *Handler) GetVendorProfile(c echo.Context) error {
	p, err := h.profile(c, c.Param("id"))
	if err != nil {
		return err
	}
	if p.Role != domain.RoleVendor {
		return apperr.NotFound("vendor not found")
	}
	// contact details stay private
	p.Email = ""
	return c.JSON(http.StatusOK, p)
}
