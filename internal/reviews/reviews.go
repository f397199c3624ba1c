package reviews

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/idempotency"
	"github.com/sudo-init-do/govconnect/internal/middleware"
	"github.com/sudo-init-do/govconnect/internal/store"
)

type Handler struct {
	svc   *Service
	store store.Idempotency
}

func NewHandler(svc *Service, idem store.Idempotency) *Handler {
	return &Handler{svc: svc, store: idem}
}

// CreateReview allows a party to rate the other side of a completed request
func (h *Handler) CreateReview(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	var req CreateReviewRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	return idempotency.Handle(c, h.store, "POST /reviews", func() (int, any, error) {
		rev, err := h.svc.Submit(c.Request().Context(), SubmitInput{
			RequestID:  req.ServiceRequestID,
			ReviewerID: userID,
			Rating:     req.Rating,
			Comment:    req.Comment,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, rev, nil
	})
}

// GetVendorReviews returns all reviews for a specific vendor with rating summary
func (h *Handler) GetVendorReviews(c echo.Context) error {
	page, limit := 1, defaultPageSize
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= maxPageSize {
		limit = l
	}
	out, err := h.svc.VendorReviews(c.Request().Context(), c.Param("id"), page, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
