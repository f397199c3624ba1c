package requests

import (
	"net/http"
	"time"

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

type createRequestInput struct {
	VendorID    string `json:"vendorId"`
	ServiceID   string `json:"serviceId"`
	Title       string `json:"title" validate:"max=200"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	BudgetMin   string `json:"budgetMin"`
	BudgetMax   string `json:"budgetMax"`
}

// Create - contractor opens a service request
func (h *Handler) Create(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	var body createRequestInput
	if err := middleware.BindAndValidate(c, &body); err != nil {
		return err
	}
	return idempotency.Handle(c, h.store, "POST /service-requests", func() (int, any, error) {
		r, err := h.svc.Create(c.Request().Context(), CreateInput{
			ContractorID: userID,
			VendorID:     body.VendorID,
			ServiceID:    body.ServiceID,
			Title:        body.Title,
			Description:  body.Description,
			Category:     body.Category,
			Priority:     body.Priority,
			BudgetMin:    body.BudgetMin,
			BudgetMax:    body.BudgetMax,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, r, nil
	})
}

// List - requests the caller is party to
func (h *Handler) List(c echo.Context) error {
	userID, role, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), userID, role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// Get - request detail with thread, deliveries and reviews
func (h *Handler) Get(c echo.Context) error {
	userID, role, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), c.Param("id"), userID, role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

type updateStatusInput struct {
	Status string `json:"status"`
}

// UpdateStatus - a party moves the request along the lifecycle
func (h *Handler) UpdateStatus(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	var body updateStatusInput
	if err := middleware.BindAndValidate(c, &body); err != nil {
		return err
	}
	r, err := h.svc.UpdateStatus(c.Request().Context(), c.Param("id"), userID, body.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

type attachmentInput struct {
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// Deliver, status and extension bodies are checked by the service after the
// caller is authorized, so a non-party always gets 403.
type deliverInput struct {
	Message     string            `json:"message"`
	Attachments []attachmentInput `json:"attachments"`
}

// Deliver - assigned vendor submits work
func (h *Handler) Deliver(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	var body deliverInput
	if err := middleware.BindAndValidate(c, &body); err != nil {
		return err
	}
	atts := make([]AttachmentInput, 0, len(body.Attachments))
	for _, a := range body.Attachments {
		atts = append(atts, AttachmentInput{FilePath: a.FilePath, FileName: a.FileName, FileSize: a.FileSize})
	}
	requestID := c.Param("id")
	return idempotency.Handle(c, h.store, "POST /service-requests/"+requestID+"/deliver", func() (int, any, error) {
		d, err := h.svc.Deliver(c.Request().Context(), requestID, userID, body.Message, atts)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, d, nil
	})
}

type extendInput struct {
	NewDeliveryDate time.Time `json:"newDeliveryDate"`
	Reason          string    `json:"reason"`
}

// ExtendDelivery - vendor asks the contractor for more time
func (h *Handler) ExtendDelivery(c echo.Context) error {
	userID, _, err := middleware.Principal(c)
	if err != nil {
		return err
	}
	var body extendInput
	if err := middleware.BindAndValidate(c, &body); err != nil {
		return err
	}
	entry, err := h.svc.ExtendDelivery(c.Request().Context(), c.Param("id"), userID, body.NewDeliveryDate, body.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, entry)
}
