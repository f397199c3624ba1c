// Package requests drives service requests through their lifecycle and
// records every change in the audit log.
package requests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/govconnect/internal/alerts"
	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/messaging"
	"github.com/sudo-init-do/govconnect/internal/store"
)

const (
	defaultPriority = "medium"
	titleRunes      = 80
)

var priorities = map[string]bool{"low": true, "medium": true, "high": true, "urgent": true}

type Service struct {
	store    store.Store
	notifier *alerts.Service
	hub      messaging.Broadcaster
	policy   domain.TransitionPolicy
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPolicy(p domain.TransitionPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(st store.Store, notifier *alerts.Service, hub messaging.Broadcaster, opts ...Option) *Service {
	s := &Service{
		store:    st,
		notifier: notifier,
		hub:      hub,
		policy:   domain.DefaultPolicy(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) load(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	r, err := s.store.GetRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("service request not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to fetch service request", err)
	}
	return r, nil
}

func statusPtr(st domain.Status) *domain.Status { return &st }

func metadata(v map[string]any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

type CreateInput struct {
	ContractorID string
	VendorID     string
	ServiceID    string
	Title        string
	Description  string
	Category     string
	Priority     string
	BudgetMin    string
	BudgetMax    string
}

// Create opens a pending request owned by the contractor.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.ServiceRequest, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, apperr.InvalidArg("description is required")
	}
	priority := strings.ToLower(strings.TrimSpace(in.Priority))
	if priority == "" {
		priority = defaultPriority
	}
	if !priorities[priority] {
		return nil, apperr.InvalidArg("priority must be one of low, medium, high, urgent")
	}
	category := domain.Category(strings.TrimSpace(in.Category))
	if category != "" && !category.Valid() {
		return nil, apperr.InvalidArg("unknown category")
	}

	now := s.now().UTC()
	r := &domain.ServiceRequest{
		ID:           uuid.NewString(),
		ContractorID: in.ContractorID,
		Title:        strings.TrimSpace(in.Title),
		Description:  description,
		Category:     category,
		Priority:     priority,
		BudgetMin:    in.BudgetMin,
		BudgetMax:    in.BudgetMax,
		Status:       domain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if in.ServiceID != "" {
		svc, err := s.store.GetService(ctx, in.ServiceID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.InvalidArg("service not found")
		}
		if err != nil {
			return nil, apperr.Internal("failed to fetch service", err)
		}
		if in.VendorID != "" && in.VendorID != svc.VendorID {
			return nil, apperr.InvalidArg("service is not offered by this vendor")
		}
		in.VendorID = svc.VendorID
		r.ServiceID = &svc.ID
		if r.Title == "" {
			r.Title = svc.Title
		}
		if r.Category == "" {
			r.Category = svc.Category
		}
	}
	if in.VendorID != "" {
		u, err := s.store.GetUser(ctx, in.VendorID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && u.Role != domain.RoleVendor) {
			return nil, apperr.InvalidArg("vendorId does not reference a vendor")
		}
		if err != nil {
			return nil, apperr.Internal("failed to fetch vendor", err)
		}
		if u.ID == in.ContractorID {
			return nil, apperr.InvalidArg("cannot request your own service")
		}
		vendorID := u.ID
		r.VendorID = &vendorID
	}
	if r.Title == "" {
		r.Title = defaultTitle(description)
	}

	err := s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.CreateRequest(ctx, r); err != nil {
			return err
		}
		return tx.AppendRequestLog(ctx, &domain.RequestLog{
			ID:               uuid.NewString(),
			ServiceRequestID: r.ID,
			Action:           domain.ActionCreated,
			PerformedBy:      in.ContractorID,
			NewStatus:        statusPtr(domain.StatusPending),
			Metadata:         metadata(map[string]any{"priority": priority, "vendor_id": r.VendorID, "service_id": r.ServiceID}),
			CreatedAt:        now,
		})
	})
	if err != nil {
		return nil, apperr.Internal("failed to create service request", err)
	}
	s.logger.Info("service request created", "request_id", r.ID, "contractor_id", r.ContractorID)
	return r, nil
}

func defaultTitle(description string) string {
	runes := []rune(strings.Join(strings.Fields(description), " "))
	if len(runes) <= titleRunes {
		return string(runes)
	}
	return string(runes[:titleRunes]) + "..."
}

// UpdateStatus moves a request along the lifecycle on behalf of one of its parties.
// Setting the current status again is a no-op that returns the request unchanged.
func (s *Service) UpdateStatus(ctx context.Context, requestID, actorID, newStatus string) (*domain.ServiceRequest, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.IsParty(actorID) {
		return nil, apperr.Forbidden("not a party to this request")
	}
	next, ok := domain.ParseUpdatableStatus(newStatus)
	if !ok {
		return nil, apperr.InvalidArg(fmt.Sprintf("invalid status %q", newStatus))
	}
	if next == r.Status {
		return r, nil
	}
	if !s.policy.Allows(r.Status, next, r.PartyRole(actorID)) {
		return nil, apperr.FailedPrecondition(fmt.Sprintf("cannot move request from %s to %s", r.Status, next))
	}
	if next == domain.StatusInProgress && r.VendorID == nil {
		return nil, apperr.FailedPrecondition("request has no assigned vendor")
	}

	prev := r.Status
	now := s.now().UTC()
	var note *domain.Notification
	err = s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.UpdateRequestStatus(ctx, r.ID, next, now); err != nil {
			return err
		}
		if err := tx.AppendRequestLog(ctx, &domain.RequestLog{
			ID:               uuid.NewString(),
			ServiceRequestID: r.ID,
			Action:           domain.ActionStatusUpdated,
			PerformedBy:      actorID,
			PreviousStatus:   statusPtr(prev),
			NewStatus:        statusPtr(next),
			CreatedAt:        now,
		}); err != nil {
			return err
		}
		other := r.OtherParty(actorID)
		if other == "" {
			return nil
		}
		note, err = s.notifier.NotifyTx(ctx, tx, alerts.NotifyInput{
			RecipientID:      other,
			TriggeredBy:      actorID,
			Type:             domain.NotificationStatusChanged,
			Title:            "Status Updated",
			Message:          fmt.Sprintf("%q moved from %s to %s", r.Title, prev, next),
			RelatedRequestID: r.ID,
		})
		return err
	})
	if err != nil {
		return nil, apperr.Internal("failed to update status", err)
	}

	r.Status, r.UpdatedAt = next, now
	s.notifier.Fanout(ctx, note)
	s.hub.Broadcast(r.ID, messaging.EventStatusChanged, map[string]any{
		"service_request_id": r.ID,
		"previous_status":    prev,
		"status":             next,
		"performed_by":       actorID,
	})
	return r, nil
}

type AttachmentInput struct {
	FilePath string
	FileName string
	FileSize int64
}

// Deliver records a numbered delivery and moves the request to delivered.
// Delivery, attachments, status, audit entry and contractor notification
// commit together.
func (s *Service) Deliver(ctx context.Context, requestID, vendorID, message string, attachments []AttachmentInput) (*domain.Delivery, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.IsVendor(vendorID) {
		return nil, apperr.Forbidden("only the assigned vendor can deliver")
	}
	if strings.TrimSpace(message) == "" {
		return nil, apperr.InvalidArg("message is required")
	}
	for i, a := range attachments {
		if strings.TrimSpace(a.FilePath) == "" || strings.TrimSpace(a.FileName) == "" {
			return nil, apperr.InvalidArg(fmt.Sprintf("attachments[%d]: filePath and fileName are required", i))
		}
		if a.FileSize < 0 {
			return nil, apperr.InvalidArg(fmt.Sprintf("attachments[%d]: fileSize must not be negative", i))
		}
	}
	if r.Status != domain.StatusInProgress && r.Status != domain.StatusDelivered {
		return nil, apperr.FailedPrecondition(fmt.Sprintf("cannot deliver a request that is %s", r.Status))
	}

	prev := r.Status
	now := s.now().UTC()
	d := &domain.Delivery{
		ID:               uuid.NewString(),
		ServiceRequestID: r.ID,
		Message:          message,
		DeliveredBy:      vendorID,
		Attachments:      make([]domain.Attachment, 0, len(attachments)),
		CreatedAt:        now,
	}
	var note *domain.Notification
	err = s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.LockRequest(ctx, r.ID); err != nil {
			return err
		}
		version, err := tx.NextDeliveryVersion(ctx, r.ID)
		if err != nil {
			return err
		}
		d.Version = version
		if err := tx.CreateDelivery(ctx, d); err != nil {
			return err
		}
		for _, in := range attachments {
			a := domain.Attachment{
				ID:         uuid.NewString(),
				DeliveryID: d.ID,
				FilePath:   in.FilePath,
				FileName:   in.FileName,
				FileSize:   in.FileSize,
			}
			if err := tx.CreateAttachment(ctx, &a); err != nil {
				return err
			}
			d.Attachments = append(d.Attachments, a)
		}
		if err := tx.UpdateRequestStatus(ctx, r.ID, domain.StatusDelivered, now); err != nil {
			return err
		}
		if err := tx.AppendRequestLog(ctx, &domain.RequestLog{
			ID:               uuid.NewString(),
			ServiceRequestID: r.ID,
			Action:           domain.ActionDelivered,
			PerformedBy:      vendorID,
			PreviousStatus:   statusPtr(prev),
			NewStatus:        statusPtr(domain.StatusDelivered),
			Metadata:         metadata(map[string]any{"delivery_id": d.ID, "version": d.Version, "attachments": len(d.Attachments)}),
			CreatedAt:        now,
		}); err != nil {
			return err
		}
		msg := "Your order has been delivered"
		if d.Version > 1 {
			msg = fmt.Sprintf("A revised delivery (version %d) is ready for review", d.Version)
		}
		note, err = s.notifier.NotifyTx(ctx, tx, alerts.NotifyInput{
			RecipientID:      r.ContractorID,
			TriggeredBy:      vendorID,
			Type:             domain.NotificationDelivery,
			Title:            "New Delivery",
			Message:          msg,
			RelatedRequestID: r.ID,
		})
		return err
	})
	if err != nil {
		return nil, apperr.Internal("failed to record delivery", err)
	}

	s.notifier.Fanout(ctx, note)
	s.hub.Broadcast(r.ID, messaging.EventDelivered, d)
	s.logger.Info("delivery recorded", "request_id", r.ID, "version", d.Version, "attachments", len(d.Attachments))
	return d, nil
}

// ExtendDelivery records the vendor's request for more time. It is advisory:
// the status does not change and no deadline is enforced.
func (s *Service) ExtendDelivery(ctx context.Context, requestID, vendorID string, newDate time.Time, reason string) (*domain.RequestLog, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.IsVendor(vendorID) {
		return nil, apperr.Forbidden("only the assigned vendor can request an extension")
	}
	if r.Status != domain.StatusInProgress {
		return nil, apperr.FailedPrecondition("extensions can only be requested while in progress")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.InvalidArg("reason is required")
	}
	now := s.now().UTC()
	if !newDate.After(now) {
		return nil, apperr.InvalidArg("newDeliveryDate must be in the future")
	}

	entry := &domain.RequestLog{
		ID:               uuid.NewString(),
		ServiceRequestID: r.ID,
		Action:           domain.ActionExtensionRequest,
		PerformedBy:      vendorID,
		Metadata: metadata(map[string]any{
			"new_delivery_date": newDate.UTC().Format(time.RFC3339),
			"reason":            reason,
		}),
		CreatedAt: now,
	}
	var note *domain.Notification
	err = s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.AppendRequestLog(ctx, entry); err != nil {
			return err
		}
		note, err = s.notifier.NotifyTx(ctx, tx, alerts.NotifyInput{
			RecipientID:      r.ContractorID,
			TriggeredBy:      vendorID,
			Type:             domain.NotificationDeliveryExtension,
			Title:            "Delivery Extension Requested",
			Message:          fmt.Sprintf("New delivery date %s: %s", newDate.UTC().Format("Jan 2, 2006"), reason),
			RelatedRequestID: r.ID,
		})
		return err
	})
	if err != nil {
		return nil, apperr.Internal("failed to record extension request", err)
	}
	s.notifier.Fanout(ctx, note)
	return entry, nil
}

// List returns the caller's requests; admins see every request.
func (s *Service) List(ctx context.Context, userID string, role domain.Role) ([]domain.ServiceRequest, error) {
	items, err := s.store.ListRequests(ctx, userID, role)
	if err != nil {
		return nil, apperr.Internal("failed to list service requests", err)
	}
	if items == nil {
		items = []domain.ServiceRequest{}
	}
	return items, nil
}

type VendorSummary struct {
	domain.User
	Profile *domain.VendorProfile `json:"profile,omitempty"`
}

type Detail struct {
	domain.ServiceRequest
	Contractor      *domain.User                `json:"contractor"`
	Vendor          *VendorSummary              `json:"vendor"`
	Service         *domain.Service             `json:"service"`
	Messages        []domain.Message            `json:"messages"`
	Deliveries      []domain.Delivery           `json:"deliveries"`
	Reviews         []domain.ReviewWithReviewer `json:"reviews"`
	AlreadyReviewed bool                        `json:"alreadyReviewed"`
}

// Get returns a request with its parties, thread, deliveries and reviews.
func (s *Service) Get(ctx context.Context, requestID, userID string, role domain.Role) (*Detail, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.IsParty(userID) && role != domain.RoleAdmin {
		return nil, apperr.Forbidden("not a party to this request")
	}

	d := &Detail{ServiceRequest: *r}
	if u, err := s.store.GetUser(ctx, r.ContractorID); err == nil {
		d.Contractor = u
	}
	if r.VendorID != nil {
		if u, err := s.store.GetUser(ctx, *r.VendorID); err == nil {
			d.Vendor = &VendorSummary{User: *u}
			if p, err := s.store.GetVendorProfile(ctx, u.ID); err == nil {
				d.Vendor.Profile = p
			}
		}
	}
	if r.ServiceID != nil {
		if svc, err := s.store.GetService(ctx, *r.ServiceID); err == nil {
			d.Service = svc
		}
	}

	if d.Messages, err = s.store.ListMessages(ctx, r.ID); err != nil {
		return nil, apperr.Internal("failed to load messages", err)
	}
	if d.Deliveries, err = s.store.ListDeliveries(ctx, r.ID); err != nil {
		return nil, apperr.Internal("failed to load deliveries", err)
	}
	if d.Reviews, err = s.store.ListReviewsForRequest(ctx, r.ID); err != nil {
		return nil, apperr.Internal("failed to load reviews", err)
	}
	if d.AlreadyReviewed, err = s.store.HasReviewed(ctx, r.ID, userID); err != nil {
		return nil, apperr.Internal("failed to load reviews", err)
	}
	if d.Messages == nil {
		d.Messages = []domain.Message{}
	}
	if d.Deliveries == nil {
		d.Deliveries = []domain.Delivery{}
	}
	if d.Reviews == nil {
		d.Reviews = []domain.ReviewWithReviewer{}
	}
	return d, nil
}

const (
	defaultLogLimit = 20
	maxLogLimit     = 100
)

type LogPage struct {
	Logs  []domain.RequestLog `json:"logs"`
	Total int                 `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

// RequestLogs pages through the audit trail, newest first.
func (s *Service) RequestLogs(ctx context.Context, f domain.LogFilter) (*LogPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultLogLimit
	}
	if f.Limit > maxLogLimit {
		f.Limit = maxLogLimit
	}
	logs, total, err := s.store.ListRequestLogs(ctx, f)
	if err != nil {
		return nil, apperr.Internal("failed to load request logs", err)
	}
	if logs == nil {
		logs = []domain.RequestLog{}
	}
	return &LogPage{Logs: logs, Total: total, Page: f.Page, Limit: f.Limit}, nil
}
