package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/store"
)

// Service owns in-app notifications and their email fan-out.
type Service struct {
	store      store.Store
	dispatcher Dispatcher
	appURL     string
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(st store.Store, d Dispatcher, appURL string, opts ...Option) *Service {
	if d == nil {
		d = NopDispatcher{}
	}
	s := &Service{
		store:      st,
		dispatcher: d,
		appURL:     strings.TrimRight(appURL, "/"),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type NotifyInput struct {
	RecipientID      string
	TriggeredBy      string
	Type             domain.NotificationType
	Title            string
	Message          string
	RelatedRequestID string
}

// NotifyTx inserts a notification through tx. Call Fanout after the
// transaction commits.
func (s *Service) NotifyTx(ctx context.Context, tx store.Store, in NotifyInput) (*domain.Notification, error) {
	n := &domain.Notification{
		ID:          uuid.NewString(),
		UserID:      in.RecipientID,
		Type:        in.Type,
		Title:       in.Title,
		Message:     in.Message,
		TriggeredBy: in.TriggeredBy,
		CreatedAt:   s.now().UTC(),
	}
	if in.RelatedRequestID != "" {
		id := in.RelatedRequestID
		n.RelatedRequestID = &id
	}
	if err := tx.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Notify inserts a notification on its own and fans it out.
func (s *Service) Notify(ctx context.Context, in NotifyInput) (*domain.Notification, error) {
	n, err := s.NotifyTx(ctx, s.store, in)
	if err != nil {
		return nil, apperr.Internal("failed to create notification", err)
	}
	s.Fanout(ctx, n)
	return n, nil
}

// Fanout enqueues the email copy of n. Failures are logged, never returned.
func (s *Service) Fanout(ctx context.Context, n *domain.Notification) {
	if n == nil {
		return
	}
	u, err := s.store.GetUser(ctx, n.UserID)
	if err != nil {
		s.logger.Warn("notification fanout: recipient lookup", "notification_id", n.ID, "err", err)
		return
	}
	if u.Email == "" {
		return
	}
	p := NotificationEmailPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           string(n.Type),
		Envelope: EmailEnvelope{
			To:      u.Email,
			Subject: n.Title,
			Body:    s.emailBody(u.Name, n),
		},
		SentAt: s.now().UTC(),
	}
	if n.RelatedRequestID != nil {
		p.RelatedRequestID = *n.RelatedRequestID
	}
	if err := s.dispatcher.EnqueueNotificationEmail(ctx, p); err != nil {
		s.logger.Warn("notification fanout: enqueue", "notification_id", n.ID, "err", err)
	}
}

func (s *Service) emailBody(name string, n *domain.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n%s\n", name, n.Message)
	if n.RelatedRequestID != nil && s.appURL != "" {
		fmt.Fprintf(&b, "\nOpen the request: %s/service-requests/%s\n", s.appURL, *n.RelatedRequestID)
	}
	b.WriteString("\nYou are receiving this because of activity on GovConnect.")
	return b.String()
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.NotificationView, error) {
	items, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load notifications", err)
	}
	if items == nil {
		items = []domain.NotificationView{}
	}
	return items, nil
}

// MarkRead returns nil without error when the notification is missing or
// belongs to someone else.
func (s *Service) MarkRead(ctx context.Context, id, userID string) (*domain.Notification, error) {
	n, err := s.store.MarkNotificationRead(ctx, id, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to update notification", err)
	}
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := s.store.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("failed to count notifications", err)
	}
	return n, nil
}
