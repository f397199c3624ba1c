package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/govconnect/internal/alerts"
	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/store"
)

const previewRunes = 100

type Service struct {
	store    store.Store
	notifier *alerts.Service
	hub      Broadcaster
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(st store.Store, notifier *alerts.Service, hub Broadcaster, opts ...Option) *Service {
	s := &Service{
		store:    st,
		notifier: notifier,
		hub:      hub,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Participant loads a request and checks that userID is one of its parties.
func (s *Service) Participant(ctx context.Context, requestID, userID string) (*domain.ServiceRequest, error) {
	r, err := s.store.GetRequest(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("service request not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to fetch service request", err)
	}
	if !r.IsParty(userID) {
		return nil, apperr.Forbidden("not a participant in this request")
	}
	return r, nil
}

// Preview truncates content to 100 characters, appending "..." when cut.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "..."
}

// SendMessage stores a message from senderID to the other party and notifies them.
func (s *Service) SendMessage(ctx context.Context, senderID, requestID, content string) (*domain.Message, error) {
	r, err := s.Participant(ctx, requestID, senderID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.InvalidArg("content is required")
	}
	receiverID := r.OtherParty(senderID)
	if receiverID == "" {
		return nil, apperr.FailedPrecondition("request has no assigned vendor yet")
	}

	msg := &domain.Message{
		ID:               uuid.NewString(),
		ServiceRequestID: r.ID,
		SenderID:         senderID,
		ReceiverID:       receiverID,
		Content:          content,
		CreatedAt:        s.now().UTC(),
	}
	var note *domain.Notification
	err = s.store.InTx(ctx, func(tx store.Store) error {
		// messages on one thread commit one at a time so exactly one vendor reply is the first
		if err := tx.LockRequest(ctx, r.ID); err != nil {
			return err
		}
		if err := tx.CreateMessage(ctx, msg); err != nil {
			return err
		}
		if r.IsVendor(senderID) {
			if err := recordResponseTime(ctx, tx, r, msg); err != nil {
				return err
			}
		}
		note, err = s.notifier.NotifyTx(ctx, tx, alerts.NotifyInput{
			RecipientID:      receiverID,
			TriggeredBy:      senderID,
			Type:             domain.NotificationNewMessage,
			Title:            "New Message",
			Message:          Preview(content),
			RelatedRequestID: r.ID,
		})
		return err
	})
	if err != nil {
		return nil, apperr.Internal("failed to send message", err)
	}

	s.notifier.Fanout(ctx, note)
	s.hub.Broadcast(r.ID, EventMessageNew, msg)
	s.logger.Debug("message sent", "request_id", r.ID, "sender_id", senderID)
	return msg, nil
}

// recordResponseTime folds the vendor's first reply latency on a thread into
// the vendor profile. Only the first vendor message counts, and only when the
// contractor wrote first.
func recordResponseTime(ctx context.Context, tx store.Store, r *domain.ServiceRequest, reply *domain.Message) error {
	n, err := tx.CountMessagesBySender(ctx, r.ID, reply.SenderID)
	if err != nil || n != 1 {
		return err
	}
	first, err := tx.FirstMessageBySender(ctx, r.ID, r.ContractorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if first.CreatedAt.After(reply.CreatedAt) {
		return nil
	}
	elapsed := int(reply.CreatedAt.Sub(first.CreatedAt).Minutes())

	profile, err := tx.GetVendorProfile(ctx, reply.SenderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	avg := FoldResponseTime(profile.ResponseTimeMinutes, elapsed)
	return tx.UpdateVendorResponseTime(ctx, reply.SenderID, avg, FormatResponseTime(avg))
}

// MarkRead marks every unread message addressed to readerID on the thread.
func (s *Service) MarkRead(ctx context.Context, requestID, readerID string) (int, error) {
	if _, err := s.Participant(ctx, requestID, readerID); err != nil {
		return 0, err
	}
	n, err := s.store.MarkMessagesRead(ctx, requestID, readerID)
	if err != nil {
		return 0, apperr.Internal("failed to mark messages read", err)
	}
	if n > 0 {
		s.hub.Broadcast(requestID, EventMessageRead, map[string]any{
			"service_request_id": requestID,
			"reader_id":          readerID,
			"count":              n,
		})
	}
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, requestID, readerID string) (int, error) {
	if _, err := s.Participant(ctx, requestID, readerID); err != nil {
		return 0, err
	}
	n, err := s.store.CountUnreadMessages(ctx, requestID, readerID)
	if err != nil {
		return 0, apperr.Internal("failed to compute unread count", err)
	}
	return n, nil
}

type ConversationList struct {
	Conversations []domain.Conversation `json:"conversations"`
	TotalUnread   int                   `json:"total_unread"`
}

// ListConversations returns every thread of userID, most recent message first.
// Threads without messages sort last, newest request first.
func (s *Service) ListConversations(ctx context.Context, userID string) (*ConversationList, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list conversations", err)
	}
	sort.SliceStable(convs, func(i, j int) bool {
		a, b := convs[i], convs[j]
		switch {
		case a.LastMessageAt == nil && b.LastMessageAt == nil:
			return a.RequestCreatedAt.After(b.RequestCreatedAt)
		case a.LastMessageAt == nil:
			return false
		case b.LastMessageAt == nil:
			return true
		}
		return a.LastMessageAt.After(*b.LastMessageAt)
	})

	out := &ConversationList{Conversations: convs}
	if out.Conversations == nil {
		out.Conversations = []domain.Conversation{}
	}
	for _, c := range convs {
		out.TotalUnread += c.UnreadCount
	}
	return out, nil
}

type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Thread struct {
	ServiceRequestID string           `json:"service_request_id"`
	RequestTitle     string           `json:"request_title"`
	ServiceTitle     string           `json:"service_title,omitempty"`
	Status           domain.Status    `json:"status"`
	Contractor       Party            `json:"contractor"`
	Vendor           *Party           `json:"vendor"`
	Messages         []domain.Message `json:"messages"`
}

// Thread returns the messages of a request, oldest first, with display names.
func (s *Service) Thread(ctx context.Context, requestID, userID string) (*Thread, error) {
	r, err := s.Participant(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, requestID)
	if err != nil {
		return nil, apperr.Internal("failed to list messages", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	t := &Thread{
		ServiceRequestID: r.ID,
		RequestTitle:     r.Title,
		Status:           r.Status,
		Contractor:       s.party(ctx, r.ContractorID),
		Messages:         msgs,
	}
	if r.VendorID != nil {
		v := s.party(ctx, *r.VendorID)
		t.Vendor = &v
	}
	if r.ServiceID != nil {
		if svc, err := s.store.GetService(ctx, *r.ServiceID); err == nil {
			t.ServiceTitle = svc.Title
		}
	}
	return t, nil
}

func (s *Service) party(ctx context.Context, id string) Party {
	p := Party{ID: id}
	if u, err := s.store.GetUser(ctx, id); err == nil {
		p.Name = u.Name
	}
	return p
}
