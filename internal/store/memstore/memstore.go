// Package memstore is an in-process store.Store used for local demos and tests.
// Transactions are serialized and roll back by restoring a snapshot.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/store"
)

type state struct {
	users         map[string]domain.User
	profiles      map[string]domain.VendorProfile
	services      map[string]domain.Service
	requests      map[string]domain.ServiceRequest
	logs          []domain.RequestLog
	deliveries    []domain.Delivery
	attachments   []domain.Attachment
	messages      []domain.Message
	notifications []domain.Notification
	reviews       []domain.Review
}

func newState() *state {
	return &state{
		users:    map[string]domain.User{},
		profiles: map[string]domain.VendorProfile{},
		services: map[string]domain.Service{},
		requests: map[string]domain.ServiceRequest{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	c.logs = append([]domain.RequestLog(nil), s.logs...)
	c.deliveries = append([]domain.Delivery(nil), s.deliveries...)
	c.attachments = append([]domain.Attachment(nil), s.attachments...)
	c.messages = append([]domain.Message(nil), s.messages...)
	c.notifications = append([]domain.Notification(nil), s.notifications...)
	c.reviews = append([]domain.Review(nil), s.reviews...)
	return c
}

type Store struct {
	txMu   sync.Mutex
	mu     sync.RWMutex
	data   *state
	faults map[string]error
	// idempotency keys live outside the snapshot so a rollback never drops a reservation
	idem map[string]domain.IdempotencyRecord
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: newState(), faults: map[string]error{}, idem: map[string]domain.IdempotencyRecord{}}
}

// AddUser seeds a user; vendors get an empty profile.
func (s *Store) AddUser(u domain.User, companyName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[u.ID] = u
	if u.Role == domain.RoleVendor {
		s.data.profiles[u.ID] = domain.VendorProfile{UserID: u.ID, CompanyName: companyName}
	}
}

func (s *Store) AddService(svc domain.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.services[svc.ID] = svc
}

// InjectFault makes the next call of op fail with err.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// fault must be called with mu held.
func (s *Store) fault(op string) error {
	if err, ok := s.faults[op]; ok {
		delete(s.faults, op)
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(txStore{s}); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// txStore is the view handed to InTx callbacks; nested InTx joins the outer one.
type txStore struct{ *Store }

func (t txStore) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// Users

func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.data.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetService(_ context.Context, id string) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.data.services[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &svc, nil
}

func (s *Store) GetVendorProfile(_ context.Context, userID string) (*domain.VendorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) UpdateVendorRating(_ context.Context, vendorID string, rating float64, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpdateVendorRating"); err != nil {
		return err
	}
	p, ok := s.data.profiles[vendorID]
	if !ok {
		return store.ErrNotFound
	}
	p.Rating, p.ReviewCount = rating, count
	s.data.profiles[vendorID] = p
	return nil
}

func (s *Store) UpdateVendorResponseTime(_ context.Context, vendorID string, minutes int, display string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.profiles[vendorID]
	if !ok {
		return store.ErrNotFound
	}
	p.ResponseTimeMinutes, p.ResponseTime = minutes, display
	s.data.profiles[vendorID] = p
	return nil
}

// Requests

func (s *Store) CreateRequest(_ context.Context, r *domain.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateRequest"); err != nil {
		return err
	}
	if _, ok := s.data.requests[r.ID]; ok {
		return store.ErrConflict
	}
	s.data.requests[r.ID] = *r
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string) (*domain.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

// LockRequest only checks existence; InTx already serializes transactions.
func (s *Store) LockRequest(_ context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.data.requests[id]; !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListRequests(_ context.Context, userID string, role domain.Role) ([]domain.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ServiceRequest
	for _, r := range s.data.requests {
		switch role {
		case domain.RoleAdmin:
		case domain.RoleVendor:
			if !r.IsVendor(userID) {
				continue
			}
		default:
			if r.ContractorID != userID {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateRequestStatus(_ context.Context, id string, status domain.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpdateRequestStatus"); err != nil {
		return err
	}
	r, ok := s.data.requests[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Status, r.UpdatedAt = status, at
	s.data.requests[id] = r
	return nil
}

// Audit log

func (s *Store) AppendRequestLog(_ context.Context, l *domain.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("AppendRequestLog"); err != nil {
		return err
	}
	s.data.logs = append(s.data.logs, *l)
	return nil
}

func (s *Store) ListRequestLogs(_ context.Context, f domain.LogFilter) ([]domain.RequestLog, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []domain.RequestLog
	// newest first; equal timestamps keep reverse insertion order
	for i := len(s.data.logs) - 1; i >= 0; i-- {
		l := s.data.logs[i]
		if f.RequestID != "" && l.ServiceRequestID != f.RequestID {
			continue
		}
		matched = append(matched, l)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start >= total || start < 0 {
		return nil, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Deliveries

func (s *Store) NextDeliveryVersion(_ context.Context, requestID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, d := range s.data.deliveries {
		if d.ServiceRequestID == requestID && d.Version > max {
			max = d.Version
		}
	}
	return max + 1, nil
}

func (s *Store) CreateDelivery(_ context.Context, d *domain.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateDelivery"); err != nil {
		return err
	}
	row := *d
	row.Attachments = nil
	s.data.deliveries = append(s.data.deliveries, row)
	return nil
}

func (s *Store) CreateAttachment(_ context.Context, a *domain.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateAttachment"); err != nil {
		return err
	}
	s.data.attachments = append(s.data.attachments, *a)
	return nil
}

func (s *Store) ListDeliveries(_ context.Context, requestID string) ([]domain.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Delivery
	for _, d := range s.data.deliveries {
		if d.ServiceRequestID != requestID {
			continue
		}
		d.Attachments = []domain.Attachment{}
		for _, a := range s.data.attachments {
			if a.DeliveryID == d.ID {
				d.Attachments = append(d.Attachments, a)
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Messages

func (s *Store) CreateMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateMessage"); err != nil {
		return err
	}
	s.data.messages = append(s.data.messages, *m)
	return nil
}

func (s *Store) ListMessages(_ context.Context, requestID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Message
	for _, m := range s.data.messages {
		if m.ServiceRequestID == requestID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountMessagesBySender(_ context.Context, requestID, senderID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.data.messages {
		if m.ServiceRequestID == requestID && m.SenderID == senderID {
			n++
		}
	}
	return n, nil
}

func (s *Store) FirstMessageBySender(_ context.Context, requestID, senderID string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var first *domain.Message
	for i := range s.data.messages {
		m := s.data.messages[i]
		if m.ServiceRequestID != requestID || m.SenderID != senderID {
			continue
		}
		if first == nil || m.CreatedAt.Before(first.CreatedAt) {
			first = &m
		}
	}
	if first == nil {
		return nil, store.ErrNotFound
	}
	return first, nil
}

func (s *Store) MarkMessagesRead(_ context.Context, requestID, readerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i, m := range s.data.messages {
		if m.ServiceRequestID == requestID && m.ReceiverID == readerID && !m.IsRead {
			s.data.messages[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *Store) CountUnreadMessages(_ context.Context, requestID, readerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.data.messages {
		if m.ServiceRequestID == requestID && m.ReceiverID == readerID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListConversations(_ context.Context, userID string) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Conversation
	for _, r := range s.data.requests {
		if !r.IsParty(userID) {
			continue
		}
		c := domain.Conversation{
			ServiceRequestID: r.ID,
			Title:            r.Title,
			Status:           r.Status,
			OtherPartyID:     r.OtherParty(userID),
			RequestCreatedAt: r.CreatedAt,
		}
		if u, ok := s.data.users[c.OtherPartyID]; ok {
			c.OtherPartyName = u.Name
		}
		for _, m := range s.data.messages {
			if m.ServiceRequestID != r.ID {
				continue
			}
			if c.LastMessageAt == nil || !m.CreatedAt.Before(*c.LastMessageAt) {
				content, at := m.Content, m.CreatedAt
				c.LastMessage, c.LastMessageAt = &content, &at
			}
			if m.ReceiverID == userID && !m.IsRead {
				c.UnreadCount++
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// Notifications

func (s *Store) CreateNotification(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateNotification"); err != nil {
		return err
	}
	s.data.notifications = append(s.data.notifications, *n)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID string) ([]domain.NotificationView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.NotificationView
	for i := len(s.data.notifications) - 1; i >= 0; i-- {
		n := s.data.notifications[i]
		if n.UserID != userID {
			continue
		}
		v := domain.NotificationView{Notification: n}
		if u, ok := s.data.users[n.TriggeredBy]; ok {
			sender := domain.User{ID: u.ID, Name: u.Name, Role: u.Role}
			v.Sender = &sender
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id, userID string) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.data.notifications {
		if n.ID == id && n.UserID == userID {
			s.data.notifications[i].IsRead = true
			out := s.data.notifications[i]
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CountUnreadNotifications(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, x := range s.data.notifications {
		if x.UserID == userID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

// Reviews

func (s *Store) CreateReview(_ context.Context, r *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateReview"); err != nil {
		return err
	}
	for _, x := range s.data.reviews {
		if x.ServiceRequestID == r.ServiceRequestID && x.ReviewerID == r.ReviewerID {
			return store.ErrConflict
		}
	}
	s.data.reviews = append(s.data.reviews, *r)
	return nil
}

func (s *Store) HasReviewed(_ context.Context, requestID, reviewerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, x := range s.data.reviews {
		if x.ServiceRequestID == requestID && x.ReviewerID == reviewerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RatingStats(_ context.Context, revieweeID string) (float64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, n := 0, 0
	for _, x := range s.data.reviews {
		if x.RevieweeID == revieweeID {
			sum += x.Rating
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
}

func (s *Store) RatingBreakdown(_ context.Context, revieweeID string) (map[int]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[int]int{}
	for _, x := range s.data.reviews {
		if x.RevieweeID == revieweeID {
			out[x.Rating]++
		}
	}
	return out, nil
}

func (s *Store) withReviewer(r domain.Review) domain.ReviewWithReviewer {
	return domain.ReviewWithReviewer{Review: r, ReviewerName: s.data.users[r.ReviewerID].Name}
}

func (s *Store) ListReviewsForRequest(_ context.Context, requestID string) ([]domain.ReviewWithReviewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ReviewWithReviewer
	for _, x := range s.data.reviews {
		if x.ServiceRequestID == requestID {
			out = append(out, s.withReviewer(x))
		}
	}
	return out, nil
}

func (s *Store) ListReviewsForReviewee(_ context.Context, revieweeID string, limit, offset int) ([]domain.ReviewWithReviewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []domain.ReviewWithReviewer
	for _, x := range s.data.reviews {
		if x.RevieweeID == revieweeID {
			all = append(all, s.withReviewer(x))
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// Idempotency

func idemKey(actorID, key, endpoint string) string {
	return actorID + "\x00" + key + "\x00" + endpoint
}

func (s *Store) ReserveIdempotencyKey(_ context.Context, actorID, key, endpoint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey(actorID, key, endpoint)
	if _, ok := s.idem[k]; ok {
		return false, nil
	}
	s.idem[k] = domain.IdempotencyRecord{ActorID: actorID, Key: key, Endpoint: endpoint}
	return true, nil
}

func (s *Store) GetIdempotencyRecord(_ context.Context, actorID, key, endpoint string) (*domain.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.idem[idemKey(actorID, key, endpoint)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) SaveIdempotencyRecord(_ context.Context, rec *domain.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey(rec.ActorID, rec.Key, rec.Endpoint)
	if cur, ok := s.idem[k]; ok && !cur.Pending() {
		return store.ErrConflict
	}
	s.idem[k] = *rec
	return nil
}

func (s *Store) ReleaseIdempotencyKey(_ context.Context, actorID, key, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey(actorID, key, endpoint)
	if cur, ok := s.idem[k]; ok && cur.Pending() {
		delete(s.idem, k)
	}
	return nil
}
