// Package store defines the persistence port shared by every service.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sudo-init-do/govconnect/internal/domain"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: conflict")
)

// Store is implemented by pgstore and memstore. A Store passed to the InTx
// callback is bound to the transaction; everything written through it
// commits or rolls back together.
type Store interface {
	InTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error

	Users
	Requests
	RequestLogs
	Deliveries
	Messages
	Notifications
	Reviews
	Idempotency
}

type Users interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetService(ctx context.Context, id string) (*domain.Service, error)
	GetVendorProfile(ctx context.Context, userID string) (*domain.VendorProfile, error)
	UpdateVendorRating(ctx context.Context, vendorID string, rating float64, count int) error
	UpdateVendorResponseTime(ctx context.Context, vendorID string, minutes int, display string) error
}

type Requests interface {
	CreateRequest(ctx context.Context, r *domain.ServiceRequest) error
	GetRequest(ctx context.Context, id string) (*domain.ServiceRequest, error)
	// LockRequest holds the request row until the surrounding transaction ends.
	LockRequest(ctx context.Context, id string) error
	// ListRequests returns requests where userID plays role; RoleAdmin lists all.
	ListRequests(ctx context.Context, userID string, role domain.Role) ([]domain.ServiceRequest, error)
	UpdateRequestStatus(ctx context.Context, id string, status domain.Status, at time.Time) error
}

type RequestLogs interface {
	AppendRequestLog(ctx context.Context, l *domain.RequestLog) error
	ListRequestLogs(ctx context.Context, f domain.LogFilter) ([]domain.RequestLog, int, error)
}

type Deliveries interface {
	NextDeliveryVersion(ctx context.Context, requestID string) (int, error)
	CreateDelivery(ctx context.Context, d *domain.Delivery) error
	CreateAttachment(ctx context.Context, a *domain.Attachment) error
	ListDeliveries(ctx context.Context, requestID string) ([]domain.Delivery, error)
}

type Messages interface {
	CreateMessage(ctx context.Context, m *domain.Message) error
	ListMessages(ctx context.Context, requestID string) ([]domain.Message, error)
	CountMessagesBySender(ctx context.Context, requestID, senderID string) (int, error)
	// FirstMessageBySender returns ErrNotFound when senderID has not written yet.
	FirstMessageBySender(ctx context.Context, requestID, senderID string) (*domain.Message, error)
	MarkMessagesRead(ctx context.Context, requestID, readerID string) (int, error)
	CountUnreadMessages(ctx context.Context, requestID, readerID string) (int, error)
	// ListConversations returns one summary per request userID is party to.
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
}

type Notifications interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]domain.NotificationView, error)
	// MarkNotificationRead returns ErrNotFound when id does not belong to userID.
	MarkNotificationRead(ctx context.Context, id, userID string) (*domain.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

type Reviews interface {
	// CreateReview returns ErrConflict for a second review by the same reviewer on a request.
	CreateReview(ctx context.Context, r *domain.Review) error
	HasReviewed(ctx context.Context, requestID, reviewerID string) (bool, error)
	RatingStats(ctx context.Context, revieweeID string) (avg float64, count int, err error)
	RatingBreakdown(ctx context.Context, revieweeID string) (map[int]int, error)
	ListReviewsForRequest(ctx context.Context, requestID string) ([]domain.ReviewWithReviewer, error)
	ListReviewsForReviewee(ctx context.Context, revieweeID string, limit, offset int) ([]domain.ReviewWithReviewer, error)
}

type Idempotency interface {
	// ReserveIdempotencyKey claims the key for one in-flight call. It reports
	// false when the key is already reserved or completed.
	ReserveIdempotencyKey(ctx context.Context, actorID, key, endpoint string) (bool, error)
	// GetIdempotencyRecord returns ErrNotFound for an unknown key. A reserved
	// key without a response yet comes back Pending.
	GetIdempotencyRecord(ctx context.Context, actorID, key, endpoint string) (*domain.IdempotencyRecord, error)
	// SaveIdempotencyRecord completes a reservation. It returns ErrConflict
	// when a response is already stored.
	SaveIdempotencyRecord(ctx context.Context, rec *domain.IdempotencyRecord) error
	// ReleaseIdempotencyKey drops a reservation whose call failed.
	ReleaseIdempotencyKey(ctx context.Context, actorID, key, endpoint string) error
}
