package pgstore

import (
	"context"

	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/store"
)

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, is_read, related_request_id, triggered_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.IsRead, n.RelatedRequestID, n.TriggeredBy, n.CreatedAt)
	return translate(err, "pgstore.CreateNotification")
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]domain.NotificationView, error) {
	rows, err := s.q.Query(ctx, `
		SELECT n.id::text, n.user_id::text, n.type, n.title, n.message, n.is_read,
			n.related_request_id::text, n.triggered_by::text, n.created_at,
			u.id::text, u.name, u.role
		FROM notifications n
		LEFT JOIN users u ON u.id = n.triggered_by
		WHERE n.user_id = $1
		ORDER BY n.created_at DESC
	`, userID)
	if err != nil {
		return nil, translate(err, "pgstore.ListNotifications")
	}
	defer rows.Close()

	var out []domain.NotificationView
	for rows.Next() {
		var v domain.NotificationView
		var typ string
		var senderID, senderName, senderRole *string
		if err := rows.Scan(
			&v.ID, &v.UserID, &typ, &v.Title, &v.Message, &v.IsRead,
			&v.RelatedRequestID, &v.TriggeredBy, &v.CreatedAt,
			&senderID, &senderName, &senderRole,
		); err != nil {
			return nil, translate(err, "pgstore.ListNotifications.scan")
		}
		v.Type = domain.NotificationType(typ)
		if senderID != nil {
			v.Sender = &domain.User{ID: *senderID, Name: deref(senderName), Role: domain.Role(deref(senderRole))}
		}
		out = append(out, v)
	}
	return out, translate(rows.Err(), "pgstore.ListNotifications.rows")
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) (*domain.Notification, error) {
	if malformed(id) {
		return nil, store.ErrNotFound
	}
	var n domain.Notification
	var typ string
	err := s.q.QueryRow(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING id::text, user_id::text, type, title, message, is_read,
			related_request_id::text, triggered_by::text, created_at
	`, id, userID).Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.IsRead, &n.RelatedRequestID, &n.TriggeredBy, &n.CreatedAt)
	if err != nil {
		return nil, translate(err, "pgstore.MarkNotificationRead")
	}
	n.Type = domain.NotificationType(typ)
	return &n, nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE
	`, userID).Scan(&n)
	if err != nil {
		return 0, translate(err, "pgstore.CountUnreadNotifications")
	}
	return n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
