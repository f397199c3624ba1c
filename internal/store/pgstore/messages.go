package pgstore

import (
	"context"

	"github.com/sudo-init-do/govconnect/internal/domain"
)

func (s *Store) CreateMessage(ctx context.Context, m *domain.Message) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO messages (id, service_request_id, sender_id, receiver_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.ServiceRequestID, m.SenderID, m.ReceiverID, m.Content, m.IsRead, m.CreatedAt)
	return translate(err, "pgstore.CreateMessage")
}

func (s *Store) ListMessages(ctx context.Context, requestID string) ([]domain.Message, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id::text, service_request_id::text, sender_id::text, receiver_id::text, content, is_read, created_at
		FROM messages
		WHERE service_request_id = $1
		ORDER BY created_at ASC
	`, requestID)
	if err != nil {
		return nil, translate(err, "pgstore.ListMessages")
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ServiceRequestID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, translate(err, "pgstore.ListMessages.scan")
		}
		out = append(out, m)
	}
	return out, translate(rows.Err(), "pgstore.ListMessages.rows")
}

func (s *Store) CountMessagesBySender(ctx context.Context, requestID, senderID string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE service_request_id = $1 AND sender_id = $2
	`, requestID, senderID).Scan(&n)
	if err != nil {
		return 0, translate(err, "pgstore.CountMessagesBySender")
	}
	return n, nil
}

func (s *Store) FirstMessageBySender(ctx context.Context, requestID, senderID string) (*domain.Message, error) {
	var m domain.Message
	err := s.q.QueryRow(ctx, `
		SELECT id::text, service_request_id::text, sender_id::text, receiver_id::text, content, is_read, created_at
		FROM messages
		WHERE service_request_id = $1 AND sender_id = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, requestID, senderID).Scan(&m.ID, &m.ServiceRequestID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &m.CreatedAt)
	if err != nil {
		return nil, translate(err, "pgstore.FirstMessageBySender")
	}
	return &m, nil
}

func (s *Store) MarkMessagesRead(ctx context.Context, requestID, readerID string) (int, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE service_request_id = $1 AND receiver_id = $2 AND is_read = FALSE
	`, requestID, readerID)
	if err != nil {
		return 0, translate(err, "pgstore.MarkMessagesRead")
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) CountUnreadMessages(ctx context.Context, requestID, readerID string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE service_request_id = $1 AND receiver_id = $2 AND is_read = FALSE
	`, requestID, readerID).Scan(&n)
	if err != nil {
		return 0, translate(err, "pgstore.CountUnreadMessages")
	}
	return n, nil
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := s.q.Query(ctx, `
		SELECT r.id::text, r.title, r.status, r.created_at,
			CASE WHEN r.contractor_id = $1 THEN r.vendor_id::text ELSE r.contractor_id::text END,
			COALESCE(u.name, ''),
			lm.content, lm.created_at,
			(SELECT COUNT(*) FROM messages um
				WHERE um.service_request_id = r.id AND um.receiver_id = $1 AND um.is_read = FALSE)
		FROM service_requests r
		LEFT JOIN users u
			ON u.id = CASE WHEN r.contractor_id = $1 THEN r.vendor_id ELSE r.contractor_id END
		LEFT JOIN LATERAL (
			SELECT m.content, m.created_at FROM messages m
			WHERE m.service_request_id = r.id
			ORDER BY m.created_at DESC
			LIMIT 1
		) lm ON TRUE
		WHERE r.contractor_id = $1 OR r.vendor_id = $1
	`, userID)
	if err != nil {
		return nil, translate(err, "pgstore.ListConversations")
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		var status string
		var other *string
		if err := rows.Scan(
			&c.ServiceRequestID, &c.Title, &status, &c.RequestCreatedAt,
			&other, &c.OtherPartyName, &c.LastMessage, &c.LastMessageAt, &c.UnreadCount,
		); err != nil {
			return nil, translate(err, "pgstore.ListConversations.scan")
		}
		c.Status = domain.Status(status)
		if other != nil {
			c.OtherPartyID = *other
		}
		out = append(out, c)
	}
	return out, translate(rows.Err(), "pgstore.ListConversations.rows")
}
