package pgstore

import (
	"context"

	"github.com/sudo-init-do/govconnect/internal/domain"
)

// NextDeliveryVersion must run after LockRequest in the same transaction,
// otherwise concurrent re-deliveries can pick the same version.
func (s *Store) NextDeliveryVersion(ctx context.Context, requestID string) (int, error) {
	var next int
	err := s.q.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM deliveries WHERE service_request_id = $1
	`, requestID).Scan(&next)
	if err != nil {
		return 0, translate(err, "pgstore.NextDeliveryVersion")
	}
	return next, nil
}

func (s *Store) CreateDelivery(ctx context.Context, d *domain.Delivery) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO deliveries (id, service_request_id, version, message, delivered_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.ID, d.ServiceRequestID, d.Version, d.Message, d.DeliveredBy, d.CreatedAt)
	return translate(err, "pgstore.CreateDelivery")
}

func (s *Store) CreateAttachment(ctx context.Context, a *domain.Attachment) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO delivery_attachments (id, delivery_id, file_path, file_name, file_size)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ID, a.DeliveryID, a.FilePath, a.FileName, a.FileSize)
	return translate(err, "pgstore.CreateAttachment")
}

func (s *Store) ListDeliveries(ctx context.Context, requestID string) ([]domain.Delivery, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id::text, service_request_id::text, version, message, delivered_by::text, created_at
		FROM deliveries
		WHERE service_request_id = $1
		ORDER BY version ASC
	`, requestID)
	if err != nil {
		return nil, translate(err, "pgstore.ListDeliveries")
	}

	var out []domain.Delivery
	index := map[string]int{}
	for rows.Next() {
		var d domain.Delivery
		if err := rows.Scan(&d.ID, &d.ServiceRequestID, &d.Version, &d.Message, &d.DeliveredBy, &d.CreatedAt); err != nil {
			rows.Close()
			return nil, translate(err, "pgstore.ListDeliveries.scan")
		}
		d.Attachments = []domain.Attachment{}
		index[d.ID] = len(out)
		out = append(out, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, translate(err, "pgstore.ListDeliveries.rows")
	}
	if len(out) == 0 {
		return out, nil
	}

	attRows, err := s.q.Query(ctx, `
		SELECT a.id::text, a.delivery_id::text, a.file_path, a.file_name, a.file_size
		FROM delivery_attachments a
		JOIN deliveries d ON d.id = a.delivery_id
		WHERE d.service_request_id = $1
		ORDER BY a.file_name
	`, requestID)
	if err != nil {
		return nil, translate(err, "pgstore.ListDeliveries.attachments")
	}
	defer attRows.Close()
	for attRows.Next() {
		var a domain.Attachment
		if err := attRows.Scan(&a.ID, &a.DeliveryID, &a.FilePath, &a.FileName, &a.FileSize); err != nil {
			return nil, translate(err, "pgstore.ListDeliveries.attachments.scan")
		}
		if i, ok := index[a.DeliveryID]; ok {
			out[i].Attachments = append(out[i].Attachments, a)
		}
	}
	return out, translate(attRows.Err(), "pgstore.ListDeliveries.attachments.rows")
}
