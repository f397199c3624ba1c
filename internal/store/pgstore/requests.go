package pgstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/store"
)

var requestColumns = []string{
	"id::text", "contractor_id::text", "vendor_id::text", "service_id::text",
	"title", "description", "COALESCE(category, '')", "priority",
	"COALESCE(budget_min, '')", "COALESCE(budget_max, '')", "status",
	"estimated_cost", "actual_cost", "estimated_duration", "created_at", "updated_at",
}

func scanRequest(row pgx.Row) (*domain.ServiceRequest, error) {
	var r domain.ServiceRequest
	var category, status string
	err := row.Scan(
		&r.ID, &r.ContractorID, &r.VendorID, &r.ServiceID,
		&r.Title, &r.Description, &category, &r.Priority,
		&r.BudgetMin, &r.BudgetMax, &status,
		&r.EstimatedCost, &r.ActualCost, &r.EstimatedDuration, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Category = domain.Category(category)
	r.Status = domain.Status(status)
	return &r, nil
}

func (s *Store) CreateRequest(ctx context.Context, r *domain.ServiceRequest) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO service_requests
			(id, contractor_id, vendor_id, service_id, title, description, category, priority,
			 budget_min, budget_max, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13)
	`, r.ID, r.ContractorID, r.VendorID, r.ServiceID, r.Title, r.Description, string(r.Category), r.Priority,
		r.BudgetMin, r.BudgetMax, string(r.Status), r.CreatedAt, r.UpdatedAt)
	return translate(err, "pgstore.CreateRequest")
}

func (s *Store) GetRequest(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	if malformed(id) {
		return nil, store.ErrNotFound
	}
	query, args, err := s.sb.Select(requestColumns...).
		From("service_requests").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, translate(err, "pgstore.GetRequest.build")
	}
	r, err := scanRequest(s.q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translate(err, "pgstore.GetRequest")
	}
	return r, nil
}

func (s *Store) LockRequest(ctx context.Context, id string) error {
	if malformed(id) {
		return store.ErrNotFound
	}
	var locked string
	err := s.q.QueryRow(ctx, `SELECT id::text FROM service_requests WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	return translate(err, "pgstore.LockRequest")
}

func (s *Store) ListRequests(ctx context.Context, userID string, role domain.Role) ([]domain.ServiceRequest, error) {
	b := s.sb.Select(requestColumns...).
		From("service_requests").
		OrderBy("created_at DESC")
	switch role {
	case domain.RoleAdmin:
	case domain.RoleVendor:
		b = b.Where(sq.Eq{"vendor_id": userID})
	default:
		b = b.Where(sq.Eq{"contractor_id": userID})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, translate(err, "pgstore.ListRequests.build")
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "pgstore.ListRequests")
	}
	defer rows.Close()

	var out []domain.ServiceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, translate(err, "pgstore.ListRequests.scan")
		}
		out = append(out, *r)
	}
	return out, translate(rows.Err(), "pgstore.ListRequests.rows")
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id string, status domain.Status, at time.Time) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE service_requests SET status = $1, updated_at = $2 WHERE id = $3
	`, string(status), at, id)
	if err != nil {
		return translate(err, "pgstore.UpdateRequestStatus")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AppendRequestLog(ctx context.Context, l *domain.RequestLog) error {
	var metadata *string
	if len(l.Metadata) > 0 {
		m := string(l.Metadata)
		metadata = &m
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO request_logs
			(id, service_request_id, action, performed_by, previous_status, new_status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
	`, l.ID, l.ServiceRequestID, l.Action, l.PerformedBy,
		statusPtr(l.PreviousStatus), statusPtr(l.NewStatus), metadata, l.CreatedAt)
	return translate(err, "pgstore.AppendRequestLog")
}

func (s *Store) ListRequestLogs(ctx context.Context, f domain.LogFilter) ([]domain.RequestLog, int, error) {
	if f.RequestID != "" && malformed(f.RequestID) {
		return nil, 0, nil
	}
	count := s.sb.Select("COUNT(*)").From("request_logs")
	page := s.sb.Select(
		"id::text", "service_request_id::text", "action", "performed_by::text",
		"previous_status", "new_status", "metadata::text", "created_at",
	).From("request_logs").
		OrderBy("created_at DESC").
		Limit(uint64(f.Limit)).
		Offset(uint64((f.Page - 1) * f.Limit))
	if f.RequestID != "" {
		count = count.Where(sq.Eq{"service_request_id": f.RequestID})
		page = page.Where(sq.Eq{"service_request_id": f.RequestID})
	}

	countSQL, countArgs, err := count.ToSql()
	if err != nil {
		return nil, 0, translate(err, "pgstore.ListRequestLogs.build")
	}
	var total int
	if err := s.q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, translate(err, "pgstore.ListRequestLogs.count")
	}

	pageSQL, pageArgs, err := page.ToSql()
	if err != nil {
		return nil, 0, translate(err, "pgstore.ListRequestLogs.build")
	}
	rows, err := s.q.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, translate(err, "pgstore.ListRequestLogs")
	}
	defer rows.Close()

	var out []domain.RequestLog
	for rows.Next() {
		var l domain.RequestLog
		var prev, next, metadata *string
		if err := rows.Scan(&l.ID, &l.ServiceRequestID, &l.Action, &l.PerformedBy, &prev, &next, &metadata, &l.CreatedAt); err != nil {
			return nil, 0, translate(err, "pgstore.ListRequestLogs.scan")
		}
		l.PreviousStatus = toStatus(prev)
		l.NewStatus = toStatus(next)
		if metadata != nil {
			l.Metadata = []byte(*metadata)
		}
		out = append(out, l)
	}
	return out, total, translate(rows.Err(), "pgstore.ListRequestLogs.rows")
}

func statusPtr(s *domain.Status) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func toStatus(s *string) *domain.Status {
	if s == nil {
		return nil
	}
	v := domain.Status(*s)
	return &v
}
