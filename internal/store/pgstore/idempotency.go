package pgstore

import (
	"context"

	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/store"
)

// A reservation is a row with response_status 0 and a null body.
func (s *Store) ReserveIdempotencyKey(ctx context.Context, actorID, key, endpoint string) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO idempotency_records (actor_id, idempotency_key, endpoint, response_status, response_body)
		VALUES ($1, $2, $3, 0, 'null'::jsonb)
		ON CONFLICT (actor_id, idempotency_key, endpoint) DO NOTHING
	`, actorID, key, endpoint)
	if err != nil {
		return false, translate(err, "pgstore.ReserveIdempotencyKey")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetIdempotencyRecord(ctx context.Context, actorID, key, endpoint string) (*domain.IdempotencyRecord, error) {
	rec := domain.IdempotencyRecord{ActorID: actorID, Key: key, Endpoint: endpoint}
	var body string
	err := s.q.QueryRow(ctx, `
		SELECT response_status, response_body::text
		FROM idempotency_records
		WHERE actor_id = $1 AND idempotency_key = $2 AND endpoint = $3
	`, actorID, key, endpoint).Scan(&rec.Status, &body)
	if err != nil {
		return nil, translate(err, "pgstore.GetIdempotencyRecord")
	}
	if !rec.Pending() {
		rec.Body = []byte(body)
	}
	return &rec, nil
}

func (s *Store) SaveIdempotencyRecord(ctx context.Context, rec *domain.IdempotencyRecord) error {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO idempotency_records (actor_id, idempotency_key, endpoint, response_status, response_body)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (actor_id, idempotency_key, endpoint) DO UPDATE
		SET response_status = EXCLUDED.response_status, response_body = EXCLUDED.response_body
		WHERE idempotency_records.response_status = 0
	`, rec.ActorID, rec.Key, rec.Endpoint, rec.Status, string(rec.Body))
	if err != nil {
		return translate(err, "pgstore.SaveIdempotencyRecord")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) ReleaseIdempotencyKey(ctx context.Context, actorID, key, endpoint string) error {
	_, err := s.q.Exec(ctx, `
		DELETE FROM idempotency_records
		WHERE actor_id = $1 AND idempotency_key = $2 AND endpoint = $3 AND response_status = 0
	`, actorID, key, endpoint)
	return translate(err, "pgstore.ReleaseIdempotencyKey")
}
