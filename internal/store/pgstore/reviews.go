package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/govconnect/internal/domain"
)

func (s *Store) CreateReview(ctx context.Context, r *domain.Review) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO reviews (id, service_request_id, reviewer_id, reviewee_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.ServiceRequestID, r.ReviewerID, r.RevieweeID, r.Rating, r.Comment, r.CreatedAt)
	return translate(err, "pgstore.CreateReview")
}

func (s *Store) HasReviewed(ctx context.Context, requestID, reviewerID string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM reviews WHERE service_request_id = $1 AND reviewer_id = $2)
	`, requestID, reviewerID).Scan(&exists)
	if err != nil {
		return false, translate(err, "pgstore.HasReviewed")
	}
	return exists, nil
}

func (s *Store) RatingStats(ctx context.Context, revieweeID string) (float64, int, error) {
	var avg float64
	var count int
	err := s.q.QueryRow(ctx, `
		SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*) FROM reviews WHERE reviewee_id = $1
	`, revieweeID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, translate(err, "pgstore.RatingStats")
	}
	return avg, count, nil
}

func (s *Store) RatingBreakdown(ctx context.Context, revieweeID string) (map[int]int, error) {
	rows, err := s.q.Query(ctx, `
		SELECT rating, COUNT(*) FROM reviews WHERE reviewee_id = $1 GROUP BY rating
	`, revieweeID)
	if err != nil {
		return nil, translate(err, "pgstore.RatingBreakdown")
	}
	defer rows.Close()

	out := map[int]int{}
	for rows.Next() {
		var rating, n int
		if err := rows.Scan(&rating, &n); err != nil {
			return nil, translate(err, "pgstore.RatingBreakdown.scan")
		}
		out[rating] = n
	}
	return out, translate(rows.Err(), "pgstore.RatingBreakdown.rows")
}

const reviewSelect = `
	SELECT r.id::text, r.service_request_id::text, r.reviewer_id::text, r.reviewee_id::text,
		r.rating, r.comment, r.created_at, COALESCE(u.name, '')
	FROM reviews r
	LEFT JOIN users u ON u.id = r.reviewer_id
`

func scanReviews(rows pgx.Rows, op string) ([]domain.ReviewWithReviewer, error) {
	defer rows.Close()
	var out []domain.ReviewWithReviewer
	for rows.Next() {
		var r domain.ReviewWithReviewer
		if err := rows.Scan(&r.ID, &r.ServiceRequestID, &r.ReviewerID, &r.RevieweeID,
			&r.Rating, &r.Comment, &r.CreatedAt, &r.ReviewerName); err != nil {
			return nil, translate(err, op+".scan")
		}
		out = append(out, r)
	}
	return out, translate(rows.Err(), op+".rows")
}

func (s *Store) ListReviewsForRequest(ctx context.Context, requestID string) ([]domain.ReviewWithReviewer, error) {
	rows, err := s.q.Query(ctx, reviewSelect+`
		WHERE r.service_request_id = $1
		ORDER BY r.created_at ASC
	`, requestID)
	if err != nil {
		return nil, translate(err, "pgstore.ListReviewsForRequest")
	}
	return scanReviews(rows, "pgstore.ListReviewsForRequest")
}

func (s *Store) ListReviewsForReviewee(ctx context.Context, revieweeID string, limit, offset int) ([]domain.ReviewWithReviewer, error) {
	rows, err := s.q.Query(ctx, reviewSelect+`
		WHERE r.reviewee_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3
	`, revieweeID, limit, offset)
	if err != nil {
		return nil, translate(err, "pgstore.ListReviewsForReviewee")
	}
	return scanReviews(rows, "pgstore.ListReviewsForReviewee")
}
