package pgstore

import (
	"context"

	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/store"
)

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if malformed(id) {
		return nil, store.ErrNotFound
	}
	var u domain.User
	var role string
	err := s.q.QueryRow(ctx, `
		SELECT id::text, name, COALESCE(email, ''), role
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &role)
	if err != nil {
		return nil, translate(err, "pgstore.GetUser")
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func (s *Store) GetService(ctx context.Context, id string) (*domain.Service, error) {
	if malformed(id) {
		return nil, store.ErrNotFound
	}
	var svc domain.Service
	var category string
	err := s.q.QueryRow(ctx, `
		SELECT id::text, vendor_id::text, title, category
		FROM services WHERE id = $1
	`, id).Scan(&svc.ID, &svc.VendorID, &svc.Title, &category)
	if err != nil {
		return nil, translate(err, "pgstore.GetService")
	}
	svc.Category = domain.Category(category)
	return &svc, nil
}

func (s *Store) GetVendorProfile(ctx context.Context, userID string) (*domain.VendorProfile, error) {
	if malformed(userID) {
		return nil, store.ErrNotFound
	}
	var p domain.VendorProfile
	err := s.q.QueryRow(ctx, `
		SELECT user_id::text, company_name, rating::float8, review_count, response_time, response_time_minutes
		FROM vendor_profiles WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.CompanyName, &p.Rating, &p.ReviewCount, &p.ResponseTime, &p.ResponseTimeMinutes)
	if err != nil {
		return nil, translate(err, "pgstore.GetVendorProfile")
	}
	return &p, nil
}

func (s *Store) UpdateVendorRating(ctx context.Context, vendorID string, rating float64, count int) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE vendor_profiles SET rating = $1, review_count = $2 WHERE user_id = $3
	`, rating, count, vendorID)
	if err != nil {
		return translate(err, "pgstore.UpdateVendorRating")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateVendorResponseTime(ctx context.Context, vendorID string, minutes int, display string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE vendor_profiles SET response_time_minutes = $1, response_time = $2 WHERE user_id = $3
	`, minutes, display, vendorID)
	if err != nil {
		return translate(err, "pgstore.UpdateVendorResponseTime")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
