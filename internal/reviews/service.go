// Package reviews records post-completion ratings and keeps vendor rating
// aggregates in step with them.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sudo-init-do/govconnect/internal/alerts"
	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
	maxCommentRunes = 1000
)

type Service struct {
	store    store.Store
	notifier *alerts.Service
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

func NewService(st store.Store, notifier *alerts.Service, opts ...Option) *Service {
	s := &Service{store: st, notifier: notifier, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

type SubmitInput struct {
	RequestID  string
	ReviewerID string
	Rating     int
	Comment    string
}

// Submit stores the reviewer's rating of the other party and recomputes the
// reviewee's aggregate in the same transaction.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*domain.Review, error) {
	r, err := s.store.GetRequest(ctx, in.RequestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("service request not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to fetch service request", err)
	}
	if !r.IsParty(in.ReviewerID) {
		return nil, apperr.Forbidden("not a party to this request")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.InvalidArg("rating must be between 1 and 5")
	}
	comment := strings.TrimSpace(in.Comment)
	if utf8.RuneCountInString(comment) > maxCommentRunes {
		return nil, apperr.InvalidArg("comment must be at most 1000 characters")
	}
	if r.Status != domain.StatusCompleted {
		return nil, apperr.FailedPrecondition("can only review completed requests")
	}
	revieweeID := r.OtherParty(in.ReviewerID)
	if revieweeID == "" {
		return nil, apperr.FailedPrecondition("request has no counterpart to review")
	}

	rev := &domain.Review{
		ID:               uuid.NewString(),
		ServiceRequestID: r.ID,
		ReviewerID:       in.ReviewerID,
		RevieweeID:       revieweeID,
		Rating:           in.Rating,
		CreatedAt:        s.now().UTC(),
	}
	if comment != "" {
		rev.Comment = &comment
	}

	var note *domain.Notification
	err = s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.CreateReview(ctx, rev); err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, revieweeID); err != nil {
			return err
		}
		note, err = s.notifier.NotifyTx(ctx, tx, alerts.NotifyInput{
			RecipientID:      revieweeID,
			TriggeredBy:      in.ReviewerID,
			Type:             domain.NotificationNewReview,
			Title:            "New Review",
			Message:          fmt.Sprintf("You received a %d-star review for %q", in.Rating, r.Title),
			RelatedRequestID: r.ID,
		})
		return err
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.AlreadyExists("review already exists for this request")
	}
	if err != nil {
		return nil, apperr.Internal("failed to create review", err)
	}

	s.notifier.Fanout(ctx, note)
	s.logger.Info("review created", "request_id", r.ID, "reviewer_id", in.ReviewerID, "rating", in.Rating)
	return rev, nil
}

// recompute writes mean and count of every rating the reviewee received back
// to their vendor profile. Contractors have no profile and are skipped.
func (s *Service) recompute(ctx context.Context, tx store.Store, revieweeID string) error {
	if _, err := tx.GetVendorProfile(ctx, revieweeID); errors.Is(err, store.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	avg, count, err := tx.RatingStats(ctx, revieweeID)
	if err != nil {
		return err
	}
	return tx.UpdateVendorRating(ctx, revieweeID, avg, count)
}

// VendorReviews returns the rating summary and one page of reviews received by vendorID.
func (s *Service) VendorReviews(ctx context.Context, vendorID string, page, limit int) (*VendorReviews, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	u, err := s.store.GetUser(ctx, vendorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("vendor not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to fetch vendor", err)
	}

	avg, count, err := s.store.RatingStats(ctx, vendorID)
	if err != nil {
		return nil, apperr.Internal("failed to fetch rating summary", err)
	}
	breakdown, err := s.store.RatingBreakdown(ctx, vendorID)
	if err != nil {
		return nil, apperr.Internal("failed to fetch rating breakdown", err)
	}
	items, err := s.store.ListReviewsForReviewee(ctx, vendorID, limit, (page-1)*limit)
	if err != nil {
		return nil, apperr.Internal("failed to fetch reviews", err)
	}
	if items == nil {
		items = []domain.ReviewWithReviewer{}
	}

	return &VendorReviews{
		Summary: VendorRatingSummary{
			VendorID:      u.ID,
			VendorName:    u.Name,
			TotalReviews:  count,
			AverageRating: avg,
			RatingCounts:  countsFrom(breakdown),
		},
		Reviews:    items,
		Pagination: Pagination{Page: page, Limit: limit, Total: count},
	}, nil
}
