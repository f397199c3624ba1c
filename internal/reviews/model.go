package reviews

import "github.com/sudo-init-do/govconnect/internal/domain"

// RatingCounts is the star breakdown shown next to a vendor's rating
type RatingCounts struct {
	FiveStar  int `json:"five_star"`
	FourStar  int `json:"four_star"`
	ThreeStar int `json:"three_star"`
	TwoStar   int `json:"two_star"`
	OneStar   int `json:"one_star"`
}

func countsFrom(m map[int]int) RatingCounts {
	return RatingCounts{
		FiveStar:  m[5],
		FourStar:  m[4],
		ThreeStar: m[3],
		TwoStar:   m[2],
		OneStar:   m[1],
	}
}

// VendorRatingSummary represents aggregated rating data for a reviewee
type VendorRatingSummary struct {
	VendorID      string       `json:"vendor_id"`
	VendorName    string       `json:"vendor_name"`
	TotalReviews  int          `json:"total_reviews"`
	AverageRating float64      `json:"average_rating"`
	RatingCounts  RatingCounts `json:"rating_counts"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// VendorReviews is the public review page of one vendor
type VendorReviews struct {
	Summary    VendorRatingSummary         `json:"vendor_summary"`
	Reviews    []domain.ReviewWithReviewer `json:"reviews"`
	Pagination Pagination                  `json:"pagination"`
}

// CreateReviewRequest represents the request payload for creating a review.
// Rating and comment are checked by the service once the caller is known to be a party.
type CreateReviewRequest struct {
	ServiceRequestID string `json:"serviceRequestId" validate:"required"`
	Rating           int    `json:"rating"`
	Comment          string `json:"comment"`
}
