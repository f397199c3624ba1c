package reviews_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/govconnect/internal/alerts"
	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/idempotency"
	"github.com/sudo-init-do/govconnect/internal/middleware"
	"github.com/sudo-init-do/govconnect/internal/requests"
	"github.com/sudo-init-do/govconnect/internal/reviews"
	"github.com/sudo-init-do/govconnect/internal/store/memstore"
)

type nopHub struct{}

func (nopHub) Broadcast(string, string, any) {}

var (
	contractor = domain.User{ID: "contractor-1", Name: "Ada Contractor", Role: domain.RoleContractor}
	vendor     = domain.User{ID: "vendor-1", Name: "Vic Vendor", Role: domain.RoleVendor}
	outsider   = domain.User{ID: "outsider-1", Name: "Eve", Role: domain.RoleContractor}
)

type env struct {
	store    *memstore.Store
	requests *requests.Service
	reviews  *reviews.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memstore.New()
	st.AddUser(contractor, "")
	st.AddUser(vendor, "Vic LLC")
	st.AddUser(outsider, "")
	clock := func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }
	notifier := alerts.NewService(st, alerts.NopDispatcher{}, "", alerts.WithClock(clock))
	return &env{
		store:    st,
		requests: requests.NewService(st, notifier, nopHub{}, requests.WithClock(clock)),
		reviews:  reviews.NewService(st, notifier, reviews.WithClock(clock)),
	}
}

// completed walks a fresh request to completed the way the two parties would.
func (e *env) completed(t *testing.T) *domain.ServiceRequest {
	t.Helper()
	ctx := context.Background()
	r, err := e.requests.Create(ctx, requests.CreateInput{ContractorID: contractor.ID, VendorID: vendor.ID, Description: "SAM registration"})
	require.NoError(t, err)
	for _, s := range []string{"matched", "in_progress"} {
		_, err = e.requests.UpdateStatus(ctx, r.ID, vendor.ID, s)
		require.NoError(t, err)
	}
	_, err = e.requests.Deliver(ctx, r.ID, vendor.ID, "registered", []requests.AttachmentInput{
		{FilePath: "/uploads/sam.pdf", FileName: "sam.pdf", FileSize: 512},
	})
	require.NoError(t, err)
	r, err = e.requests.UpdateStatus(ctx, r.ID, contractor.ID, "completed")
	require.NoError(t, err)
	return r
}

func TestEndToEndDeliveryAndReview(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.completed(t)
	assert.Equal(t, domain.StatusCompleted, r.Status)

	deliveries, err := e.store.ListDeliveries(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Len(t, deliveries[0].Attachments, 1)

	rev, err := e.reviews.Submit(ctx, reviews.SubmitInput{RequestID: r.ID, ReviewerID: contractor.ID, Rating: 5, Comment: "Fast and thorough"})
	require.NoError(t, err)
	assert.Equal(t, vendor.ID, rev.RevieweeID)

	profile, err := e.store.GetVendorProfile(ctx, vendor.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, profile.Rating, 0.001)
	assert.Equal(t, 1, profile.ReviewCount)

	notes, err := e.store.ListNotifications(ctx, vendor.ID)
	require.NoError(t, err)
	require.NotEmpty(t, notes)
	assert.Equal(t, domain.NotificationNewReview, notes[0].Type)
}

func TestRatingIsMeanOfAllReviews(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ratings := []int{5, 3, 4, 1}
	for _, rating := range ratings {
		r := e.completed(t)
		_, err := e.reviews.Submit(ctx, reviews.SubmitInput{RequestID: r.ID, ReviewerID: contractor.ID, Rating: rating})
		require.NoError(t, err)
	}
	profile, err := e.store.GetVendorProfile(ctx, vendor.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.25, profile.Rating, 0.001)
	assert.Equal(t, len(ratings), profile.ReviewCount)
}

func TestSubmitRejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.completed(t)

	open, err := e.requests.Create(ctx, requests.CreateInput{ContractorID: contractor.ID, VendorID: vendor.ID, Description: "pending"})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   reviews.SubmitInput
		want error
	}{
		{"rating too low", reviews.SubmitInput{RequestID: r.ID, ReviewerID: contractor.ID, Rating: 0}, apperr.ErrInvalidArgument},
		{"rating too high", reviews.SubmitInput{RequestID: r.ID, ReviewerID: contractor.ID, Rating: 6}, apperr.ErrInvalidArgument},
		{"unknown request", reviews.SubmitInput{RequestID: "missing", ReviewerID: contractor.ID, Rating: 4}, apperr.ErrNotFound},
		{"outsider", reviews.SubmitInput{RequestID: r.ID, ReviewerID: outsider.ID, Rating: 4}, apperr.ErrForbidden},
		{"outsider with bad rating", reviews.SubmitInput{RequestID: r.ID, ReviewerID: outsider.ID, Rating: 9}, apperr.ErrForbidden},
		{"comment too long", reviews.SubmitInput{RequestID: r.ID, ReviewerID: contractor.ID, Rating: 4, Comment: strings.Repeat("a", 1001)}, apperr.ErrInvalidArgument},
		{"not completed", reviews.SubmitInput{RequestID: open.ID, ReviewerID: contractor.ID, Rating: 4}, apperr.ErrFailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.reviews.Submit(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	profile, err := e.store.GetVendorProfile(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Zero(t, profile.ReviewCount)
}

func TestDuplicateReviewIsRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.completed(t)

	_, err := e.reviews.Submit(ctx, reviews.SubmitInput{RequestID: r.ID, ReviewerID: contractor.ID, Rating: 4})
	require.NoError(t, err)
	_, err = e.reviews.Submit(ctx, reviews.SubmitInput{RequestID: r.ID, ReviewerID: contractor.ID, Rating: 1})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	profile, err := e.store.GetVendorProfile(ctx, vendor.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, profile.Rating, 0.001)
	assert.Equal(t, 1, profile.ReviewCount)

	// the vendor may still review the contractor; contractors carry no profile
	rev, err := e.reviews.Submit(ctx, reviews.SubmitInput{RequestID: r.ID, ReviewerID: vendor.ID, Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, contractor.ID, rev.RevieweeID)
}

func TestRatingRollsBackWithReview(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := e.completed(t)

	e.store.InjectFault("UpdateVendorRating", errors.New("lock timeout"))
	_, err := e.reviews.Submit(ctx, reviews.SubmitInput{RequestID: r.ID, ReviewerID: contractor.ID, Rating: 2})
	assert.ErrorIs(t, err, apperr.ErrInternal)

	reviewed, err := e.store.HasReviewed(ctx, r.ID, contractor.ID)
	require.NoError(t, err)
	assert.False(t, reviewed)
}

func TestHandlers(t *testing.T) {
	e := newEnv(t)
	r := e.completed(t)
	h := reviews.NewHandler(e.reviews, e.store)
	ec := echo.New()
	ec.Validator = middleware.NewValidator()

	post := func(user domain.User, key, body string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodPost, "/reviews", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if key != "" {
			req.Header.Set(idempotency.Header, key)
		}
		rec := httptest.NewRecorder()
		c := ec.NewContext(req, rec)
		c.Set("user_id", user.ID)
		c.Set("role", string(user.Role))
		return rec, h.CreateReview(c)
	}

	_, err := post(contractor, "", fmt.Sprintf(`{"serviceRequestId":%q,"rating":9}`, r.ID))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = post(outsider, "", fmt.Sprintf(`{"serviceRequestId":%q,"rating":9}`, r.ID))
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	body := fmt.Sprintf(`{"serviceRequestId":%q,"rating":4,"comment":"good"}`, r.ID)
	first, err := post(contractor, "review-1", body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, first.Code)
	// a retried submit replays instead of hitting the duplicate guard
	second, err := post(contractor, "review-1", body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	rec := httptest.NewRecorder()
	c := ec.NewContext(httptest.NewRequest(http.MethodGet, "/vendors/"+vendor.ID+"/reviews?limit=5", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(vendor.ID)
	require.NoError(t, h.GetVendorReviews(c))

	var page reviews.VendorReviews
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, vendor.Name, page.Summary.VendorName)
	assert.Equal(t, 1, page.Summary.TotalReviews)
	assert.Equal(t, 1, page.Summary.RatingCounts.FourStar)
	assert.Equal(t, 5, page.Pagination.Limit)
	require.Len(t, page.Reviews, 1)
	assert.Equal(t, contractor.Name, page.Reviews[0].ReviewerName)

	rec = httptest.NewRecorder()
	c = ec.NewContext(httptest.NewRequest(http.MethodGet, "/vendors/nobody/reviews", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("nobody")
	assert.ErrorIs(t, h.GetVendorReviews(c), apperr.ErrNotFound)
}
