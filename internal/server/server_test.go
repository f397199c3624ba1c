package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/govconnect/internal/alerts"
	"github.com/sudo-init-do/govconnect/internal/config"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/store/memstore"
	"github.com/sudo-init-do/govconnect/internal/utils"
)

const secret = "test-secret"

var (
	contractor = domain.User{ID: "11111111-1111-1111-1111-111111111111", Name: "Ada Contractor", Role: domain.RoleContractor}
	vendor     = domain.User{ID: "22222222-2222-2222-2222-222222222222", Name: "Vic Vendor", Role: domain.RoleVendor}
	outsider   = domain.User{ID: "33333333-3333-3333-3333-333333333333", Name: "Eve", Role: domain.RoleContractor}
	operator   = domain.User{ID: "44444444-4444-4444-4444-444444444444", Name: "Ops", Role: domain.RoleAdmin}
)

type testServer struct {
	t     *testing.T
	srv   *Server
	store *memstore.Store
	now   time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := memstore.New()
	for _, u := range []domain.User{contractor, outsider, operator} {
		st.AddUser(u, "")
	}
	st.AddUser(vendor, "Vic LLC")

	ts := &testServer{t: t, store: st, now: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)}
	cfg := &config.Config{
		JWT:     config.JWT{Secret: secret},
		Uploads: config.Uploads{Dir: t.TempDir(), MaxBytes: 1 << 20},
	}
	srv, err := New(Deps{
		Config:     cfg,
		Store:      st,
		Dispatcher: alerts.NopDispatcher{},
		Now:        func() time.Time { return ts.now },
	})
	require.NoError(t, err)
	ts.srv = srv
	return ts
}

func (ts *testServer) do(user *domain.User, method, path, body string) *httptest.ResponseRecorder {
	ts.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != nil {
		tok, err := utils.IssueToken([]byte(secret), user.ID, string(user.Role), time.Hour)
		require.NoError(ts.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	ts.srv.Echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) createRequest() domain.ServiceRequest {
	ts.t.Helper()
	body := fmt.Sprintf(`{"description":"CMMC readiness","priority":"high","budgetMin":"5000","budgetMax":"9000","vendorId":%q}`, vendor.ID)
	rec := ts.do(&contractor, http.MethodPost, "/service-requests", body)
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.ServiceRequest](ts.t, rec)
}

func (ts *testServer) setStatus(user *domain.User, id, status string) *httptest.ResponseRecorder {
	return ts.do(user, http.MethodPatch, "/service-requests/"+id+"/status", fmt.Sprintf(`{"status":%q}`, status))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(nil, http.MethodGet, "/health", "").Code)
	rec := ts.do(nil, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestAuthErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(nil, http.MethodGet, "/service-requests", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	errBody := decode[map[string]string](t, rec)
	assert.Equal(t, "UNAUTHENTICATED", errBody["code"])

	rec = ts.do(&vendor, http.MethodPost, "/service-requests", `{"description":"x"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(&contractor, http.MethodGet, "/admin/request-logs", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PERMISSION_DENIED", decode[map[string]string](t, rec)["code"])

	rec = ts.do(&contractor, http.MethodPost, "/service-requests", `{"priority":"low"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "description")
}

func TestDeliveryToReviewFlow(t *testing.T) {
	ts := newTestServer(t)
	r := ts.createRequest()
	assert.Equal(t, domain.StatusPending, r.Status)

	require.Equal(t, http.StatusOK, ts.setStatus(&vendor, r.ID, "matched").Code)
	require.Equal(t, http.StatusOK, ts.setStatus(&vendor, r.ID, "in_progress").Code)

	rec := ts.do(&vendor, http.MethodPost, "/service-requests/"+r.ID+"/deliver",
		`{"message":"Assessment attached","attachments":[{"filePath":"/uploads/a-report.pdf","fileName":"report.pdf","fileSize":4096}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	d := decode[domain.Delivery](t, rec)
	assert.Equal(t, 1, d.Version)
	assert.Len(t, d.Attachments, 1)

	count := decode[map[string]int](t, ts.do(&contractor, http.MethodGet, "/notifications/unread-count", ""))
	assert.Equal(t, 3, count["count"])

	rec = ts.setStatus(&contractor, r.ID, "completed")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusCompleted, decode[domain.ServiceRequest](t, rec).Status)

	rec = ts.do(&contractor, http.MethodPost, "/reviews", fmt.Sprintf(`{"serviceRequestId":%q,"rating":5,"comment":"Excellent"}`, r.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(&contractor, http.MethodPost, "/reviews", fmt.Sprintf(`{"serviceRequestId":%q,"rating":3}`, r.ID))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_EXISTS", decode[map[string]string](t, rec)["code"])

	profile, err := ts.store.GetVendorProfile(context.Background(), vendor.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, profile.Rating, 0.001)
	assert.Equal(t, 1, profile.ReviewCount)

	rec = ts.do(&contractor, http.MethodGet, "/service-requests/"+r.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[map[string]any](t, rec)
	assert.Equal(t, true, detail["alreadyReviewed"])
	assert.Len(t, detail["deliveries"], 1)

	rec = ts.do(nil, http.MethodGet, "/vendors/"+vendor.ID+"/reviews", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"five_star":1`)

	rec = ts.do(&operator, http.MethodGet, "/admin/request-logs?requestId="+r.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[struct {
		Logs  []domain.RequestLog `json:"logs"`
		Total int                 `json:"total"`
	}](t, rec)
	assert.Equal(t, 5, logs.Total)
	for _, l := range logs.Logs {
		if l.PreviousStatus != nil && l.NewStatus != nil {
			assert.True(t, domain.IsLifecycleEdge(*l.PreviousStatus, *l.NewStatus))
		}
	}
}

func TestFirstResponseTime(t *testing.T) {
	ts := newTestServer(t)
	r := ts.createRequest()

	rec := ts.do(&contractor, http.MethodPost, "/messages", fmt.Sprintf(`{"serviceRequestId":%q,"content":"Hello"}`, r.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	ts.now = ts.now.Add(30 * time.Minute)
	rec = ts.do(&vendor, http.MethodPost, "/messages", fmt.Sprintf(`{"serviceRequestId":%q,"content":"Hi, on it"}`, r.ID))
	require.Equal(t, http.StatusCreated, rec.Code)

	profile, err := ts.store.GetVendorProfile(context.Background(), vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, "30 min", profile.ResponseTime)

	convs := decode[struct {
		Conversations []domain.Conversation `json:"conversations"`
		TotalUnread   int                   `json:"total_unread"`
	}](t, ts.do(&contractor, http.MethodGet, "/conversations", ""))
	require.Len(t, convs.Conversations, 1)
	assert.Equal(t, 1, convs.TotalUnread)
	assert.Equal(t, vendor.Name, convs.Conversations[0].OtherPartyName)

	rec = ts.do(&contractor, http.MethodPost, "/conversations/"+r.ID+"/mark-read", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":1}`, rec.Body.String())
	rec = ts.do(&contractor, http.MethodPost, "/conversations/"+r.ID+"/mark-read", "")
	assert.JSONEq(t, `{"updated":0}`, rec.Body.String())

	rec = ts.do(&outsider, http.MethodGet, "/service-requests/"+r.ID+"/messages", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNonPartyCannotChangeStatus(t *testing.T) {
	ts := newTestServer(t)
	r := ts.createRequest()

	rec := ts.setStatus(&outsider, r.ID, "completed")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	stored, err := ts.store.GetRequest(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)

	rec = ts.setStatus(&contractor, r.ID, "shipped")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.setStatus(&contractor, r.ID, "completed")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "FAILED_PRECONDITION", decode[map[string]string](t, rec)["code"])
	rec = ts.setStatus(&contractor, "missing", "matched")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNonPartyWithInvalidBodyIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	r := ts.createRequest()
	require.Equal(t, http.StatusOK, ts.setStatus(&vendor, r.ID, "matched").Code)

	cases := []struct {
		name, method, path, body string
	}{
		{"status", http.MethodPatch, "/service-requests/" + r.ID + "/status", `{"status":""}`},
		{"message", http.MethodPost, "/messages", fmt.Sprintf(`{"serviceRequestId":%q,"content":""}`, r.ID)},
		{"review", http.MethodPost, "/reviews", fmt.Sprintf(`{"serviceRequestId":%q,"rating":9}`, r.ID)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(&outsider, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
			assert.Equal(t, "PERMISSION_DENIED", decode[map[string]string](t, rec)["code"])
		})
	}
}
