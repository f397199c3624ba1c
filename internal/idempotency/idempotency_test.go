package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/store"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]domain.IdempotencyRecord
	getErr  error
	saveN   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]domain.IdempotencyRecord{}}
}

func (f *fakeStore) ReserveIdempotencyKey(_ context.Context, actorID, key, endpoint string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := actorID + key + endpoint
	if _, ok := f.records[k]; ok {
		return false, nil
	}
	f.records[k] = domain.IdempotencyRecord{ActorID: actorID, Key: key, Endpoint: endpoint}
	return true, nil
}

func (f *fakeStore) GetIdempotencyRecord(_ context.Context, actorID, key, endpoint string) (*domain.IdempotencyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[actorID+key+endpoint]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeStore) SaveIdempotencyRecord(_ context.Context, rec *domain.IdempotencyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := rec.ActorID + rec.Key + rec.Endpoint
	if cur, ok := f.records[k]; ok && !cur.Pending() {
		return store.ErrConflict
	}
	f.records[k] = *rec
	f.saveN++
	return nil
}

func (f *fakeStore) ReleaseIdempotencyKey(_ context.Context, actorID, key, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := actorID + key + endpoint
	if cur, ok := f.records[k]; ok && cur.Pending() {
		delete(f.records, k)
	}
	return nil
}

func keyedContext(e *echo.Echo, key string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/messages", nil)
	if key != "" {
		req.Header.Set(Header, key)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "u1")
	return c, rec
}

func TestReplayNoKeyNoop(t *testing.T) {
	st := newFakeStore()
	_, _, replayed, err := Replay(context.Background(), st, "u1", "", "POST /messages")
	require.NoError(t, err)
	assert.False(t, replayed)
}

func TestSaveThenReplayReturnsSamePayload(t *testing.T) {
	st := newFakeStore()
	body := json.RawMessage(`{"id":"m1"}`)

	require.NoError(t, Save(context.Background(), st, "u1", "k1", "POST /messages", 201, body))
	assert.Equal(t, 1, st.saveN)

	status, got, replayed, err := Replay(context.Background(), st, "u1", "k1", "POST /messages")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, 201, status)
	assert.JSONEq(t, `{"id":"m1"}`, string(got))

	// a second save under the same key is swallowed
	require.NoError(t, Save(context.Background(), st, "u1", "k1", "POST /messages", 201, body))
	assert.Equal(t, 1, st.saveN)
}

func TestReplayStoreError(t *testing.T) {
	st := newFakeStore()
	st.getErr = errors.New("db down")
	_, _, replayed, err := Replay(context.Background(), st, "u1", "k1", "POST /messages")
	require.Error(t, err)
	assert.False(t, replayed)
}

func TestHandleRunsOnceWithKey(t *testing.T) {
	st := newFakeStore()
	e := echo.New()
	calls := 0
	fn := func() (int, any, error) {
		calls++
		return http.StatusCreated, map[string]any{"call": calls}, nil
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/messages", nil)
		req.Header.Set(Header, "retry-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set("user_id", "u1")

		require.NoError(t, Handle(c, st, "POST /messages", fn))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"call":1}`, rec.Body.String())
	}
	assert.Equal(t, 1, calls)
}

func TestHandleWithoutKeyAlwaysRuns(t *testing.T) {
	st := newFakeStore()
	e := echo.New()
	calls := 0
	fn := func() (int, any, error) {
		calls++
		return http.StatusOK, map[string]any{"ok": true}, nil
	}
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/messages", nil), rec)
		c.Set("user_id", "u1")
		require.NoError(t, Handle(c, st, "POST /messages", fn))
	}
	assert.Equal(t, 2, calls)
	assert.Zero(t, st.saveN)
}

func TestHandleReleasesKeyOnError(t *testing.T) {
	st := newFakeStore()
	e := echo.New()

	boom := errors.New("boom")
	c, _ := keyedContext(e, "k")
	err := Handle(c, st, "POST /messages", func() (int, any, error) { return 0, nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, st.saveN)

	// the retry after a failure runs again
	c, rec := keyedContext(e, "k")
	require.NoError(t, Handle(c, st, "POST /messages", func() (int, any, error) {
		return http.StatusCreated, map[string]any{"ok": true}, nil
	}))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, st.saveN)
}

type handleResult struct {
	rec *httptest.ResponseRecorder
	err error
}

func TestHandleConcurrentRetryWaitsForFirstCall(t *testing.T) {
	st := newFakeStore()
	e := echo.New()
	started := make(chan struct{})
	finish := make(chan struct{})
	var calls atomic.Int32
	fn := func() (int, any, error) {
		n := calls.Add(1)
		if n == 1 {
			close(started)
			<-finish
		}
		return http.StatusCreated, map[string]any{"call": n}, nil
	}
	run := func(out chan<- handleResult) {
		c, rec := keyedContext(e, "retry-1")
		out <- handleResult{rec: rec, err: Handle(c, st, "POST /messages", fn)}
	}

	first := make(chan handleResult, 1)
	go run(first)
	<-started
	second := make(chan handleResult, 1)
	go run(second)
	time.Sleep(3 * pollInterval)
	close(finish)

	r1, r2 := <-first, <-second
	require.NoError(t, r1.err)
	require.NoError(t, r2.err)
	assert.Equal(t, int32(1), calls.Load())
	assert.JSONEq(t, `{"call":1}`, r1.rec.Body.String())
	assert.JSONEq(t, `{"call":1}`, r2.rec.Body.String())
	assert.Equal(t, "true", r2.rec.Header().Get("Idempotent-Replayed"))
}

func TestHandleGivesUpOnStuckReservation(t *testing.T) {
	prevPoll, prevWait := pollInterval, waitTimeout
	pollInterval, waitTimeout = time.Millisecond, 20*time.Millisecond
	t.Cleanup(func() { pollInterval, waitTimeout = prevPoll, prevWait })

	st := newFakeStore()
	ok, err := st.ReserveIdempotencyKey(context.Background(), "u1", "stuck", "POST /messages")
	require.NoError(t, err)
	require.True(t, ok)

	c, _ := keyedContext(echo.New(), "stuck")
	called := false
	err = Handle(c, st, "POST /messages", func() (int, any, error) {
		called = true
		return http.StatusCreated, nil, nil
	})
	assert.ErrorIs(t, err, apperr.ErrFailedPrecondition)
	assert.False(t, called)
}

func TestReplayIgnoresPendingReservation(t *testing.T) {
	st := newFakeStore()
	_, err := st.ReserveIdempotencyKey(context.Background(), "u1", "k1", "POST /messages")
	require.NoError(t, err)
	_, _, replayed, err := Replay(context.Background(), st, "u1", "k1", "POST /messages")
	require.NoError(t, err)
	assert.False(t, replayed)
}
