// Package idempotency replays the stored first response of a request that
// carries an Idempotency-Key header.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/govconnect/internal/apperr"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/middleware"
	"github.com/sudo-init-do/govconnect/internal/store"
)

const Header = "Idempotency-Key"

var (
	pollInterval = 50 * time.Millisecond
	waitTimeout  = 5 * time.Second
)

// ErrInFlight is returned when another call holding the same key did not
// finish within the wait window.
var ErrInFlight = apperr.FailedPrecondition("a request with this Idempotency-Key is still in progress")

// Replay returns the stored response for the key, if one was completed.
func Replay(ctx context.Context, st store.Idempotency, actorID, key, endpoint string) (int, json.RawMessage, bool, error) {
	if key == "" {
		return 0, nil, false, nil
	}
	rec, err := st.GetIdempotencyRecord(ctx, actorID, key, endpoint)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, err
	}
	if rec.Pending() {
		return 0, nil, false, nil
	}
	return rec.Status, rec.Body, true, nil
}

func Save(ctx context.Context, st store.Idempotency, actorID, key, endpoint string, status int, body json.RawMessage) error {
	if key == "" {
		return nil
	}
	err := st.SaveIdempotencyRecord(ctx, &domain.IdempotencyRecord{
		ActorID:  actorID,
		Key:      key,
		Endpoint: endpoint,
		Status:   status,
		Body:     body,
	})
	if errors.Is(err, store.ErrConflict) {
		return nil
	}
	return err
}

// claim reserves the key for this call. When another call holds it, claim
// waits for that call's response and returns it with replayed set. A holder
// that fails releases the key, and the waiter takes it over.
func claim(ctx context.Context, st store.Idempotency, actorID, key, endpoint string) (int, json.RawMessage, bool, error) {
	deadline := time.Now().Add(waitTimeout)
	for {
		ok, err := st.ReserveIdempotencyKey(ctx, actorID, key, endpoint)
		if err != nil {
			return 0, nil, false, err
		}
		if ok {
			return 0, nil, false, nil
		}
		status, body, replayed, err := Replay(ctx, st, actorID, key, endpoint)
		if err != nil || replayed {
			return status, body, replayed, err
		}
		if time.Now().After(deadline) {
			return 0, nil, false, ErrInFlight
		}
		select {
		case <-ctx.Done():
			return 0, nil, false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Handle runs fn at most once per (caller, key, endpoint). Without a key fn always runs.
// Concurrent calls with the same key wait for the first one and replay its response.
func Handle(c echo.Context, st store.Idempotency, endpoint string, fn func() (int, any, error)) error {
	ctx := c.Request().Context()
	actorID := middleware.UserID(c)
	key := c.Request().Header.Get(Header)

	if key != "" {
		status, body, replayed, err := claim(ctx, st, actorID, key, endpoint)
		if err != nil {
			return err
		}
		if replayed {
			c.Response().Header().Set("Idempotent-Replayed", "true")
			return c.JSONBlob(status, body)
		}
	}

	status, resp, err := fn()
	if err != nil {
		release(ctx, st, actorID, key, endpoint)
		return err
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		release(ctx, st, actorID, key, endpoint)
		return err
	}
	if status < http.StatusMultipleChoices {
		if err := Save(ctx, st, actorID, key, endpoint, status, raw); err != nil {
			slog.Warn("saving idempotency record", "endpoint", endpoint, "err", err)
		}
	} else {
		release(ctx, st, actorID, key, endpoint)
	}
	return c.JSONBlob(status, raw)
}

func release(ctx context.Context, st store.Idempotency, actorID, key, endpoint string) {
	if key == "" {
		return
	}
	if err := st.ReleaseIdempotencyKey(context.WithoutCancel(ctx), actorID, key, endpoint); err != nil {
		slog.Warn("releasing idempotency key", "endpoint", endpoint, "err", err)
	}
}
