package alerts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/govconnect/internal/alerts"
	"github.com/sudo-init-do/govconnect/internal/domain"
)

func TestHandlers(t *testing.T) {
	st := newStore()
	svc := alerts.NewService(st, alerts.NopDispatcher{}, "")
	h := alerts.NewHandler(svc)
	e := echo.New()

	n, err := svc.Notify(context.Background(), alerts.NotifyInput{
		RecipientID: contractor.ID, TriggeredBy: vendor.ID, Type: domain.NotificationStatusChanged,
		Title: "Status Updated", Message: "in progress",
	})
	require.NoError(t, err)

	call := func(method, path string, userID string, handler echo.HandlerFunc, params ...string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(method, path, nil), rec)
		if len(params) == 2 {
			c.SetParamNames(params[0])
			c.SetParamValues(params[1])
		}
		if userID != "" {
			c.Set("user_id", userID)
			c.Set("role", "contractor")
		}
		require.NoError(t, handler(c))
		return rec
	}

	t.Run("list", func(t *testing.T) {
		rec := call(http.MethodGet, "/notifications", contractor.ID, h.ListNotifications)
		assert.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Notifications []domain.NotificationView `json:"notifications"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Notifications, 1)
		assert.Equal(t, "Status Updated", body.Notifications[0].Title)
	})

	t.Run("mark read of someone else's returns null", func(t *testing.T) {
		rec := call(http.MethodPatch, "/notifications/"+n.ID+"/read", vendor.ID, h.MarkNotificationRead, "id", n.ID)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
	})

	t.Run("unread count then mark read", func(t *testing.T) {
		rec := call(http.MethodGet, "/notifications/unread-count", contractor.ID, h.UnreadCount)
		assert.JSONEq(t, `{"count":1}`, rec.Body.String())

		rec = call(http.MethodPatch, "/notifications/"+n.ID+"/read", contractor.ID, h.MarkNotificationRead, "id", n.ID)
		assert.Equal(t, http.StatusOK, rec.Code)
		var got domain.Notification
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.True(t, got.IsRead)

		rec = call(http.MethodGet, "/notifications/unread-count", contractor.ID, h.UnreadCount)
		assert.JSONEq(t, `{"count":0}`, rec.Body.String())
	})

	t.Run("unauthenticated", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/notifications", nil), httptest.NewRecorder())
		assert.Error(t, h.ListNotifications(c))
	})
}
