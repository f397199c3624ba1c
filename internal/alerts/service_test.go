package alerts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sudo-init-do/govconnect/internal/alerts"
	"github.com/sudo-init-do/govconnect/internal/alerts/mocks"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/store/memstore"
)

var (
	contractor = domain.User{ID: "c-1", Name: "Ada", Email: "ada@example.gov", Role: domain.RoleContractor}
	vendor     = domain.User{ID: "v-1", Name: "Vic", Email: "vic@example.com", Role: domain.RoleVendor}
	noEmail    = domain.User{ID: "c-2", Name: "Quiet", Role: domain.RoleContractor}
)

func newStore() *memstore.Store {
	st := memstore.New()
	st.AddUser(contractor, "")
	st.AddUser(vendor, "Vic LLC")
	st.AddUser(noEmail, "")
	return st
}

func TestNotifyFansOutEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	d := mocks.NewMockDispatcher(ctrl)
	st := newStore()
	svc := alerts.NewService(st, d, "https://app.example.gov/")

	d.EXPECT().EnqueueNotificationEmail(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p alerts.NotificationEmailPayload) error {
			assert.Equal(t, "ada@example.gov", p.Envelope.To)
			assert.Equal(t, "New Delivery", p.Envelope.Subject)
			assert.Contains(t, p.Envelope.Body, "https://app.example.gov/service-requests/req-1")
			assert.Equal(t, "req-1", p.RelatedRequestID)
			return nil
		})

	n, err := svc.Notify(context.Background(), alerts.NotifyInput{
		RecipientID:      contractor.ID,
		TriggeredBy:      vendor.ID,
		Type:             domain.NotificationDelivery,
		Title:            "New Delivery",
		Message:          "Your order has been delivered",
		RelatedRequestID: "req-1",
	})
	require.NoError(t, err)
	assert.False(t, n.IsRead)
	assert.NotEmpty(t, n.ID)
}

func TestNotifySkipsRecipientsWithoutEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	d := mocks.NewMockDispatcher(ctrl)
	svc := alerts.NewService(newStore(), d, "")

	_, err := svc.Notify(context.Background(), alerts.NotifyInput{
		RecipientID: noEmail.ID, TriggeredBy: vendor.ID, Type: domain.NotificationNewMessage,
		Title: "New Message", Message: "hi",
	})
	require.NoError(t, err)
}

func TestNotifyIgnoresEnqueueFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	d := mocks.NewMockDispatcher(ctrl)
	svc := alerts.NewService(newStore(), d, "")
	d.EXPECT().EnqueueNotificationEmail(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	n, err := svc.Notify(context.Background(), alerts.NotifyInput{
		RecipientID: contractor.ID, TriggeredBy: vendor.ID, Type: domain.NotificationNewMessage,
		Title: "New Message", Message: "hi",
	})
	require.NoError(t, err)
	assert.NotNil(t, n)
}

func TestListNewestFirstWithSender(t *testing.T) {
	st := newStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { now = now.Add(time.Minute); return now }
	svc := alerts.NewService(st, alerts.NopDispatcher{}, "", alerts.WithClock(clock))
	ctx := context.Background()

	for _, title := range []string{"first", "second"} {
		_, err := svc.Notify(ctx, alerts.NotifyInput{
			RecipientID: contractor.ID, TriggeredBy: vendor.ID, Type: domain.NotificationNewMessage,
			Title: title, Message: "m",
		})
		require.NoError(t, err)
	}

	items, err := svc.List(ctx, contractor.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "second", items[0].Title)
	require.NotNil(t, items[0].Sender)
	assert.Equal(t, "Vic", items[0].Sender.Name)

	empty, err := svc.List(ctx, vendor.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMarkReadOwnershipAndUnreadCount(t *testing.T) {
	st := newStore()
	svc := alerts.NewService(st, alerts.NopDispatcher{}, "")
	ctx := context.Background()

	n, err := svc.Notify(ctx, alerts.NotifyInput{
		RecipientID: contractor.ID, TriggeredBy: vendor.ID, Type: domain.NotificationNewReview,
		Title: "New Review", Message: "5 stars",
	})
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, contractor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	other, err := svc.MarkRead(ctx, n.ID, vendor.ID)
	require.NoError(t, err)
	assert.Nil(t, other)

	missing, err := svc.MarkRead(ctx, "nope", contractor.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	read, err := svc.MarkRead(ctx, n.ID, contractor.ID)
	require.NoError(t, err)
	require.NotNil(t, read)
	assert.True(t, read.IsRead)

	count, err = svc.UnreadCount(ctx, contractor.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
