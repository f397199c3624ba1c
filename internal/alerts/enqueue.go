package alerts

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

//go:generate mockgen -destination=mocks/mock_dispatcher.go -package=mocks github.com/sudo-init-do/govconnect/internal/alerts Dispatcher

// Dispatcher hands notification emails to the background worker.
type Dispatcher interface {
	EnqueueNotificationEmail(ctx context.Context, p NotificationEmailPayload) error
}

// AsynqDispatcher enqueues onto the emails queue in Redis.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(redisAddr string) *AsynqDispatcher {
	return &AsynqDispatcher{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

// EnqueueNotificationEmail schedules the email for a notification. The task id is
// the notification id, so a notification is mailed at most once.
func (d *AsynqDispatcher) EnqueueNotificationEmail(ctx context.Context, p NotificationEmailPayload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskNotificationEmail, b)
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueEmails),
		asynq.TaskID(p.NotificationID),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

// NopDispatcher drops emails; used when no Redis is configured.
type NopDispatcher struct{}

func (NopDispatcher) EnqueueNotificationEmail(context.Context, NotificationEmailPayload) error {
	return nil
}
