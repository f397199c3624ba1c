package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Worker consumes email tasks and sends them through a Mailer.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	mailer Mailer
	logger *slog.Logger
}

func NewWorker(redisAddr string, mailer Mailer, logger *slog.Logger) *Worker {
	w := &Worker{
		server: asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				QueueEmails: 10,
			},
		}),
		mux:    asynq.NewServeMux(),
		mailer: mailer,
		logger: logger,
	}
	w.mux.HandleFunc(TaskNotificationEmail, w.handleNotificationEmail)
	return w
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start asynq worker: %w", err)
	}
	w.logger.Info("Asynq worker started")
	return nil
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleNotificationEmail(ctx context.Context, t *asynq.Task) error {
	var p NotificationEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if err := w.mailer.Send(ctx, p.Envelope.To, p.Envelope.Subject, p.Envelope.Body); err != nil {
		w.logger.Error("notification email send failed", "notification_id", p.NotificationID, "err", err)
		return err
	}
	w.logger.Info("notification email sent", "notification_id", p.NotificationID, "type", p.Type)
	return nil
}
