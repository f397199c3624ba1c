package alerts

import "time"

// Task type constants
const (
	TaskNotificationEmail = "email:notification"

	QueueEmails = "emails"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NotificationEmailPayload mirrors one in-app notification to the recipient's inbox.
type NotificationEmailPayload struct {
	NotificationID   string        `json:"notification_id"`
	UserID           string        `json:"user_id"`
	Type             string        `json:"type"`
	RelatedRequestID string        `json:"related_request_id,omitempty"`
	Envelope         EmailEnvelope `json:"envelope"`
	SentAt           time.Time     `json:"sent_at"`
}
