package domain

import (
	"encoding/json"
	"time"
)

// Category of work a request asks for.
type Category string

const (
	CategoryLegal         Category = "legal"
	CategoryHR            Category = "hr"
	CategoryFinance       Category = "finance"
	CategoryCybersecurity Category = "cybersecurity"
	CategoryMarketing     Category = "marketing"
	CategoryBusinessTools Category = "business_tools"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryLegal, CategoryHR, CategoryFinance, CategoryCybersecurity, CategoryMarketing, CategoryBusinessTools:
		return true
	}
	return false
}

// User is the minimal identity the core needs for display and email fan-out.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

// VendorProfile carries the aggregates maintained by reviews and messaging.
type VendorProfile struct {
	UserID              string  `json:"user_id"`
	CompanyName         string  `json:"company_name"`
	Rating              float64 `json:"rating"`
	ReviewCount         int     `json:"review_count"`
	ResponseTime        string  `json:"response_time"`
	ResponseTimeMinutes int     `json:"response_time_minutes"`
}

// Service is a catalog item offered by a vendor.
type Service struct {
	ID       string   `json:"id"`
	VendorID string   `json:"vendor_id"`
	Title    string   `json:"title"`
	Category Category `json:"category"`
}

// ServiceRequest is the work order driven through the lifecycle.
type ServiceRequest struct {
	ID                string    `json:"id"`
	ContractorID      string    `json:"contractor_id"`
	VendorID          *string   `json:"vendor_id"`
	ServiceID         *string   `json:"service_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Category          Category  `json:"category,omitempty"`
	Priority          string    `json:"priority"`
	BudgetMin         string    `json:"budget_min,omitempty"`
	BudgetMax         string    `json:"budget_max,omitempty"`
	Status            Status    `json:"status"`
	EstimatedCost     *string   `json:"estimated_cost"`
	ActualCost        *string   `json:"actual_cost"`
	EstimatedDuration *string   `json:"estimated_duration"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsParty reports whether userID is the contractor or the assigned vendor.
func (r *ServiceRequest) IsParty(userID string) bool {
	if userID == "" {
		return false
	}
	return r.ContractorID == userID || r.IsVendor(userID)
}

// IsVendor reports whether userID is the assigned vendor.
func (r *ServiceRequest) IsVendor(userID string) bool {
	return r.VendorID != nil && *r.VendorID == userID
}

// OtherParty returns the counterpart of userID, or "" when there is none.
func (r *ServiceRequest) OtherParty(userID string) string {
	switch {
	case r.ContractorID == userID:
		if r.VendorID == nil {
			return ""
		}
		return *r.VendorID
	case r.IsVendor(userID):
		return r.ContractorID
	}
	return ""
}

// PartyRole is the role userID plays on this request.
func (r *ServiceRequest) PartyRole(userID string) Role {
	if r.IsVendor(userID) {
		return RoleVendor
	}
	return RoleContractor
}

// RequestLog is an append-only audit entry.
type RequestLog struct {
	ID               string          `json:"id"`
	ServiceRequestID string          `json:"service_request_id"`
	Action           string          `json:"action"`
	PerformedBy      string          `json:"performed_by"`
	PreviousStatus   *Status         `json:"previous_status"`
	NewStatus        *Status         `json:"new_status"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Audit actions.
const (
	ActionCreated          = "SERVICE REQUEST CREATED"
	ActionStatusUpdated    = "STATUS_UPDATED"
	ActionDelivered        = "DELIVERED"
	ActionExtensionRequest = "DELIVERY_EXTENSION_REQUESTED"
)

// LogFilter selects a page of audit entries.
type LogFilter struct {
	RequestID string
	Page      int
	Limit     int
}

// Attachment is a file reference produced by the upload sink.
type Attachment struct {
	ID         string `json:"id"`
	DeliveryID string `json:"delivery_id"`
	FilePath   string `json:"file_path" validate:"required"`
	FileName   string `json:"file_name" validate:"required"`
	FileSize   int64  `json:"file_size" validate:"gte=0"`
}

// Delivery is one numbered submission of work against a request.
type Delivery struct {
	ID               string       `json:"id"`
	ServiceRequestID string       `json:"service_request_id"`
	Version          int          `json:"version"`
	Message          string       `json:"message"`
	DeliveredBy      string       `json:"delivered_by"`
	Attachments      []Attachment `json:"attachments"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Message is one entry in a request thread.
type Message struct {
	ID               string    `json:"id"`
	ServiceRequestID string    `json:"service_request_id"`
	SenderID         string    `json:"sender_id"`
	ReceiverID       string    `json:"receiver_id"`
	Content          string    `json:"content"`
	IsRead           bool      `json:"is_read"`
	CreatedAt        time.Time `json:"created_at"`
}

// Conversation summarizes one thread from a participant's point of view.
type Conversation struct {
	ServiceRequestID string     `json:"service_request_id"`
	Title            string     `json:"title"`
	Status           Status     `json:"status"`
	OtherPartyID     string     `json:"other_party_id"`
	OtherPartyName   string     `json:"other_party_name"`
	LastMessage      *string    `json:"last_message"`
	LastMessageAt    *time.Time `json:"last_message_at"`
	UnreadCount      int        `json:"unread_count"`
	RequestCreatedAt time.Time  `json:"-"`
}

// NotificationType classifies notifications.
type NotificationType string

const (
	NotificationNewMessage        NotificationType = "new_message"
	NotificationDelivery          NotificationType = "delivery"
	NotificationNewReview         NotificationType = "new_review"
	NotificationStatusChanged     NotificationType = "status_changed"
	NotificationDeliveryExtension NotificationType = "delivery_extension"
)

// Notification belongs to exactly one recipient.
type Notification struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	Type             NotificationType `json:"type"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	IsRead           bool             `json:"is_read"`
	RelatedRequestID *string          `json:"related_request_id"`
	TriggeredBy      string           `json:"triggered_by"`
	CreatedAt        time.Time        `json:"created_at"`
}

// NotificationView is a notification joined with the identity that triggered it.
type NotificationView struct {
	Notification
	Sender *User `json:"sender"`
}

// Review is an immutable rating of the other party on a completed request.
type Review struct {
	ID               string    `json:"id"`
	ServiceRequestID string    `json:"service_request_id"`
	ReviewerID       string    `json:"reviewer_id"`
	RevieweeID       string    `json:"reviewee_id"`
	Rating           int       `json:"rating"`
	Comment          *string   `json:"comment"`
	CreatedAt        time.Time `json:"created_at"`
}

// ReviewWithReviewer adds the reviewer display name.
type ReviewWithReviewer struct {
	Review
	ReviewerName string `json:"reviewer_name"`
}

// RatingSummary aggregates reviews received by one user.
type RatingSummary struct {
	RevieweeID    string      `json:"reviewee_id"`
	TotalReviews  int         `json:"total_reviews"`
	AverageRating float64     `json:"average_rating"`
	RatingCounts  map[int]int `json:"rating_counts"`
}

// IdempotencyRecord stores the first response to a keyed request.
type IdempotencyRecord struct {
	ActorID  string
	Key      string
	Endpoint string
	Status   int
	Body     json.RawMessage
}

// Pending reports a reserved key whose response has not been stored yet.
func (r IdempotencyRecord) Pending() bool { return r.Status == 0 }
