package models

import "time"

// NotificationType тип уведомления во входящих.
type NotificationType string

const (
	NotifyVerificationRequest NotificationType = "admin_verification_request"
	NotifyAdminVerified       NotificationType = "admin_verified"
	NotifyAdminRejected       NotificationType = "admin_rejected"
	NotifyUserRequest         NotificationType = "user_request"
	NotifyRequestApproved     NotificationType = "request_approved"
	NotifyRequestRejected     NotificationType = "request_rejected"
	NotifyRequestStatus       NotificationType = "request_status_updated"
	NotifyServiceDelay        NotificationType = "service_delay"
	NotifyAccountWarning      NotificationType = "account_warning"
	NotifyRefund              NotificationType = "refund_processed"
	NotifyPlanReminder        NotificationType = "plan_expiry_reminder"
	NotifyPlanExpired         NotificationType = "plan_expired"
)

// Notification запись во входящих пользователя.
type Notification struct {
	ID              string           `json:"id"`
	RecipientID     string           `json:"recipient_id"`
	Type            NotificationType `json:"type"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	RelatedEntityID *string          `json:"related_entity_id,omitempty"`
	Read            bool             `json:"read"`
	CreatedAt       time.Time        `json:"created_at"`
}

// MailMessage письмо, передаваемое через очередь отправителю.
type MailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
