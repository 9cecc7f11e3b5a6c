package models

import "time"

// PaymentKind назначение платежа.
type PaymentKind string

const (
	PaymentServiceRequest PaymentKind = "service_request"
	PaymentProUpgrade     PaymentKind = "pro_plan_upgrade"
	PaymentRefund         PaymentKind = "refund"
)

// PaymentStatus статус записи в журнале платежей.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment запись журнала платежей. Журнал только дополняется.
type Payment struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	ProfessionalID *string       `json:"professional_id,omitempty"`
	EngagementID   *string       `json:"engagement_id,omitempty"`
	Amount         int64         `json:"amount"`
	Currency       string        `json:"currency"`
	Kind           PaymentKind   `json:"kind"`
	Status         PaymentStatus `json:"status"`
	ProviderRef    string        `json:"provider_ref,omitempty"`
	RefundAmount   int64         `json:"refund_amount"`
	RefundedAt     *time.Time    `json:"refunded_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// RecordPaymentRequest тело запроса на запись платежа.
type RecordPaymentRequest struct {
	ProfessionalID string        `json:"professional_id,omitempty"`
	EngagementID   string        `json:"engagement_id,omitempty"`
	Amount         int64         `json:"amount" validate:"required,gt=0"`
	Currency       string        `json:"currency,omitempty"`
	Status         PaymentStatus `json:"status" validate:"required"`
	ProviderRef    string        `json:"provider_ref" validate:"required"`
}
