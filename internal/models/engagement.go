package models

import "time"

// EngagementStatus статус заявки на услугу.
type EngagementStatus string

const (
	EngagementPending    EngagementStatus = "pending"
	EngagementApproved   EngagementStatus = "approved"
	EngagementRejected   EngagementStatus = "rejected"
	EngagementInProgress EngagementStatus = "in_progress"
	EngagementCompleted  EngagementStatus = "completed"
	EngagementCancelled  EngagementStatus = "cancelled"
	EngagementRefunded   EngagementStatus = "refunded"
)

// RatingSide сторона, выставляющая оценку.
type RatingSide string

const (
	RatingByUser         RatingSide = "user"
	RatingByProfessional RatingSide = "professional"
)

// Rating оценка от одной из сторон.
type Rating struct {
	Stars    int    `json:"stars"`
	Feedback string `json:"feedback"`
}

// Engagement заявка пользователя к специалисту.
// Version растёт при каждой записи и используется для оптимистичной блокировки.
type Engagement struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	ProfessionalID string           `json:"professional_id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Amount         int64            `json:"amount"`
	Status         EngagementStatus `json:"status"`
	EstimatedDays  int              `json:"estimated_days"`
	StartDate      *time.Time       `json:"start_date,omitempty"`
	EndDate        *time.Time       `json:"end_date,omitempty"`
	AdminNotes     string           `json:"admin_notes,omitempty"`
	ApprovedAt     *time.Time       `json:"approved_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	Refunded       bool             `json:"refunded"`
	AdminRating    *Rating          `json:"admin_rating,omitempty"`
	UserRating     *Rating          `json:"user_rating,omitempty"`
	Version        int              `json:"version"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CreateEngagementRequest тело запроса на создание заявки.
type CreateEngagementRequest struct {
	ProfessionalID string `json:"professional_id" validate:"required"`
	Title          string `json:"title" validate:"required"`
	Description    string `json:"description" validate:"required"`
	EstimatedDays  int    `json:"estimated_days" validate:"required,gt=0"`
	Amount         int64  `json:"amount" validate:"gte=0"`
}

// RespondRequest ответ специалиста на заявку.
type RespondRequest struct {
	Decision  EngagementStatus `json:"decision" validate:"required"`
	Notes     string           `json:"notes"`
	StartDate *time.Time       `json:"start_date,omitempty"`
	EndDate   *time.Time       `json:"end_date,omitempty"`
}

// AdvanceRequest перевод заявки в работу или в завершённые.
type AdvanceRequest struct {
	Status EngagementStatus `json:"status" validate:"required"`
	Notes  string           `json:"notes"`
}

// RateRequest оценка по завершённой заявке.
type RateRequest struct {
	Side     RatingSide `json:"side" validate:"required"`
	Stars    int        `json:"stars"`
	Feedback string     `json:"feedback"`
}

// RefundInfo результат возврата средств по заявке.
type RefundInfo struct {
	EngagementID string
	UserID       string
	Amount       int64
}

// RatingSummary средняя оценка специалиста от пользователей.
type RatingSummary struct {
	ProfessionalID string  `json:"professional_id"`
	Average        float64 `json:"average"`
	Count          int     `json:"count"`
}
