package models

import "time"

// PlatformStats сводка по площадке для суперадминистратора.
// Счётчики пользователей и профилей даны на текущий момент, NewUsers и Revenue за окно с Since.
type PlatformStats struct {
	Since                 time.Time                `json:"since"`
	TotalUsers            int                      `json:"total_users"`
	NewUsers              int                      `json:"new_users"`
	TotalProfessionals    int                      `json:"total_professionals"`
	VerifiedProfessionals int                      `json:"verified_professionals"`
	PendingProfessionals  int                      `json:"pending_professionals"`
	ProPlans              int                      `json:"pro_plans"`
	Engagements           map[EngagementStatus]int `json:"engagements"`
	Revenue               int64                    `json:"revenue"` // успешные платежи за окно, в минимальных единицах валюты
}

// ContactStatus состояние обращения через форму обратной связи.
type ContactStatus string

const (
	ContactNew      ContactStatus = "new"
	ContactRead     ContactStatus = "read"
	ContactReplied  ContactStatus = "replied"
	ContactResolved ContactStatus = "resolved"
	ContactSpam     ContactStatus = "spam"
)

// ContactSubmission обращение через форму обратной связи.
type ContactSubmission struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Subject   string        `json:"subject"`
	Message   string        `json:"message"`
	Status    ContactStatus `json:"status"`
	Notes     string        `json:"notes,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ContactRequest тело обращения с открытой формы.
type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=300"`
	Message string `json:"message" validate:"required,max=5000"`
}

// UpdateContactRequest разбор обращения суперадминистратором.
// SendEmail отправляет автору письмо о новом статусе.
type UpdateContactRequest struct {
	Status    ContactStatus `json:"status,omitempty"`
	Notes     string        `json:"notes,omitempty"`
	SendEmail bool          `json:"send_email,omitempty"`
}
