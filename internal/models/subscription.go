package models

import "time"

// PlanSubscription оплаченный период тарифа pro, который отслеживает планировщик.
type PlanSubscription struct {
	ID             string     `json:"id"`
	ProfessionalID string     `json:"professional_id"`
	PlanName       string     `json:"plan_name"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        time.Time  `json:"end_date"`
	IsExpired      bool       `json:"is_expired"`
	RemindedAt     *time.Time `json:"reminded_at,omitempty"`
	// Получатель уведомлений: владелец профиля.
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}
