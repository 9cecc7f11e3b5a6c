// Package models содержит доменные структуры маркетплейса: пользователя,
// профиль специалиста, заявку, платёж, подписку на тариф и уведомление.
package models

import "time"

// Role роль вызывающего.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Caller аутентифицированный вызывающий: непрозрачный идентификатор и роль.
type Caller struct {
	SubjectID string
	Role      Role
}

// User представляет учётную запись пользователя.
// Поля Role и Verified меняются синхронно со статусом профиля специалиста.
type User struct {
	UID          string    `json:"uid"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Verified     bool      `json:"verified"`
	Balance      int64     `json:"balance"` // в минимальных единицах валюты
	AadharCard   *string   `json:"aadhar_card,omitempty"`
	VoterID      *string   `json:"voter_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterRequest тело запроса регистрации.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest тело запроса входа.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// OTPRequest запрос на отправку или проверку одноразового кода.
type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code,omitempty"`
}

// ResetPasswordRequest тело запроса сброса пароля по коду из письма.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ChangePasswordRequest тело запроса смены пароля.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}
