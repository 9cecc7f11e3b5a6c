package models

import "time"

// ProfileStatus статус верификации профиля специалиста.
type ProfileStatus string

const (
	ProfilePending  ProfileStatus = "pending"
	ProfileVerified ProfileStatus = "verified"
	ProfileRejected ProfileStatus = "rejected"
)

// Plan тарифный план специалиста.
type Plan string

const (
	PlanTrial Plan = "trial"
	PlanPro   Plan = "pro"
)

// Subscription тариф и счётчик завершённых заявок.
// Usage не убывает на trial и сбрасывается только переходом на pro.
type Subscription struct {
	Plan        Plan       `json:"plan"`
	Usage       int        `json:"usage"`
	RenewalDate *time.Time `json:"renewal_date,omitempty"`
}

// Profile профиль специалиста (кандидата в admin).
type Profile struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Profession   string        `json:"profession"`
	Experience   int           `json:"experience"`
	City         string        `json:"city"`
	State        string        `json:"state,omitempty"`
	Pincode      string        `json:"pincode"`
	Address      string        `json:"address,omitempty"`
	Mobile       string        `json:"mobile,omitempty"`
	Gender       string        `json:"gender,omitempty"`
	AadharCard   *string       `json:"aadhar_card,omitempty"`
	VoterID      *string       `json:"voter_id,omitempty"`
	ProfilePhoto *string       `json:"profile_photo,omitempty"`
	Status       ProfileStatus `json:"status"`
	Subscription Subscription  `json:"subscription"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// HasIdentityDocument сообщает, загружен ли хотя бы один документ личности.
func (p *Profile) HasIdentityDocument() bool {
	return (p.AadharCard != nil && *p.AadharCard != "") || (p.VoterID != nil && *p.VoterID != "")
}

// ProfileFields изменяемые поля заявки на верификацию.
type ProfileFields struct {
	Profession string `json:"profession" validate:"required"`
	Experience int    `json:"experience" validate:"gte=0"`
	City       string `json:"city" validate:"required"`
	Pincode    string `json:"pincode" validate:"required"`
	State      string `json:"state,omitempty"`
	Address    string `json:"address,omitempty"`
	Mobile     string `json:"mobile,omitempty"`
	Gender     string `json:"gender,omitempty"`
}

// ProfileDocuments ссылки на загруженные файлы; пустая строка означает отсутствие файла.
type ProfileDocuments struct {
	AadharCard   string
	VoterID      string
	ProfilePhoto string
}

// ProfileIdentity пара профиль/пользователь для сверки статусов.
type ProfileIdentity struct {
	ProfileID    string
	UserID       string
	Status       ProfileStatus
	UserRole     Role
	UserVerified bool
}
