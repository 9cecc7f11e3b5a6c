// Package authz проверяет права вызывающего до выполнения операции.
//
// Каждая операция жизненного цикла объявляет требуемую возможность (Capability),
// а таблица правил сопоставляет возможности ролям. Проверки владения
// конкретной сущностью остаются в сервисах: они требуют чтения данных.
package authz

import (
	"slices"

	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/models"
)

// Capability право на выполнение группы операций.
type Capability string

const (
	SubmitProfile      Capability = "profile.submit"
	ViewOwnProfile     Capability = "profile.view_own"
	ReviewProfiles     Capability = "profile.review"
	CreateEngagement   Capability = "engagement.create"
	ManageEngagement   Capability = "engagement.manage"
	RateEngagement     Capability = "engagement.rate"
	ViewEngagements    Capability = "engagement.view"
	ViewAllEngagements Capability = "engagement.view_all"
	ManagePlan         Capability = "plan.manage"
	RecordPayment      Capability = "payment.record"
	ViewAllPayments    Capability = "payment.view_all"
	ReadNotifications  Capability = "notification.read"
	ViewPlatform       Capability = "platform.view"
	ManageContacts     Capability = "contact.manage"
)

// Rules сопоставляет возможность ролям, которым она доступна.
type Rules map[Capability][]models.Role

// DefaultRules права по умолчанию.
func DefaultRules() Rules {
	anyone := []models.Role{models.RoleUser, models.RoleAdmin, models.RoleSuperAdmin}
	return Rules{
		SubmitProfile:      {models.RoleUser, models.RoleAdmin},
		ViewOwnProfile:     {models.RoleUser, models.RoleAdmin},
		ReviewProfiles:     {models.RoleSuperAdmin},
		CreateEngagement:   {models.RoleUser},
		ManageEngagement:   {models.RoleAdmin},
		RateEngagement:     {models.RoleUser, models.RoleAdmin},
		ViewEngagements:    anyone,
		ViewAllEngagements: {models.RoleSuperAdmin},
		ManagePlan:         {models.RoleAdmin},
		RecordPayment:      {models.RoleUser, models.RoleAdmin},
		ViewAllPayments:    {models.RoleSuperAdmin},
		ReadNotifications:  anyone,
		ViewPlatform:       {models.RoleSuperAdmin},
		ManageContacts:     {models.RoleSuperAdmin},
	}
}

// Authorizer проверяет возможности вызывающего по таблице правил.
type Authorizer struct {
	rules Rules
}

// New создаёт Authorizer; nil-правила заменяются DefaultRules.
func New(rules Rules) *Authorizer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Authorizer{rules: rules}
}

// Authorize возвращает apperr.ErrUnauthenticated для анонимного вызова
// и apperr.ErrForbidden, если роль вызывающего не имеет возможности.
func (a *Authorizer) Authorize(caller models.Caller, capability Capability) error {
	const op = "authz.Authorize"
	if caller.SubjectID == "" || caller.Role == "" {
		return apperr.New(apperr.KindUnauthenticated, op, "authentication required")
	}
	if !slices.Contains(a.rules[capability], caller.Role) {
		return apperr.New(apperr.KindForbidden, op, "operation is not allowed for role "+string(caller.Role))
	}
	return nil
}

// Owns возвращает apperr.ErrForbidden, если вызывающий не является владельцем.
func Owns(caller models.Caller, ownerID, op string) error {
	if caller.SubjectID != ownerID {
		return apperr.New(apperr.KindForbidden, op, "caller does not own this resource")
	}
	return nil
}
