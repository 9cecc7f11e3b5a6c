// Package subscription управляет тарифом специалиста: чтение текущего плана и переход на pro.
package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/profinder/internal/config"
	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/metrics"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/authz"
)

// Repository определяет методы хранилища для работы с тарифом.
type Repository interface {
	// GetProfileByUserID возвращает профиль специалиста по владельцу.
	GetProfileByUserID(ctx context.Context, userID string) (*models.Profile, error)
	// UpgradeToPro переводит профиль на pro, открывает период и пишет платёж одной транзакцией.
	UpgradeToPro(ctx context.Context, profileID string, start, end time.Time, payment models.Payment) (*models.PlanSubscription, error)
}

// Upgrade результат перехода на pro.
type Upgrade struct {
	Subscription models.Subscription     `json:"subscription"`
	Period       *models.PlanSubscription `json:"period"`
}

// Service реализует операции над тарифом.
type Service struct {
	repo    Repository
	authz   *authz.Authorizer
	metrics *metrics.Metrics
	log     *slog.Logger
	period  time.Duration
	price   int64
	now     func() time.Time
}

// New создаёт сервис тарифа; длительность периода и цена берутся из cfg.
func New(repo Repository, az *authz.Authorizer, m *metrics.Metrics, log *slog.Logger, cfg config.Lifecycle) *Service {
	return &Service{
		repo:    repo,
		authz:   az,
		metrics: m,
		log:     log,
		period:  cfg.ProPlanPeriod,
		price:   cfg.ProPlanPrice,
		now:     time.Now,
	}
}

// GetSubscription возвращает тариф и счётчик вызывающего специалиста.
func (s *Service) GetSubscription(ctx context.Context, caller models.Caller) (*models.Subscription, error) {
	if err := s.authz.Authorize(caller, authz.ManagePlan); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetProfileByUserID(ctx, caller.SubjectID)
	if err != nil {
		return nil, err
	}
	return &profile.Subscription, nil
}

// UpgradeToPro переводит вызывающего на pro: счётчик обнуляется, дата продления
// сдвигается на период тарифа.
func (s *Service) UpgradeToPro(ctx context.Context, caller models.Caller) (*Upgrade, error) {
	const op = "subscription.UpgradeToPro"
	if err := s.authz.Authorize(caller, authz.ManagePlan); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetProfileByUserID(ctx, caller.SubjectID)
	if err != nil {
		return nil, err
	}
	if profile.Subscription.Plan == models.PlanPro {
		return nil, apperr.New(apperr.KindConflict, op, "already on pro plan")
	}

	start := s.now()
	end := start.Add(s.period)
	period, err := s.repo.UpgradeToPro(ctx, profile.ID, start, end, models.Payment{
		UserID:         caller.SubjectID,
		ProfessionalID: &profile.ID,
		Amount:         s.price,
		Kind:           models.PaymentProUpgrade,
		Status:         models.PaymentSuccess,
		ProviderRef:    "plan-" + uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transition("plan", string(models.PlanPro))
	s.log.Info("upgraded to pro plan",
		slog.String("op", op),
		slog.String("profile_id", profile.ID),
		slog.Time("renewal_date", end),
	)

	return &Upgrade{
		Subscription: models.Subscription{Plan: models.PlanPro, Usage: 0, RenewalDate: &end},
		Period:       period,
	}, nil
}
