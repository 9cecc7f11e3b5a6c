// Package scheduler содержит периодические задачи обслуживания:
// просроченные заявки, возвраты, истечение тарифов и сверку статусов.
//
// Каждая задача идемпотентна и обрабатывает элементы независимо:
// сбой на одном элементе логируется и не останавливает остальные.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/profinder/internal/config"
	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/lib/period"
	"github.com/magabrotheeeer/profinder/internal/lib/sl"
	"github.com/magabrotheeeer/profinder/internal/metrics"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/notification"
)

// Названия задач в логах и метриках.
const (
	JobOverdue   = "overdue"
	JobRefund    = "refund"
	JobPlans     = "plan_expiry"
	JobReconcile = "reconcile"
)

// Repository данные, которые просматривают и меняют задачи.
type Repository interface {
	FindOverdue(ctx context.Context, now time.Time) ([]*models.Engagement, error)
	FindRefundable(ctx context.Context, cutoff time.Time) ([]*models.Engagement, error)
	RefundEngagement(ctx context.Context, id string, now time.Time) (*models.RefundInfo, error)

	FindActivePlanSubscriptions(ctx context.Context) ([]*models.PlanSubscription, error)
	MarkReminded(ctx context.Context, id string, now time.Time) (bool, error)
	MarkExpired(ctx context.Context, id string) (bool, error)

	FindStatusDivergence(ctx context.Context) ([]models.ProfileIdentity, error)
	FindOrphanedIdentities(ctx context.Context) ([]string, error)
	SetUserRole(ctx context.Context, uid string, role models.Role, verified bool) error
	ResetUserIdentity(ctx context.Context, uid string) error

	GetUser(ctx context.Context, uid string) (*models.User, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

// Notifier доставляет уведомления.
type Notifier interface {
	Notify(ctx context.Context, n notification.Notice)
}

// Result итог одного прогона задачи.
type Result struct {
	Processed int
	Skipped   int
	Failed    int
}

// Service запускает задачи обслуживания.
type Service struct {
	repo         Repository
	notifier     Notifier
	metrics      *metrics.Metrics
	log          *slog.Logger
	refundWindow time.Duration
	interval     time.Duration
	now          func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, notifier Notifier, m *metrics.Metrics, log *slog.Logger,
	lc config.Lifecycle, sc config.Scheduler) *Service {
	interval := sc.SchedulerInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	window := lc.RefundWindow
	if window <= 0 {
		window = period.Days(30)
	}
	return &Service{
		repo:         repo,
		notifier:     notifier,
		metrics:      m,
		log:          log,
		refundWindow: window,
		interval:     interval,
		now:          time.Now,
	}
}

// Run выполняет все задачи сразу, затем по таймеру, пока не отменён ctx.
func (s *Service) Run(ctx context.Context) {
	s.runAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	jobs := []struct {
		name string
		fn   func(context.Context) (Result, error)
	}{
		{JobOverdue, s.Overdue},
		{JobRefund, s.Refunds},
		{JobPlans, s.PlanExpiry},
		{JobReconcile, s.Reconcile},
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		res, err := job.fn(ctx)
		s.metrics.SweepRun(job.name)
		if err != nil {
			s.log.Error("job failed", slog.String("job", job.name), sl.Err(err))
			continue
		}
		s.log.Info("job finished",
			slog.String("job", job.name),
			slog.Int("processed", res.Processed),
			slog.Int("skipped", res.Skipped),
			slog.Int("failed", res.Failed),
		)
	}
}

func (s *Service) count(res *Result, job, outcome string) {
	switch outcome {
	case metrics.OutcomeProcessed:
		res.Processed++
	case metrics.OutcomeSkipped:
		res.Skipped++
	default:
		res.Failed++
	}
	s.metrics.SweepItem(job, outcome)
}

// Overdue уведомляет стороны одобренных заявок, срок которых прошёл.
// Состояние заявок не меняется.
func (s *Service) Overdue(ctx context.Context) (Result, error) {
	const op = "scheduler.Overdue"
	var res Result

	items, err := s.repo.FindOverdue(ctx, s.now())
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	if len(items) == 0 {
		s.log.Info("no overdue engagements found")
		return res, nil
	}
	s.log.Info("found overdue engagements", slog.Int("count", len(items)))

	for _, e := range items {
		user, err := s.repo.GetUser(ctx, e.UserID)
		if err != nil {
			s.log.Error("failed to load engagement user", slog.String("engagement", e.ID), sl.Err(err))
			s.count(&res, JobOverdue, outcomeFor(err))
			continue
		}
		profile, err := s.repo.GetProfile(ctx, e.ProfessionalID)
		if err != nil {
			s.log.Error("failed to load engagement professional", slog.String("engagement", e.ID), sl.Err(err))
			s.count(&res, JobOverdue, outcomeFor(err))
			continue
		}
		professional, err := s.repo.GetUser(ctx, profile.UserID)
		if err != nil {
			s.log.Error("failed to load professional account", slog.String("engagement", e.ID), sl.Err(err))
			s.count(&res, JobOverdue, outcomeFor(err))
			continue
		}

		s.notifier.Notify(ctx, notification.Notice{
			RecipientID:     user.UID,
			Type:            models.NotifyServiceDelay,
			Title:           "Service Delay Apology",
			Message:         fmt.Sprintf("Sorry %s, your service request is delayed. Please connect for better services.", user.Name),
			RelatedEntityID: e.ID,
			Mail:            true,
			Email:           user.Email,
		})
		s.notifier.Notify(ctx, notification.Notice{
			RecipientID:     professional.UID,
			Type:            models.NotifyAccountWarning,
			Title:           "Account Warning",
			Message:         fmt.Sprintf("Dear %s, you have not completed a user request. Your account is at risk of being frozen.", professional.Name),
			RelatedEntityID: e.ID,
			Mail:            true,
			Email:           professional.Email,
		})
		s.count(&res, JobOverdue, metrics.OutcomeProcessed)
	}
	return res, nil
}

// Refunds возвращает средства по заявкам, одобренным раньше окна возврата
// и так и не завершённым. Повторный возврат по заявке невозможен.
func (s *Service) Refunds(ctx context.Context) (Result, error) {
	const op = "scheduler.Refunds"
	var res Result
	now := s.now()

	items, err := s.repo.FindRefundable(ctx, period.Before(now, s.refundWindow))
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	if len(items) == 0 {
		s.log.Info("no refundable engagements found")
		return res, nil
	}
	s.log.Info("found refundable engagements", slog.Int("count", len(items)))

	for _, e := range items {
		log := s.log.With(slog.String("engagement", e.ID))
		info, err := s.repo.RefundEngagement(ctx, e.ID, now)
		if errors.Is(err, apperr.ErrConflict) {
			log.Info("engagement already refunded or changed state")
			s.count(&res, JobRefund, metrics.OutcomeSkipped)
			continue
		}
		if err != nil {
			log.Error("failed to refund engagement", sl.Err(err))
			s.count(&res, JobRefund, metrics.OutcomeFailed)
			continue
		}
		s.metrics.Transition("engagement", string(models.EngagementRefunded))

		name := ""
		if user, err := s.repo.GetUser(ctx, info.UserID); err != nil {
			log.Warn("failed to load refunded user", sl.Err(err))
		} else {
			name = user.Name
		}
		s.notifier.Notify(ctx, notification.Notice{
			RecipientID:     info.UserID,
			Type:            models.NotifyRefund,
			Title:           "Refund Processed",
			Message:         fmt.Sprintf("Hello %s, your refund of %s has been credited to your account.", name, formatINR(info.Amount)),
			RelatedEntityID: info.EngagementID,
			Mail:            true,
		})
		s.count(&res, JobRefund, metrics.OutcomeProcessed)
	}
	return res, nil
}

// PlanExpiry напоминает об окончании тарифа за день и закрывает истёкшие периоды.
// Напоминание и уведомление об истечении отправляются не больше одного раза.
func (s *Service) PlanExpiry(ctx context.Context) (Result, error) {
	const op = "scheduler.PlanExpiry"
	var res Result
	now := s.now()

	items, err := s.repo.FindActivePlanSubscriptions(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	for _, ps := range items {
		log := s.log.With(slog.String("plan_subscription", ps.ID))
		if ps.Email == "" {
			s.count(&res, JobPlans, metrics.OutcomeSkipped)
			continue
		}

		switch {
		case ps.EndDate.Before(now):
			expired, err := s.repo.MarkExpired(ctx, ps.ID)
			if err != nil {
				log.Error("failed to expire plan", sl.Err(err))
				s.count(&res, JobPlans, metrics.OutcomeFailed)
				continue
			}
			if !expired {
				s.count(&res, JobPlans, metrics.OutcomeSkipped)
				continue
			}
			s.notifier.Notify(ctx, notification.Notice{
				RecipientID:     ps.UserID,
				Type:            models.NotifyPlanExpired,
				Title:           "Subscription Expired",
				Message:         fmt.Sprintf("Hello %s, your %s plan has expired. Please renew to continue using premium features.", ps.Name, ps.PlanName),
				RelatedEntityID: ps.ProfessionalID,
				Mail:            true,
				Email:           ps.Email,
			})
			s.count(&res, JobPlans, metrics.OutcomeProcessed)

		case period.DaysLeft(ps.EndDate, now) == 1:
			first, err := s.repo.MarkReminded(ctx, ps.ID, now)
			if err != nil {
				log.Error("failed to mark plan reminder", sl.Err(err))
				s.count(&res, JobPlans, metrics.OutcomeFailed)
				continue
			}
			if !first {
				s.count(&res, JobPlans, metrics.OutcomeSkipped)
				continue
			}
			s.notifier.Notify(ctx, notification.Notice{
				RecipientID:     ps.UserID,
				Type:            models.NotifyPlanReminder,
				Title:           "Subscription Expiry Reminder",
				Message:         fmt.Sprintf("Hello %s, your %s plan expires tomorrow. Please renew to continue services.", ps.Name, ps.PlanName),
				RelatedEntityID: ps.ProfessionalID,
				Mail:            true,
				Email:           ps.Email,
			})
			s.count(&res, JobPlans, metrics.OutcomeProcessed)

		default:
			s.count(&res, JobPlans, metrics.OutcomeSkipped)
		}
	}
	return res, nil
}

// Reconcile приводит учётные записи в соответствие со статусом профиля:
// verified профиль даёт роль admin, остальные статусы дают роль user, а с пользователя
// без профиля снимаются роль, отметка verified и ссылки на документы.
// Чинит расхождения, оставшиеся после частично выполненных переходов верификации.
func (s *Service) Reconcile(ctx context.Context) (Result, error) {
	const op = "scheduler.Reconcile"
	var res Result

	diverged, err := s.repo.FindStatusDivergence(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	for _, pi := range diverged {
		role, verified := models.RoleUser, false
		if pi.Status == models.ProfileVerified {
			role, verified = models.RoleAdmin, true
		}
		if err := s.repo.SetUserRole(ctx, pi.UserID, role, verified); err != nil {
			s.log.Error("failed to repair user role",
				slog.String("profile", pi.ProfileID), slog.String("user", pi.UserID), sl.Err(err))
			s.count(&res, JobReconcile, metrics.OutcomeFailed)
			continue
		}
		s.log.Warn("repaired diverged user role",
			slog.String("profile", pi.ProfileID),
			slog.String("user", pi.UserID),
			slog.String("profile_status", string(pi.Status)),
			slog.String("from_role", string(pi.UserRole)),
			slog.String("to_role", string(role)),
		)
		s.count(&res, JobReconcile, metrics.OutcomeProcessed)
	}

	orphans, err := s.repo.FindOrphanedIdentities(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	for _, uid := range orphans {
		if err := s.repo.ResetUserIdentity(ctx, uid); err != nil {
			s.log.Error("failed to reset orphaned identity", slog.String("user", uid), sl.Err(err))
			s.count(&res, JobReconcile, metrics.OutcomeFailed)
			continue
		}
		s.log.Warn("reset identity of user without profile", slog.String("user", uid))
		s.count(&res, JobReconcile, metrics.OutcomeProcessed)
	}
	return res, nil
}

// outcomeFor считает отсутствующую сущность пропуском, остальные ошибки сбоем.
func outcomeFor(err error) string {
	if errors.Is(err, apperr.ErrNotFound) {
		return metrics.OutcomeSkipped
	}
	return metrics.OutcomeFailed
}

// formatINR печатает сумму в пайсах как рупии.
func formatINR(amount int64) string {
	return fmt.Sprintf("₹%d.%02d", amount/100, amount%100)
}
