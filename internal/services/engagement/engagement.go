// Package engagement ведёт жизненный цикл заявки пользователя к специалисту:
// создание, ответ специалиста, работа, завершение с учётом лимита тарифа и оценки.
//
// Каждая запись заявки условна по версии: проигравший конкурентный писатель
// получает apperr.ErrConflict и может повторить операцию на свежем состоянии.
package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/profinder/internal/config"
	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/metrics"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/authz"
	"github.com/magabrotheeeer/profinder/internal/services/notification"
)

// Repository операции хранилища над заявками и профилями.
type Repository interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByUserID(ctx context.Context, userID string) (*models.Profile, error)

	CreateEngagement(ctx context.Context, e models.Engagement) (string, error)
	GetEngagement(ctx context.Context, id string) (*models.Engagement, error)
	UpdateEngagement(ctx context.Context, e *models.Engagement) error
	CompleteEngagement(ctx context.Context, e *models.Engagement, limit int) (int, error)
	ListEngagementsByUser(ctx context.Context, userID string) ([]*models.Engagement, error)
	ListEngagementsByProfessional(ctx context.Context, professionalID string) ([]*models.Engagement, error)
	ListEngagements(ctx context.Context) ([]*models.Engagement, error)
	AverageRating(ctx context.Context, professionalID string) (float64, int, error)
}

// Notifier приёмник уведомлений.
type Notifier interface {
	Notify(ctx context.Context, n notification.Notice)
}

// Service реализует жизненный цикл заявки.
type Service struct {
	repo       Repository
	notifier   Notifier
	authz      *authz.Authorizer
	metrics    *metrics.Metrics
	log        *slog.Logger
	validate   *validator.Validate
	trialLimit int
	completion config.CompletionPolicy
	now        func() time.Time
}

// New создаёт сервис заявок с лимитом trial и политикой завершения из cfg.
func New(repo Repository, notifier Notifier, az *authz.Authorizer, m *metrics.Metrics, log *slog.Logger, cfg config.Lifecycle) *Service {
	completion := cfg.CompletionPolicy
	if completion == "" {
		completion = config.CompletionStrict
	}
	return &Service{
		repo:       repo,
		notifier:   notifier,
		authz:      az,
		metrics:    m,
		log:        log,
		validate:   validator.New(),
		trialLimit: cfg.TrialLimit,
		completion: completion,
		now:        time.Now,
	}
}

// Create создаёт заявку в статусе pending к подтверждённому специалисту.
func (s *Service) Create(ctx context.Context, caller models.Caller, req models.CreateEngagementRequest) (*models.Engagement, error) {
	const op = "engagement.Create"
	if err := s.authz.Authorize(caller, authz.CreateEngagement); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op,
			"professional_id, title, description and positive estimated_days are required", err)
	}

	profile, err := s.repo.GetProfile(ctx, req.ProfessionalID)
	if err != nil {
		return nil, err
	}
	if profile.Status != models.ProfileVerified {
		return nil, apperr.New(apperr.KindInvalidState, op, "professional is not verified")
	}

	id, err := s.repo.CreateEngagement(ctx, models.Engagement{
		UserID:         caller.SubjectID,
		ProfessionalID: profile.ID,
		Title:          req.Title,
		Description:    req.Description,
		Amount:         req.Amount,
		EstimatedDays:  req.EstimatedDays,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transition("engagement", string(models.EngagementPending))

	e, err := s.repo.GetEngagement(ctx, id)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notification.Notice{
		RecipientID:     profile.UserID,
		Type:            models.NotifyUserRequest,
		Title:           "New Service Request",
		Message:         fmt.Sprintf("You have received a new service request: %q", req.Title),
		RelatedEntityID: id,
		Mail:            true,
	})
	s.log.Info("engagement created", slog.String("op", op), slog.String("engagement_id", id))
	return e, nil
}

// loadOwned читает заявку и проверяет, что вызывающий владеет профилем специалиста.
func (s *Service) loadOwned(ctx context.Context, caller models.Caller, id, op string) (*models.Engagement, *models.Profile, error) {
	if err := s.authz.Authorize(caller, authz.ManageEngagement); err != nil {
		return nil, nil, err
	}
	e, err := s.repo.GetEngagement(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.repo.GetProfile(ctx, e.ProfessionalID)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.Owns(caller, profile.UserID, op); err != nil {
		return nil, nil, err
	}
	return e, profile, nil
}

// Respond одобряет или отклоняет заявку. Одобрение требует обе даты, start < end;
// даты, статус и время одобрения записываются одним условным обновлением.
func (s *Service) Respond(ctx context.Context, caller models.Caller, id string, req models.RespondRequest) (*models.Engagement, error) {
	const op = "engagement.Respond"
	if req.Decision != models.EngagementApproved && req.Decision != models.EngagementRejected {
		return nil, apperr.New(apperr.KindValidation, op, "decision must be approved or rejected")
	}

	e, _, err := s.loadOwned(ctx, caller, id, op)
	if err != nil {
		return nil, err
	}
	if e.Status != models.EngagementPending {
		return nil, apperr.New(apperr.KindInvalidState, op, "only pending engagements can be answered, current status "+string(e.Status))
	}

	if req.Decision == models.EngagementApproved {
		if req.StartDate == nil || req.EndDate == nil {
			return nil, apperr.New(apperr.KindValidation, op, "start_date and end_date are required for approval")
		}
		if !req.StartDate.Before(*req.EndDate) {
			return nil, apperr.New(apperr.KindValidation, op, "start_date must be before end_date")
		}
		now := s.now()
		e.StartDate = req.StartDate
		e.EndDate = req.EndDate
		e.ApprovedAt = &now
	}
	e.Status = req.Decision
	e.AdminNotes = req.Notes

	if err := s.repo.UpdateEngagement(ctx, e); err != nil {
		return nil, err
	}
	s.metrics.Transition("engagement", string(e.Status))

	notice := notification.Notice{
		RecipientID:     e.UserID,
		RelatedEntityID: e.ID,
		Mail:            true,
	}
	if e.Status == models.EngagementApproved {
		notice.Type = models.NotifyRequestApproved
		notice.Title = "Request Approved"
		notice.Message = fmt.Sprintf("Your request %q has been approved. Work will start on %s",
			e.Title, e.StartDate.Format("02 Jan 2006"))
	} else {
		notice.Type = models.NotifyRequestRejected
		notice.Title = "Request Rejected"
		notice.Message = fmt.Sprintf("Your request %q has been rejected. %s", e.Title, req.Notes)
	}
	s.notifier.Notify(ctx, notice)

	s.log.Info("engagement answered",
		slog.String("op", op),
		slog.String("engagement_id", e.ID),
		slog.String("status", string(e.Status)),
	)
	return e, nil
}

// canComplete сообщает, допускает ли политика завершение из статуса.
func (s *Service) canComplete(status models.EngagementStatus) bool {
	if status == models.EngagementInProgress {
		return true
	}
	return s.completion == config.CompletionRelaxed && status == models.EngagementApproved
}

// Advance переводит заявку в работу или завершает её.
// Завершение увеличивает счётчик тарифа и пишет статус completed одной
// транзакцией: на trial при исчерпанном лимите и при конфликте версий
// не меняются ни заявка, ни счётчик.
func (s *Service) Advance(ctx context.Context, caller models.Caller, id string, req models.AdvanceRequest) (*models.Engagement, error) {
	const op = "engagement.Advance"
	if req.Status != models.EngagementInProgress && req.Status != models.EngagementCompleted {
		return nil, apperr.New(apperr.KindValidation, op, "status must be in_progress or completed")
	}

	e, profile, err := s.loadOwned(ctx, caller, id, op)
	if err != nil {
		return nil, err
	}
	if e.Status == req.Status {
		return nil, apperr.New(apperr.KindConflict, op, "engagement is already "+string(e.Status))
	}

	log := s.log.With(slog.String("op", op), slog.String("engagement_id", e.ID))

	switch req.Status {
	case models.EngagementInProgress:
		if e.Status != models.EngagementApproved {
			return nil, apperr.New(apperr.KindInvalidState, op, "work can start only on approved engagements")
		}
	case models.EngagementCompleted:
		if !s.canComplete(e.Status) {
			return nil, apperr.New(apperr.KindInvalidState, op,
				fmt.Sprintf("engagement in status %s cannot be completed under %s policy", e.Status, s.completion))
		}
		if profile.Subscription.Plan != models.PlanPro && profile.Subscription.Usage >= s.trialLimit {
			return nil, apperr.New(apperr.KindQuotaExceeded, op, "trial plan limit reached, upgrade to pro")
		}
		now := s.now()
		e.CompletedAt = &now
	}
	e.Status = req.Status
	if req.Notes != "" {
		e.AdminNotes = req.Notes
	}

	if req.Status == models.EngagementCompleted {
		usage, err := s.repo.CompleteEngagement(ctx, e, s.trialLimit)
		if err != nil {
			return nil, err
		}
		log.Info("usage incremented", slog.Int("usage", usage))
	} else if err := s.repo.UpdateEngagement(ctx, e); err != nil {
		return nil, err
	}
	s.metrics.Transition("engagement", string(e.Status))

	title, message := "Work Started", "Work has started on your request"
	if e.Status == models.EngagementCompleted {
		title, message = "Work Completed", "Work has been completed on your request"
	}
	s.notifier.Notify(ctx, notification.Notice{
		RecipientID:     e.UserID,
		Type:            models.NotifyRequestStatus,
		Title:           title,
		Message:         fmt.Sprintf("%s: %q", message, e.Title),
		RelatedEntityID: e.ID,
		Mail:            true,
	})

	log.Info("engagement advanced", slog.String("status", string(e.Status)))
	return e, nil
}

// Rate сохраняет оценку одной из сторон по завершённой заявке. Каждая сторона оценивает один раз.
func (s *Service) Rate(ctx context.Context, caller models.Caller, id string, req models.RateRequest) (*models.Engagement, error) {
	const op = "engagement.Rate"
	if err := s.authz.Authorize(caller, authz.RateEngagement); err != nil {
		return nil, err
	}
	if req.Side != models.RatingByUser && req.Side != models.RatingByProfessional {
		return nil, apperr.New(apperr.KindValidation, op, "side must be user or professional")
	}
	if req.Stars < 1 || req.Stars > 5 {
		return nil, apperr.New(apperr.KindValidation, op, "stars must be between 1 and 5")
	}

	e, err := s.repo.GetEngagement(ctx, id)
	if err != nil {
		return nil, err
	}

	current := &e.UserRating
	if req.Side == models.RatingByUser {
		if err := authz.Owns(caller, e.UserID, op); err != nil {
			return nil, err
		}
	} else {
		profile, err := s.repo.GetProfile(ctx, e.ProfessionalID)
		if err != nil {
			return nil, err
		}
		if err := authz.Owns(caller, profile.UserID, op); err != nil {
			return nil, err
		}
		current = &e.AdminRating
	}

	if e.Status != models.EngagementCompleted {
		return nil, apperr.New(apperr.KindInvalidState, op, "only completed engagements can be rated")
	}
	if *current != nil {
		return nil, apperr.New(apperr.KindConflict, op, "rating from this side is already set")
	}
	*current = &models.Rating{Stars: req.Stars, Feedback: req.Feedback}

	if err := s.repo.UpdateEngagement(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info("engagement rated",
		slog.String("op", op),
		slog.String("engagement_id", e.ID),
		slog.String("side", string(req.Side)),
	)
	return e, nil
}

// Get возвращает заявку её автору, владельцу профиля специалиста или суперадминистратору.
func (s *Service) Get(ctx context.Context, caller models.Caller, id string) (*models.Engagement, error) {
	const op = "engagement.Get"
	if err := s.authz.Authorize(caller, authz.ViewEngagements); err != nil {
		return nil, err
	}
	e, err := s.repo.GetEngagement(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role == models.RoleSuperAdmin || caller.SubjectID == e.UserID {
		return e, nil
	}
	profile, err := s.repo.GetProfile(ctx, e.ProfessionalID)
	if err != nil {
		return nil, err
	}
	if err := authz.Owns(caller, profile.UserID, op); err != nil {
		return nil, err
	}
	return e, nil
}

// ListForUser возвращает заявки, созданные вызывающим.
func (s *Service) ListForUser(ctx context.Context, caller models.Caller) ([]*models.Engagement, error) {
	if err := s.authz.Authorize(caller, authz.ViewEngagements); err != nil {
		return nil, err
	}
	return s.repo.ListEngagementsByUser(ctx, caller.SubjectID)
}

// ListForProfessional возвращает заявки к профилю вызывающего.
func (s *Service) ListForProfessional(ctx context.Context, caller models.Caller) ([]*models.Engagement, error) {
	if err := s.authz.Authorize(caller, authz.ManageEngagement); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetProfileByUserID(ctx, caller.SubjectID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListEngagementsByProfessional(ctx, profile.ID)
}

// ListAll возвращает все заявки.
func (s *Service) ListAll(ctx context.Context, caller models.Caller) ([]*models.Engagement, error) {
	if err := s.authz.Authorize(caller, authz.ViewAllEngagements); err != nil {
		return nil, err
	}
	return s.repo.ListEngagements(ctx)
}

// AverageRating возвращает среднюю оценку специалиста по завершённым заявкам.
func (s *Service) AverageRating(ctx context.Context, professionalID string) (*models.RatingSummary, error) {
	if _, err := s.repo.GetProfile(ctx, professionalID); err != nil {
		return nil, err
	}
	avg, count, err := s.repo.AverageRating(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	return &models.RatingSummary{ProfessionalID: professionalID, Average: avg, Count: count}, nil
}
