// Package verification ведёт жизненный цикл профиля специалиста:
// подача заявки, подтверждение или отклонение суперадминистратором и удаление.
//
// Профиль и учётная запись владельца меняются последовательной парой записей.
// Если вторая запись не прошла, операция возвращает apperr.ErrPartialFailure,
// а расхождение исправляет плановая сверка статусов.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/lib/sl"
	"github.com/magabrotheeeer/profinder/internal/metrics"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/authz"
	"github.com/magabrotheeeer/profinder/internal/services/notification"
)

const searchCachePrefix = "profiles:verified:"

// Repository операции хранилища над профилями и пользователями.
type Repository interface {
	CreateProfile(ctx context.Context, userID string, fields models.ProfileFields, docs models.ProfileDocuments) (string, error)
	ResubmitProfile(ctx context.Context, id string, fields models.ProfileFields, docs models.ProfileDocuments) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByUserID(ctx context.Context, userID string) (*models.Profile, error)
	SetProfileStatus(ctx context.Context, id string, status models.ProfileStatus) error
	DeleteProfile(ctx context.Context, id string) error
	ListProfilesByStatus(ctx context.Context, status models.ProfileStatus) ([]*models.Profile, error)
	ListProfiles(ctx context.Context) ([]*models.Profile, error)
	SearchVerified(ctx context.Context, city, profession string) ([]*models.Profile, error)

	GetUser(ctx context.Context, uid string) (*models.User, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error)
	SetUserRole(ctx context.Context, uid string, role models.Role, verified bool) error
	SetUserDocuments(ctx context.Context, uid string, docs models.ProfileDocuments) error
	ResetUserIdentity(ctx context.Context, uid string) error
}

// Cache кэш результатов поиска.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Notifier приёмник уведомлений.
type Notifier interface {
	Notify(ctx context.Context, n notification.Notice)
	NotifyAll(ctx context.Context, recipients []string, n notification.Notice)
}

// Service реализует жизненный цикл верификации.
type Service struct {
	repo     Repository
	cache    Cache
	notifier Notifier
	authz    *authz.Authorizer
	metrics  *metrics.Metrics
	log      *slog.Logger
	validate *validator.Validate
	cacheTTL time.Duration
}

// New создаёт сервис верификации. cache может быть nil: тогда поиск идёт в хранилище.
func New(repo Repository, cache Cache, notifier Notifier, az *authz.Authorizer, m *metrics.Metrics, log *slog.Logger, cacheTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		authz:    az,
		metrics:  m,
		log:      log,
		validate: validator.New(),
		cacheTTL: cacheTTL,
	}
}

// Submit подаёт заявку на верификацию или повторно подаёт отклонённую.
func (s *Service) Submit(ctx context.Context, caller models.Caller, fields models.ProfileFields, docs models.ProfileDocuments) (*models.Profile, error) {
	const op = "verification.Submit"
	if err := s.authz.Authorize(caller, authz.SubmitProfile); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(fields); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, "required profile fields are missing", err)
	}
	hasIdentity := docs.AadharCard != "" || docs.VoterID != ""

	existing, err := s.repo.GetProfileByUserID(ctx, caller.SubjectID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var profileID string
	resubmitted := false
	switch {
	case existing == nil:
		if !hasIdentity {
			return nil, apperr.New(apperr.KindValidation, op,
				"please upload at least one identity document (Aadhar Card or Voter ID)")
		}
		profileID, err = s.repo.CreateProfile(ctx, caller.SubjectID, fields, docs)
		if err != nil {
			return nil, err
		}
	case existing.Status == models.ProfilePending:
		return nil, apperr.New(apperr.KindConflict, op, "verification request is already pending")
	case existing.Status == models.ProfileVerified:
		return nil, apperr.New(apperr.KindConflict, op, "profile is already verified")
	default:
		if !hasIdentity && !existing.HasIdentityDocument() {
			return nil, apperr.New(apperr.KindValidation, op,
				"please upload at least one identity document (Aadhar Card or Voter ID)")
		}
		if err = s.repo.ResubmitProfile(ctx, existing.ID, fields, docs); err != nil {
			return nil, err
		}
		profileID = existing.ID
		resubmitted = true
	}
	s.metrics.Transition("profile", string(models.ProfilePending))

	log := s.log.With(slog.String("op", op), slog.String("profile_id", profileID))
	if hasIdentity {
		if err := s.repo.SetUserDocuments(ctx, caller.SubjectID, docs); err != nil {
			log.Error("failed to copy identity documents to user", sl.Err(err))
		}
	}

	s.notifySuperadmins(ctx, log, caller.SubjectID, profileID, fields.Profession, resubmitted)

	profile, err := s.repo.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	log.Info("profile submitted for verification", slog.Bool("resubmitted", resubmitted))
	return profile, nil
}

func (s *Service) notifySuperadmins(ctx context.Context, log *slog.Logger, candidateID, profileID, profession string, resubmitted bool) {
	superadmins, err := s.repo.ListUsersByRole(ctx, models.RoleSuperAdmin)
	if err != nil {
		log.Error("failed to list superadmins", sl.Err(err))
		return
	}

	name := "A user"
	if candidate, err := s.repo.GetUser(ctx, candidateID); err == nil {
		name = candidate.Name
	}
	msg := fmt.Sprintf("%s has submitted an admin verification request for %s profession.", name, profession)
	if resubmitted {
		msg = fmt.Sprintf("%s has resubmitted an admin verification request for %s profession after rejection.", name, profession)
	}

	ids := make([]string, 0, len(superadmins))
	for _, u := range superadmins {
		ids = append(ids, u.UID)
	}
	s.notifier.NotifyAll(ctx, ids, notification.Notice{
		Type:            models.NotifyVerificationRequest,
		Title:           "New Admin Verification Request",
		Message:         msg,
		RelatedEntityID: profileID,
	})
}

// Verify подтверждает профиль и повышает владельца до admin.
func (s *Service) Verify(ctx context.Context, caller models.Caller, profileID string) (*models.Profile, error) {
	const op = "verification.Verify"
	if err := s.authz.Authorize(caller, authz.ReviewProfiles); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	switch profile.Status {
	case models.ProfileVerified:
		return nil, apperr.New(apperr.KindConflict, op, "profile is already verified")
	case models.ProfileRejected:
		return nil, apperr.New(apperr.KindInvalidState, op, "rejected profile must be resubmitted before verification")
	}

	err = s.transition(ctx, op, profile, models.ProfileVerified, func() error {
		return s.repo.SetUserRole(ctx, profile.UserID, models.RoleAdmin, true)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notification.Notice{
		RecipientID:     profile.UserID,
		Type:            models.NotifyAdminVerified,
		Title:           "Admin Verification Approved",
		Message:         "Your admin verification request has been approved. You can now accept service requests.",
		RelatedEntityID: profile.ID,
		Mail:            true,
	})
	return profile, nil
}

// Reject отклоняет профиль и возвращает владельцу роль user.
// Отклонить можно и ранее подтверждённый профиль.
func (s *Service) Reject(ctx context.Context, caller models.Caller, profileID string) (*models.Profile, error) {
	const op = "verification.Reject"
	if err := s.authz.Authorize(caller, authz.ReviewProfiles); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile.Status == models.ProfileRejected {
		return nil, apperr.New(apperr.KindConflict, op, "profile is already rejected")
	}

	err = s.transition(ctx, op, profile, models.ProfileRejected, func() error {
		return s.repo.SetUserRole(ctx, profile.UserID, models.RoleUser, false)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notification.Notice{
		RecipientID:     profile.UserID,
		Type:            models.NotifyAdminRejected,
		Title:           "Admin Verification Rejected",
		Message:         "Your admin verification request has been rejected. You can resubmit your application with updated information.",
		RelatedEntityID: profile.ID,
		Mail:            true,
	})
	return profile, nil
}

// transition записывает статус профиля, затем выполняет обновление пользователя.
func (s *Service) transition(ctx context.Context, op string, profile *models.Profile, status models.ProfileStatus, updateUser func() error) error {
	if err := s.repo.SetProfileStatus(ctx, profile.ID, status); err != nil {
		return err
	}
	profile.Status = status
	s.metrics.Transition("profile", string(status))
	s.invalidateSearch(ctx)

	if err := updateUser(); err != nil {
		return s.partialFailure(op, profile, err)
	}
	s.log.Info("profile status changed",
		slog.String("op", op),
		slog.String("profile_id", profile.ID),
		slog.String("status", string(status)),
	)
	return nil
}

func (s *Service) partialFailure(op string, profile *models.Profile, err error) error {
	s.log.Error("profile updated but owning user was not",
		slog.String("op", op),
		slog.String("profile_id", profile.ID),
		slog.String("user_id", profile.UserID),
		sl.PartialFailure(),
		sl.Err(err),
	)
	s.metrics.PartialFailure(op)
	return apperr.Wrap(apperr.KindPartialFailure, op, "profile updated but user identity is out of sync", err)
}

// Delete удаляет профиль и сбрасывает роль, верификацию и документы владельца.
func (s *Service) Delete(ctx context.Context, caller models.Caller, profileID string) error {
	const op = "verification.Delete"
	if err := s.authz.Authorize(caller, authz.ReviewProfiles); err != nil {
		return err
	}
	profile, err := s.repo.GetProfile(ctx, profileID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProfile(ctx, profile.ID); err != nil {
		return err
	}
	s.metrics.Transition("profile", "deleted")
	s.invalidateSearch(ctx)

	if err := s.repo.ResetUserIdentity(ctx, profile.UserID); err != nil {
		return s.partialFailure(op, profile, err)
	}
	s.log.Info("profile deleted", slog.String("op", op), slog.String("profile_id", profile.ID))
	return nil
}

// Get возвращает профиль по идентификатору.
func (s *Service) Get(ctx context.Context, caller models.Caller, profileID string) (*models.Profile, error) {
	if err := s.authz.Authorize(caller, authz.ReviewProfiles); err != nil {
		return nil, err
	}
	return s.repo.GetProfile(ctx, profileID)
}

// Mine возвращает профиль вызывающего.
func (s *Service) Mine(ctx context.Context, caller models.Caller) (*models.Profile, error) {
	if err := s.authz.Authorize(caller, authz.ViewOwnProfile); err != nil {
		return nil, err
	}
	return s.repo.GetProfileByUserID(ctx, caller.SubjectID)
}

// ListPending возвращает профили, ожидающие проверки.
func (s *Service) ListPending(ctx context.Context, caller models.Caller) ([]*models.Profile, error) {
	if err := s.authz.Authorize(caller, authz.ReviewProfiles); err != nil {
		return nil, err
	}
	return s.repo.ListProfilesByStatus(ctx, models.ProfilePending)
}

// ListAll возвращает все профили.
func (s *Service) ListAll(ctx context.Context, caller models.Caller) ([]*models.Profile, error) {
	if err := s.authz.Authorize(caller, authz.ReviewProfiles); err != nil {
		return nil, err
	}
	return s.repo.ListProfiles(ctx)
}

// SearchVerified ищет подтверждённых специалистов по городу и профессии.
// Доступен без аутентификации; результат кэшируется.
func (s *Service) SearchVerified(ctx context.Context, city, profession string) ([]*models.Profile, error) {
	const op = "verification.SearchVerified"
	key := searchCachePrefix + strings.ToLower(strings.TrimSpace(city)) + ":" + strings.ToLower(strings.TrimSpace(profession))
	log := s.log.With(slog.String("op", op))

	if s.cache != nil {
		var cached []*models.Profile
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn("failed to read search cache", sl.Err(err))
		}
		if found {
			return cached, nil
		}
	}

	profiles, err := s.repo.SearchVerified(ctx, strings.TrimSpace(city), strings.TrimSpace(profession))
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, profiles, s.cacheTTL); err != nil {
			log.Warn("failed to write search cache", sl.Err(err))
		}
	}
	return profiles, nil
}

func (s *Service) invalidateSearch(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePrefix(ctx, searchCachePrefix); err != nil {
		s.log.Warn("failed to invalidate search cache", sl.Err(err))
	}
}
