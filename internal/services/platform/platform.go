// Package platform выдаёт суперадминистратору списки учётных записей и сводку по площадке.
package platform

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/authz"
)

// DefaultWindow окно сводки, если оно не задано.
const DefaultWindow = "30d"

var windows = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
}

// Repository чтение учётных записей и агрегатов.
type Repository interface {
	ListUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error)
	PlatformStats(ctx context.Context, since time.Time) (*models.PlatformStats, error)
}

// Service отвечает на запросы панели суперадминистратора.
type Service struct {
	repo  Repository
	authz *authz.Authorizer
	log   *slog.Logger
	now   func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, az *authz.Authorizer, log *slog.Logger) *Service {
	return &Service{repo: repo, authz: az, log: log, now: time.Now}
}

// Users возвращает учётные записи с ролью role; пустая роль означает user.
func (s *Service) Users(ctx context.Context, caller models.Caller, role models.Role) ([]*models.User, error) {
	const op = "platform.Users"
	if err := s.authz.Authorize(caller, authz.ViewPlatform); err != nil {
		return nil, err
	}
	switch role {
	case "":
		role = models.RoleUser
	case models.RoleUser, models.RoleAdmin, models.RoleSuperAdmin:
	default:
		return nil, apperr.New(apperr.KindValidation, op, "role must be user, admin or superadmin")
	}
	return s.repo.ListUsersByRole(ctx, role)
}

// Stats возвращает сводку за окно window: 7d, 30d, 90d или 1y.
func (s *Service) Stats(ctx context.Context, caller models.Caller, window string) (*models.PlatformStats, error) {
	const op = "platform.Stats"
	if err := s.authz.Authorize(caller, authz.ViewPlatform); err != nil {
		return nil, err
	}
	if window == "" {
		window = DefaultWindow
	}
	d, ok := windows[window]
	if !ok {
		return nil, apperr.New(apperr.KindValidation, op, "range must be one of 7d, 30d, 90d, 1y")
	}

	stats, err := s.repo.PlatformStats(ctx, s.now().Add(-d))
	if err != nil {
		return nil, err
	}
	s.log.Debug("platform stats computed", slog.String("op", op), slog.String("range", window))
	return stats, nil
}
