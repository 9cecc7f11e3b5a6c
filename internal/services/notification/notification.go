// Package notification доставляет уведомления: запись во входящих и письмо через очередь.
//
// Сбой доставки никогда не откатывает переход жизненного цикла: Notify только
// логирует ошибки и учитывает их в метриках.
package notification

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/profinder/internal/lib/sl"
	"github.com/magabrotheeeer/profinder/internal/metrics"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/authz"
)

// DefaultLimit размер страницы входящих по умолчанию.
const DefaultLimit = 50

// Repository хранилище входящих и контактов получателей.
type Repository interface {
	CreateNotification(ctx context.Context, n models.Notification) (string, error)
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) error
	GetUser(ctx context.Context, uid string) (*models.User, error)
}

// Mailer ставит письмо в очередь отправки.
type Mailer interface {
	EnqueueMail(ctx context.Context, msg models.MailMessage) error
}

// Notice уведомление для одного получателя.
type Notice struct {
	RecipientID     string
	Type            models.NotificationType
	Title           string
	Message         string
	RelatedEntityID string
	// Mail дополнительно отправляет письмо. Если Email пуст, адрес берётся из учётной записи.
	Mail  bool
	Email string
}

// Service приёмник уведомлений.
type Service struct {
	repo    Repository
	mailer  Mailer
	authz   *authz.Authorizer
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New создаёт сервис. mailer может быть nil: тогда письма не отправляются.
func New(repo Repository, mailer Mailer, az *authz.Authorizer, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		mailer:  mailer,
		authz:   az,
		metrics: m,
		log:     log,
	}
}

// Notify сохраняет уведомление и при необходимости ставит письмо в очередь.
func (s *Service) Notify(ctx context.Context, n Notice) {
	const op = "notification.Notify"
	log := s.log.With(
		slog.String("op", op),
		slog.String("recipient", n.RecipientID),
		slog.String("type", string(n.Type)),
	)

	row := models.Notification{
		RecipientID: n.RecipientID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
	}
	if n.RelatedEntityID != "" {
		related := n.RelatedEntityID
		row.RelatedEntityID = &related
	}
	if _, err := s.repo.CreateNotification(ctx, row); err != nil {
		log.Error("failed to store notification", sl.Err(err))
		s.metrics.NotificationFailure("inbox")
	}

	if !n.Mail || s.mailer == nil {
		return
	}
	email := n.Email
	if email == "" {
		user, err := s.repo.GetUser(ctx, n.RecipientID)
		if err != nil {
			log.Error("failed to resolve recipient email", sl.Err(err))
			s.metrics.NotificationFailure("mail")
			return
		}
		email = user.Email
	}
	err := s.mailer.EnqueueMail(ctx, models.MailMessage{
		To:      email,
		Subject: n.Title,
		Body:    n.Message,
	})
	if err != nil {
		log.Error("failed to enqueue mail", sl.Err(err))
		s.metrics.NotificationFailure("mail")
		return
	}
	log.Debug("mail enqueued")
}

// NotifyAll рассылает одно уведомление нескольким получателям.
func (s *Service) NotifyAll(ctx context.Context, recipients []string, n Notice) {
	for _, id := range recipients {
		n.RecipientID = id
		s.Notify(ctx, n)
	}
}

// List возвращает входящие вызывающего.
func (s *Service) List(ctx context.Context, caller models.Caller, limit int) ([]*models.Notification, error) {
	if err := s.authz.Authorize(caller, authz.ReadNotifications); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	return s.repo.ListNotifications(ctx, caller.SubjectID, limit)
}

// MarkRead отмечает уведомление вызывающего прочитанным.
func (s *Service) MarkRead(ctx context.Context, caller models.Caller, id string) error {
	if err := s.authz.Authorize(caller, authz.ReadNotifications); err != nil {
		return err
	}
	return s.repo.MarkNotificationRead(ctx, id, caller.SubjectID)
}
