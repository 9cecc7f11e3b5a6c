// Package contact принимает обращения с открытой формы обратной связи
// и даёт суперадминистратору разбирать их.
//
// Письма о новом обращении и о смене статуса ставятся в очередь после записи;
// сбой отправки логируется и не отменяет запись.
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/lib/sl"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/authz"
)

// Repository хранилище обращений.
type Repository interface {
	CreateContact(ctx context.Context, c models.ContactSubmission) (string, error)
	GetContact(ctx context.Context, id string) (*models.ContactSubmission, error)
	ListContacts(ctx context.Context, status models.ContactStatus) ([]*models.ContactSubmission, error)
	UpdateContact(ctx context.Context, id string, status models.ContactStatus, notes string) (*models.ContactSubmission, error)
	DeleteContact(ctx context.Context, id string) error
}

// Mailer ставит письмо в очередь отправки.
type Mailer interface {
	EnqueueMail(ctx context.Context, msg models.MailMessage) error
}

var statusMessages = map[models.ContactStatus]string{
	models.ContactNew:      "received and is pending review",
	models.ContactRead:     "been reviewed by our team",
	models.ContactReplied:  "been processed and a reply has been sent",
	models.ContactResolved: "been resolved",
	models.ContactSpam:     "been marked as spam",
}

// Service обрабатывает обращения.
type Service struct {
	repo     Repository
	mailer   Mailer
	authz    *authz.Authorizer
	log      *slog.Logger
	validate *validator.Validate
	inbox    string
}

// New создаёт сервис. inbox адрес поддержки для писем о новых обращениях;
// пустой адрес отключает их.
func New(repo Repository, mailer Mailer, az *authz.Authorizer, log *slog.Logger, inbox string) *Service {
	return &Service{
		repo:     repo,
		mailer:   mailer,
		authz:    az,
		log:      log,
		validate: validator.New(),
		inbox:    inbox,
	}
}

// Submit сохраняет обращение с открытой формы. Вызывающий не требуется.
func (s *Service) Submit(ctx context.Context, req models.ContactRequest) (*models.ContactSubmission, error) {
	const op = "contact.Submit"
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, "name, valid email, subject and message are required", err)
	}

	c := models.ContactSubmission{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
		Status:  models.ContactNew,
	}
	id, err := s.repo.CreateContact(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id

	log := s.log.With(slog.String("op", op), slog.String("contact_id", id))
	log.Info("contact submission stored")
	if s.inbox != "" {
		s.mail(ctx, log, models.MailMessage{
			To:      s.inbox,
			Subject: "ProFinder Contact: " + c.Subject,
			Body:    fmt.Sprintf("From: %s <%s>\n\n%s", c.Name, c.Email, c.Message),
		})
	}
	return &c, nil
}

// List возвращает обращения, новые первыми; пустой status означает все.
func (s *Service) List(ctx context.Context, caller models.Caller, status models.ContactStatus) ([]*models.ContactSubmission, error) {
	const op = "contact.List"
	if err := s.authz.Authorize(caller, authz.ManageContacts); err != nil {
		return nil, err
	}
	if status != "" {
		if _, ok := statusMessages[status]; !ok {
			return nil, apperr.New(apperr.KindValidation, op, "unknown contact status "+string(status))
		}
	}
	return s.repo.ListContacts(ctx, status)
}

// Get возвращает обращение.
func (s *Service) Get(ctx context.Context, caller models.Caller, id string) (*models.ContactSubmission, error) {
	if err := s.authz.Authorize(caller, authz.ManageContacts); err != nil {
		return nil, err
	}
	return s.repo.GetContact(ctx, id)
}

// Update меняет статус и заметки обращения. С SendEmail автору уходит письмо о статусе.
func (s *Service) Update(ctx context.Context, caller models.Caller, id string, req models.UpdateContactRequest) (*models.ContactSubmission, error) {
	const op = "contact.Update"
	if err := s.authz.Authorize(caller, authz.ManageContacts); err != nil {
		return nil, err
	}
	if req.Status == "" && req.Notes == "" {
		return nil, apperr.New(apperr.KindValidation, op, "status or notes is required")
	}
	if req.Status != "" {
		if _, ok := statusMessages[req.Status]; !ok {
			return nil, apperr.New(apperr.KindValidation, op, "unknown contact status "+string(req.Status))
		}
	}

	c, err := s.repo.UpdateContact(ctx, id, req.Status, strings.TrimSpace(req.Notes))
	if err != nil {
		return nil, err
	}

	log := s.log.With(slog.String("op", op), slog.String("contact_id", id))
	log.Info("contact submission updated", slog.String("status", string(c.Status)))
	if req.SendEmail {
		s.mail(ctx, log, models.MailMessage{
			To:      c.Email,
			Subject: "Update on your ProFinder contact submission: " + c.Subject,
			Body: fmt.Sprintf("Hello %s, your message has %s.",
				c.Name, statusMessages[c.Status]),
		})
	}
	return c, nil
}

// Delete удаляет обращение.
func (s *Service) Delete(ctx context.Context, caller models.Caller, id string) error {
	if err := s.authz.Authorize(caller, authz.ManageContacts); err != nil {
		return err
	}
	if err := s.repo.DeleteContact(ctx, id); err != nil {
		return err
	}
	s.log.Info("contact submission deleted", slog.String("op", "contact.Delete"), slog.String("contact_id", id))
	return nil
}

func (s *Service) mail(ctx context.Context, log *slog.Logger, msg models.MailMessage) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.EnqueueMail(ctx, msg); err != nil {
		log.Error("failed to enqueue contact mail", sl.Err(err))
	}
}
