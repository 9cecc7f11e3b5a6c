// Package payment ведёт журнал платежей. Журнал только дополняется:
// отметка о возврате появляется исключительно через плановый возврат средств.
package payment

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/authz"
)

// Repository операции хранилища над журналом платежей.
type Repository interface {
	CreatePayment(ctx context.Context, p models.Payment) (string, error)
	ListPaymentsByUser(ctx context.Context, userID string) ([]*models.Payment, error)
	ListPayments(ctx context.Context) ([]*models.Payment, error)
	GetEngagement(ctx context.Context, id string) (*models.Engagement, error)
}

// Service записывает и выдаёт платежи.
type Service struct {
	repo     Repository
	authz    *authz.Authorizer
	log      *slog.Logger
	validate *validator.Validate
}

// New создает новый экземпляр Service.
func New(repo Repository, az *authz.Authorizer, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		authz:    az,
		log:      log,
		validate: validator.New(),
	}
}

// Record записывает оплату услуги. Платёж по заявке может внести только её автор.
func (s *Service) Record(ctx context.Context, caller models.Caller, req models.RecordPaymentRequest) (*models.Payment, error) {
	const op = "payment.Record"
	if err := s.authz.Authorize(caller, authz.RecordPayment); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, "amount, status and provider_ref are required", err)
	}
	switch req.Status {
	case models.PaymentPending, models.PaymentSuccess, models.PaymentFailed:
	default:
		return nil, apperr.New(apperr.KindValidation, op, "status must be pending, success or failed")
	}

	p := models.Payment{
		UserID:      caller.SubjectID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Kind:        models.PaymentServiceRequest,
		Status:      req.Status,
		ProviderRef: req.ProviderRef,
	}
	if req.ProfessionalID != "" {
		professionalID := req.ProfessionalID
		p.ProfessionalID = &professionalID
	}
	if req.EngagementID != "" {
		e, err := s.repo.GetEngagement(ctx, req.EngagementID)
		if err != nil {
			return nil, err
		}
		if err := authz.Owns(caller, e.UserID, op); err != nil {
			return nil, err
		}
		p.EngagementID = &e.ID
		p.ProfessionalID = &e.ProfessionalID
	}
	if p.Currency == "" {
		p.Currency = "INR"
	}

	id, err := s.repo.CreatePayment(ctx, p)
	if err != nil {
		return nil, err
	}
	p.ID = id
	s.log.Info("payment recorded",
		slog.String("op", op),
		slog.String("payment_id", id),
		slog.String("status", string(p.Status)),
	)
	return &p, nil
}

// ListMine возвращает платежи вызывающего.
func (s *Service) ListMine(ctx context.Context, caller models.Caller) ([]*models.Payment, error) {
	if err := s.authz.Authorize(caller, authz.RecordPayment); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentsByUser(ctx, caller.SubjectID)
}

// ListAll возвращает весь журнал.
func (s *Service) ListAll(ctx context.Context, caller models.Caller) ([]*models.Payment, error) {
	if err := s.authz.Authorize(caller, authz.ViewAllPayments); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx)
}
