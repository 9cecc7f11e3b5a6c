// Package billing реализует HTTP-обработчики тарифа специалиста и журнала платежей.
package billing

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/profinder/internal/http/middlewarectx"
	"github.com/magabrotheeeer/profinder/internal/http/request"
	"github.com/magabrotheeeer/profinder/internal/http/response"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/subscription"
)

// PlanService описывает операции с тарифом.
type PlanService interface {
	GetSubscription(ctx context.Context, caller models.Caller) (*models.Subscription, error)
	UpgradeToPro(ctx context.Context, caller models.Caller) (*subscription.Upgrade, error)
}

// PaymentService описывает журнал платежей.
type PaymentService interface {
	Record(ctx context.Context, caller models.Caller, req models.RecordPaymentRequest) (*models.Payment, error)
	ListMine(ctx context.Context, caller models.Caller) ([]*models.Payment, error)
	ListAll(ctx context.Context, caller models.Caller) ([]*models.Payment, error)
}

// Handler обрабатывает запросы тарифа и платежей.
type Handler struct {
	log      *slog.Logger
	plans    PlanService
	payments PaymentService
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, plans PlanService, payments PaymentService) *Handler {
	return &Handler{log: log, plans: plans, payments: payments}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Subscription godoc
// @Summary Текущий тариф специалиста
// @Tags Plan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /subscription [get]
func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.billing.Subscription")
	sub, err := h.plans.GetSubscription(r.Context(), middlewarectx.CallerFrom(r.Context()))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, sub)
}

// Upgrade godoc
// @Summary Переход на тариф pro
// @Description Обнуляет счётчик завершённых заявок и продлевает тариф на 30 дней.
// @Tags Plan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Тариф уже pro"
// @Router /subscription/pro [post]
func (h *Handler) Upgrade(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.billing.Upgrade")
	up, err := h.plans.UpgradeToPro(r.Context(), middlewarectx.CallerFrom(r.Context()))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	log.Info("plan upgraded", slog.String("plan_subscription_id", up.Period.ID))
	response.OK(w, r, http.StatusOK, up)
}

// RecordPayment godoc
// @Summary Запись платежа
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.RecordPaymentRequest true "Платёж"
// @Success 201 {object} response.Response
// @Router /payments [post]
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.billing.RecordPayment")

	var req models.RecordPaymentRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	p, err := h.payments.Record(r.Context(), middlewarectx.CallerFrom(r.Context()), req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusCreated, p)
}

// Payments возвращает платежи вызывающего, а суперадминистратору весь журнал.
func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.billing.Payments")
	caller := middlewarectx.CallerFrom(r.Context())

	var (
		list []*models.Payment
		err  error
	)
	if caller.Role == models.RoleSuperAdmin {
		list, err = h.payments.ListAll(r.Context(), caller)
	} else {
		list, err = h.payments.ListMine(r.Context(), caller)
	}
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, list)
}
