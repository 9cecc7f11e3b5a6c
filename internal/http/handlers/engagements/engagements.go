// Package engagements реализует HTTP-обработчики жизненного цикла заявок.
package engagements

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/profinder/internal/http/middlewarectx"
	"github.com/magabrotheeeer/profinder/internal/http/request"
	"github.com/magabrotheeeer/profinder/internal/http/response"
	"github.com/magabrotheeeer/profinder/internal/models"
)

// Service описывает жизненный цикл заявки.
type Service interface {
	Create(ctx context.Context, caller models.Caller, req models.CreateEngagementRequest) (*models.Engagement, error)
	Respond(ctx context.Context, caller models.Caller, id string, req models.RespondRequest) (*models.Engagement, error)
	Advance(ctx context.Context, caller models.Caller, id string, req models.AdvanceRequest) (*models.Engagement, error)
	Rate(ctx context.Context, caller models.Caller, id string, req models.RateRequest) (*models.Engagement, error)
	Get(ctx context.Context, caller models.Caller, id string) (*models.Engagement, error)
	ListForUser(ctx context.Context, caller models.Caller) ([]*models.Engagement, error)
	ListForProfessional(ctx context.Context, caller models.Caller) ([]*models.Engagement, error)
	ListAll(ctx context.Context, caller models.Caller) ([]*models.Engagement, error)
	AverageRating(ctx context.Context, professionalID string) (*models.RatingSummary, error)
}

// Handler обрабатывает запросы к заявкам.
type Handler struct {
	log *slog.Logger
	svc Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Create godoc
// @Summary Создание заявки к специалисту
// @Tags Engagements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateEngagementRequest true "Заявка"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Специалист не подтверждён"
// @Router /engagements [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.engagements.Create")

	var req models.CreateEngagementRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	e, err := h.svc.Create(r.Context(), middlewarectx.CallerFrom(r.Context()), req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	log.Info("engagement created", slog.String("engagement_id", e.ID))
	response.OK(w, r, http.StatusCreated, e)
}

// Respond godoc
// @Summary Ответ специалиста на заявку
// @Tags Engagements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID заявки"
// @Param request body models.RespondRequest true "Решение"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Заявка уже обработана или изменена параллельно"
// @Router /engagements/{id}/response [put]
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.engagements.Respond")

	var req models.RespondRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	e, err := h.svc.Respond(r.Context(), middlewarectx.CallerFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, e)
}

// Advance godoc
// @Summary Перевод заявки в работу или в завершённые
// @Description Завершение расходует единицу пробного лимита; при исчерпанном лимите возвращается 402.
// @Tags Engagements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID заявки"
// @Param request body models.AdvanceRequest true "Новый статус"
// @Success 200 {object} response.Response
// @Failure 402 {object} response.ErrorResponse "Пробный лимит исчерпан"
// @Router /engagements/{id}/status [put]
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.engagements.Advance")

	var req models.AdvanceRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	e, err := h.svc.Advance(r.Context(), middlewarectx.CallerFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, e)
}

// Rate godoc
// @Summary Оценка завершённой заявки
// @Tags Engagements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID заявки"
// @Param request body models.RateRequest true "Оценка"
// @Success 200 {object} response.Response
// @Router /engagements/{id}/rating [post]
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.engagements.Rate")

	var req models.RateRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	e, err := h.svc.Rate(r.Context(), middlewarectx.CallerFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, e)
}

// Get возвращает заявку.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.engagements.Get")
	e, err := h.svc.Get(r.Context(), middlewarectx.CallerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, e)
}

// List возвращает заявки в зависимости от роли: свои для user,
// входящие для admin, все для superadmin.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.engagements.List")
	caller := middlewarectx.CallerFrom(r.Context())

	var (
		list []*models.Engagement
		err  error
	)
	switch caller.Role {
	case models.RoleSuperAdmin:
		list, err = h.svc.ListAll(r.Context(), caller)
	case models.RoleAdmin:
		list, err = h.svc.ListForProfessional(r.Context(), caller)
	default:
		list, err = h.svc.ListForUser(r.Context(), caller)
	}
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, list)
}

// Rating возвращает среднюю оценку специалиста.
func (h *Handler) Rating(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.engagements.Rating")
	summary, err := h.svc.AverageRating(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, summary)
}
