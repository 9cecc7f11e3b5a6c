// Package platform реализует HTTP-обработчики панели суперадминистратора:
// списки учётных записей и сводку по площадке.
package platform

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/profinder/internal/http/middlewarectx"
	"github.com/magabrotheeeer/profinder/internal/http/response"
	"github.com/magabrotheeeer/profinder/internal/models"
)

// Service описывает панель суперадминистратора.
type Service interface {
	Users(ctx context.Context, caller models.Caller, role models.Role) ([]*models.User, error)
	Stats(ctx context.Context, caller models.Caller, window string) (*models.PlatformStats, error)
}

// Handler обрабатывает запросы панели.
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

// Users godoc
// @Summary Учётные записи по роли
// @Tags Superadmin
// @Produce json
// @Security BearerAuth
// @Param role query string false "user, admin или superadmin; по умолчанию user"
// @Success 200 {object} response.Response
// @Router /superadmin/users [get]
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "handlers.platform.Users", models.Role(r.URL.Query().Get("role")))
}

// Admins возвращает учётные записи специалистов.
func (h *Handler) Admins(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "handlers.platform.Admins", models.RoleAdmin)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, op string, role models.Role) {
	log := h.logger(r, op)
	users, err := h.svc.Users(r.Context(), middlewarectx.CallerFrom(r.Context()), role)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, users)
}

// Stats godoc
// @Summary Сводка по площадке
// @Description Счётчики пользователей, специалистов и заявок; новые пользователи и выручка за окно.
// @Tags Superadmin
// @Produce json
// @Security BearerAuth
// @Param range query string false "7d, 30d, 90d или 1y; по умолчанию 30d"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Неизвестное окно"
// @Router /superadmin/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.platform.Stats")
	stats, err := h.svc.Stats(r.Context(), middlewarectx.CallerFrom(r.Context()), r.URL.Query().Get("range"))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, stats)
}
