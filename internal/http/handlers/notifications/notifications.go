// Package notifications реализует HTTP-обработчики входящих уведомлений.
package notifications

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/profinder/internal/http/middlewarectx"
	"github.com/magabrotheeeer/profinder/internal/http/response"
	"github.com/magabrotheeeer/profinder/internal/models"
)

// Service описывает входящие уведомления.
type Service interface {
	List(ctx context.Context, caller models.Caller, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, caller models.Caller, id string) error
}

// Handler обрабатывает запросы к входящим.
type Handler struct {
	log *slog.Logger
	svc Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, svc Service) *Handler {
	return &Handler{log: log, svc: svc}
}

// List godoc
// @Summary Входящие уведомления
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Размер страницы, по умолчанию 50"
// @Success 200 {object} response.Response
// @Router /notifications [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		slog.String("op", "handlers.notifications.List"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	// некорректный limit заменяется значением по умолчанию в сервисе
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.svc.List(r.Context(), middlewarectx.CallerFrom(r.Context()), limit)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, list)
}

// MarkRead отмечает уведомление прочитанным.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		slog.String("op", "handlers.notifications.MarkRead"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	if err := h.svc.MarkRead(r.Context(), middlewarectx.CallerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, map[string]any{"message": "notification marked as read"})
}
