// Package contact реализует HTTP-обработчики формы обратной связи
// и разбора обращений суперадминистратором.
package contact

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

// Service описывает обработку обращений.
type Service interface {
	Submit(ctx context.Context, req models.ContactRequest) (*models.ContactSubmission, error)
	List(ctx context.Context, caller models.Caller, status models.ContactStatus) ([]*models.ContactSubmission, error)
	Get(ctx context.Context, caller models.Caller, id string) (*models.ContactSubmission, error)
	Update(ctx context.Context, caller models.Caller, id string, req models.UpdateContactRequest) (*models.ContactSubmission, error)
	Delete(ctx context.Context, caller models.Caller, id string) error
}

// Handler обрабатывает запросы к обращениям.
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

// Submit godoc
// @Summary Обращение через форму обратной связи
// @Tags Contact
// @Accept json
// @Produce json
// @Param request body models.ContactRequest true "Имя, email, тема и сообщение"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /contact [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.contact.Submit")

	var req models.ContactRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	c, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusCreated, map[string]any{"id": c.ID, "message": "message received"})
}

// List godoc
// @Summary Обращения
// @Tags Superadmin
// @Produce json
// @Security BearerAuth
// @Param status query string false "new, read, replied, resolved или spam"
// @Success 200 {object} response.Response
// @Router /superadmin/contact [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.contact.List")
	list, err := h.svc.List(r.Context(), middlewarectx.CallerFrom(r.Context()),
		models.ContactStatus(r.URL.Query().Get("status")))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, list)
}

// Get возвращает обращение.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.contact.Get")
	c, err := h.svc.Get(r.Context(), middlewarectx.CallerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, c)
}

// Update godoc
// @Summary Разбор обращения
// @Tags Superadmin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID обращения"
// @Param request body models.UpdateContactRequest true "Статус, заметки и признак письма автору"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Обращение не найдено"
// @Router /superadmin/contact/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.contact.Update")

	var req models.UpdateContactRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	c, err := h.svc.Update(r.Context(), middlewarectx.CallerFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, c)
}

// Delete удаляет обращение.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.contact.Delete")
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), middlewarectx.CallerFrom(r.Context()), id); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, map[string]any{"message": "contact submission deleted", "id": id})
}
