// Package profiles реализует HTTP-обработчики верификации специалистов:
// подачу заявки с документами, проверку суперадминистратором и поиск.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/profinder/internal/blobstore"
	"github.com/magabrotheeeer/profinder/internal/http/middlewarectx"
	"github.com/magabrotheeeer/profinder/internal/http/response"
	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/models"
)

// Service описывает жизненный цикл верификации.
type Service interface {
	Submit(ctx context.Context, caller models.Caller, fields models.ProfileFields, docs models.ProfileDocuments) (*models.Profile, error)
	Verify(ctx context.Context, caller models.Caller, profileID string) (*models.Profile, error)
	Reject(ctx context.Context, caller models.Caller, profileID string) (*models.Profile, error)
	Delete(ctx context.Context, caller models.Caller, profileID string) error
	Get(ctx context.Context, caller models.Caller, profileID string) (*models.Profile, error)
	Mine(ctx context.Context, caller models.Caller) (*models.Profile, error)
	ListPending(ctx context.Context, caller models.Caller) ([]*models.Profile, error)
	ListAll(ctx context.Context, caller models.Caller) ([]*models.Profile, error)
	SearchVerified(ctx context.Context, city, profession string) ([]*models.Profile, error)
}

// Uploader сохраняет загруженный файл и возвращает его адрес.
type Uploader interface {
	Put(ctx context.Context, field string, r io.Reader) (string, error)
	MaxSize() int64
}

// Handler обрабатывает запросы к профилям специалистов.
type Handler struct {
	log      *slog.Logger
	svc      Service
	uploader Uploader
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, svc Service, uploader Uploader) *Handler {
	return &Handler{log: log, svc: svc, uploader: uploader}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Submit godoc
// @Summary Подача заявки на верификацию
// @Description Принимает multipart-форму с полями профиля и документами aadharCard, voterId, profilePhoto (JPEG, PNG, GIF или PDF до 10 МБ).
// @Tags Profiles
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Success 201 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Заявка уже на проверке или профиль подтверждён"
// @Failure 422 {object} response.ErrorResponse "Нет документа личности или недопустимый файл"
// @Router /profiles [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profiles.Submit"
	log := h.logger(r, op)
	caller := middlewarectx.CallerFrom(r.Context())

	// документы не загружаются, если заявка заведомо будет отклонена
	if err := h.checkResubmittable(r.Context(), caller); err != nil {
		response.FromError(w, r, log, err)
		return
	}

	// три файла и поля формы
	limit := 3*h.uploader.MaxSize() + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		response.FromError(w, r, log, apperr.Wrap(apperr.KindValidation, op, "invalid multipart form", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	fields, err := parseFields(r.MultipartForm)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	docs, err := h.upload(r.Context(), r.MultipartForm)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	profile, err := h.svc.Submit(r.Context(), caller, fields, docs)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	log.Info("verification request submitted", slog.String("profile_id", profile.ID))
	response.OK(w, r, http.StatusCreated, profile)
}

func (h *Handler) checkResubmittable(ctx context.Context, caller models.Caller) error {
	const op = "handlers.profiles.checkResubmittable"
	existing, err := h.svc.Mine(ctx, caller)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	switch existing.Status {
	case models.ProfilePending:
		return apperr.New(apperr.KindConflict, op, "verification request is already pending")
	case models.ProfileVerified:
		return apperr.New(apperr.KindConflict, op, "profile is already verified")
	}
	return nil
}

func parseFields(form *multipart.Form) (models.ProfileFields, error) {
	const op = "handlers.profiles.parseFields"
	get := func(name string) string {
		if v := form.Value[name]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	fields := models.ProfileFields{
		Profession: get("profession"),
		City:       get("city"),
		Pincode:    get("pincode"),
		State:      get("state"),
		Address:    get("address"),
		Mobile:     get("mobile"),
		Gender:     get("gender"),
	}
	if raw := get("experience"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fields, apperr.Wrap(apperr.KindValidation, op, "experience must be a number", err)
		}
		fields.Experience = n
	}
	return fields, nil
}

func (h *Handler) upload(ctx context.Context, form *multipart.Form) (models.ProfileDocuments, error) {
	var docs models.ProfileDocuments
	targets := map[string]*string{
		blobstore.FieldAadharCard:   &docs.AadharCard,
		blobstore.FieldVoterID:      &docs.VoterID,
		blobstore.FieldProfilePhoto: &docs.ProfilePhoto,
	}
	for field, dst := range targets {
		files := form.File[field]
		if len(files) == 0 {
			continue
		}
		url, err := h.put(ctx, field, files[0])
		if err != nil {
			return docs, err
		}
		*dst = url
	}
	return docs, nil
}

func (h *Handler) put(ctx context.Context, field string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("handlers.profiles.put: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return h.uploader.Put(ctx, field, f)
}

// Mine возвращает профиль вызывающего.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.profiles.Mine")
	profile, err := h.svc.Mine(r.Context(), middlewarectx.CallerFrom(r.Context()))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, profile)
}

// Search godoc
// @Summary Поиск подтверждённых специалистов
// @Tags Profiles
// @Produce json
// @Param city query string false "Город"
// @Param profession query string false "Профессия"
// @Success 200 {object} response.Response
// @Router /profiles/verified [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.profiles.Search")
	q := r.URL.Query()
	list, err := h.svc.SearchVerified(r.Context(), q.Get("city"), q.Get("profession"))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, list)
}

// Get возвращает профиль по идентификатору.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.profiles.Get")
	profile, err := h.svc.Get(r.Context(), middlewarectx.CallerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, profile)
}

// ListPending возвращает профили на проверке.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.profiles.ListPending")
	list, err := h.svc.ListPending(r.Context(), middlewarectx.CallerFrom(r.Context()))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, list)
}

// ListAll возвращает все профили.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.profiles.ListAll")
	list, err := h.svc.ListAll(r.Context(), middlewarectx.CallerFrom(r.Context()))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, list)
}

// Verify godoc
// @Summary Подтверждение профиля
// @Tags Superadmin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID профиля"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Профиль не на проверке"
// @Failure 500 {object} response.ErrorResponse "Переход применён частично"
// @Router /superadmin/profiles/{id}/verify [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.profiles.Verify")
	profile, err := h.svc.Verify(r.Context(), middlewarectx.CallerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, profile)
}

// Reject godoc
// @Summary Отклонение профиля
// @Tags Superadmin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID профиля"
// @Success 200 {object} response.Response
// @Router /superadmin/profiles/{id}/reject [post]
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.profiles.Reject")
	profile, err := h.svc.Reject(r.Context(), middlewarectx.CallerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, profile)
}

// Delete удаляет профиль и возвращает владельцу роль user.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.profiles.Delete")
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), middlewarectx.CallerFrom(r.Context()), id); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, map[string]any{"message": "profile deleted", "id": id})
}
