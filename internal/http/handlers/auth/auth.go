// Package auth реализует HTTP-обработчики регистрации, входа, одноразовых кодов
// и смены пароля.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/profinder/internal/http/middlewarectx"
	"github.com/magabrotheeeer/profinder/internal/http/request"
	"github.com/magabrotheeeer/profinder/internal/http/response"
	"github.com/magabrotheeeer/profinder/internal/models"
)

// Service описывает бизнес-логику аутентификации.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (string, error)
	Login(ctx context.Context, req models.LoginRequest) (string, *models.User, error)
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error
	ChangePassword(ctx context.Context, caller models.Caller, req models.ChangePasswordRequest) error
}

// Handler обрабатывает запросы аутентификации.
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

// Register godoc
// @Summary Регистрация пользователя
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Данные пользователя"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Email уже занят"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.Register")

	var req models.RegisterRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}

	uid, err := h.svc.Register(r.Context(), req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("user registered", slog.String("uid", uid))
	response.OK(w, r, http.StatusCreated, map[string]any{"uid": uid})
}

// Login godoc
// @Summary Вход пользователя
// @Description Проверяет email и пароль, возвращает JWT с ролью пользователя.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Учетные данные"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Router /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.Login")

	var req models.LoginRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}

	token, user, err := h.svc.Login(r.Context(), req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("login success", slog.String("uid", user.UID))
	response.OK(w, r, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

// SendOTP godoc
// @Summary Отправка одноразового кода
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.OTPRequest true "Email"
// @Success 200 {object} response.Response
// @Router /otp/send [post]
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.SendOTP")

	var req models.OTPRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if err := h.svc.SendOTP(r.Context(), req.Email); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, map[string]any{"message": "OTP sent successfully"})
}

// VerifyOTP godoc
// @Summary Проверка одноразового кода
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.OTPRequest true "Email и код"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Неверный или истёкший код"
// @Router /otp/verify [post]
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.VerifyOTP")

	var req models.OTPRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if err := h.svc.VerifyOTP(r.Context(), req.Email, req.Code); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, map[string]any{"message": "OTP verified successfully"})
}

// ForgotPassword godoc
// @Summary Запрос кода сброса пароля
// @Description Отправляет код на email учётной записи. Ответ одинаков для известного и неизвестного адреса.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.OTPRequest true "Email"
// @Success 200 {object} response.Response
// @Router /password/forgot [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.ForgotPassword")

	var req models.OTPRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, map[string]any{"message": "if the account exists, a reset code has been sent"})
}

// ResetPassword godoc
// @Summary Сброс пароля по коду
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.ResetPasswordRequest true "Email, код и новый пароль"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Неверный или истёкший код"
// @Router /password/reset [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.ResetPassword")

	var req models.ResetPasswordRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	response.OK(w, r, http.StatusOK, map[string]any{"message": "password has been reset"})
}

// ChangePassword godoc
// @Summary Смена пароля
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ChangePasswordRequest true "Текущий и новый пароль"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Текущий пароль неверен"
// @Router /password/change [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.ChangePassword")

	var req models.ChangePasswordRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	caller := middlewarectx.CallerFrom(r.Context())
	if err := h.svc.ChangePassword(r.Context(), caller, req); err != nil {
		response.FromError(w, r, log, err)
		return
	}
	log.Info("password changed", slog.String("uid", caller.SubjectID))
	response.OK(w, r, http.StatusOK, map[string]any{"message": "password changed successfully"})
}
