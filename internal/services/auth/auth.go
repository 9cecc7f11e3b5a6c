// Package auth содержит регистрацию, вход и одноразовые коды подтверждения.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/lib/jwt"
	"github.com/magabrotheeeer/profinder/internal/lib/password"
	"github.com/magabrotheeeer/profinder/internal/lib/sl"
	"github.com/magabrotheeeer/profinder/internal/models"
)

const (
	otpKeyPrefix   = "otp:"
	resetKeyPrefix = "reset:"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя и возвращает его ID.
	CreateUser(ctx context.Context, user models.User) (string, error)

	// GetUserByEmail возвращает пользователя по email или apperr.ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUser возвращает пользователя по UID или apperr.ErrNotFound.
	GetUser(ctx context.Context, uid string) (*models.User, error)

	// EnsureSuperadmin создаёт или обновляет учётную запись суперадминистратора.
	EnsureSuperadmin(ctx context.Context, user models.User) (string, error)

	// UpdatePassword заменяет хеш пароля пользователя.
	UpdatePassword(ctx context.Context, uid, passwordHash string) error
}

// CodeStore хранит одноразовые коды с ограниченным временем жизни.
type CodeStore interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Take(ctx context.Context, key string, result any) (bool, error)
}

// Mailer ставит письмо в очередь отправки.
type Mailer interface {
	EnqueueMail(ctx context.Context, msg models.MailMessage) error
}

type otpEntry struct {
	Code string `json:"code"`
}

// Service отвечает за регистрацию, вход и одноразовые коды.
type Service struct {
	users    UserRepository
	codes    CodeStore
	mailer   Mailer
	jwtMaker jwt.Maker
	log      *slog.Logger
	validate *validator.Validate
	otpTTL   time.Duration
}

// New создаёт сервис аутентификации.
func New(users UserRepository, codes CodeStore, mailer Mailer, jwtMaker jwt.Maker, log *slog.Logger, otpTTL time.Duration) *Service {
	return &Service{
		users:    users,
		codes:    codes,
		mailer:   mailer,
		jwtMaker: jwtMaker,
		log:      log,
		validate: validator.New(),
		otpTTL:   otpTTL,
	}
}

// Register создаёт пользователя с ролью user. Занятый email даёт apperr.ErrConflict.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (string, error) {
	const op = "auth.Register"
	if err := s.validate.Struct(req); err != nil {
		return "", apperr.Wrap(apperr.KindValidation, op, "name, valid email and password of 8+ characters are required", err)
	}
	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return s.users.CreateUser(ctx, models.User{
		Name:         req.Name,
		Email:        normalizeEmail(req.Email),
		PasswordHash: hashed,
		Role:         models.RoleUser,
	})
}

// Login проверяет пароль и выдаёт JWT с идентификатором и ролью пользователя.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (string, *models.User, error) {
	const op = "auth.Login"
	if err := s.validate.Struct(req); err != nil {
		return "", nil, apperr.Wrap(apperr.KindValidation, op, "email and password are required", err)
	}
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil, apperr.New(apperr.KindUnauthenticated, op, "invalid credentials")
	}
	if err != nil {
		return "", nil, err
	}
	if err := password.CompareHash(user.PasswordHash, req.Password); err != nil {
		return "", nil, apperr.Wrap(apperr.KindUnauthenticated, op, "invalid credentials", err)
	}
	token, err := s.jwtMaker.GenerateToken(user.UID, string(user.Role))
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// SendOTP генерирует шестизначный код, сохраняет его с TTL и отправляет письмом.
// Новый код заменяет предыдущий.
func (s *Service) SendOTP(ctx context.Context, email string) error {
	const op = "auth.SendOTP"
	if err := s.validate.Var(email, "required,email"); err != nil {
		return apperr.Wrap(apperr.KindValidation, op, "valid email is required", err)
	}
	return s.issueCode(ctx, op, otpKeyPrefix, normalizeEmail(email), "Profinder Verification",
		"Your verification code is %s. It expires in %d minutes.")
}

// VerifyOTP проверяет код. Любая попытка расходует код: повторная проверка
// того же кода даёт apperr.ErrValidation.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	const op = "auth.VerifyOTP"
	if err := s.validate.Var(email, "required,email"); err != nil {
		return apperr.Wrap(apperr.KindValidation, op, "valid email is required", err)
	}
	return s.takeCode(ctx, op, otpKeyPrefix, normalizeEmail(email), code)
}

// ForgotPassword отправляет код сброса пароля на email учётной записи.
// Для неизвестного адреса письмо не отправляется, а ответ не отличается от успешного.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	const op = "auth.ForgotPassword"
	if err := s.validate.Var(email, "required,email"); err != nil {
		return apperr.Wrap(apperr.KindValidation, op, "valid email is required", err)
	}
	email = normalizeEmail(email)

	_, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		s.log.Info("password reset requested for unknown email", slog.String("op", op))
		return nil
	}
	if err != nil {
		return err
	}
	return s.issueCode(ctx, op, resetKeyPrefix, email, "Profinder Password Reset",
		"Your password reset code is %s. It expires in %d minutes.")
}

// ResetPassword проверяет код сброса и задаёт новый пароль.
// Код одноразовый и не подходит для проверки OTP, и наоборот.
func (s *Service) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	const op = "auth.ResetPassword"
	if err := s.validate.Struct(req); err != nil {
		return apperr.Wrap(apperr.KindValidation, op, "email, code and new password of 8+ characters are required", err)
	}
	email := normalizeEmail(req.Email)
	if err := s.takeCode(ctx, op, resetKeyPrefix, email, req.Code); err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, op, user.UID, req.NewPassword); err != nil {
		return err
	}
	s.log.Info("password reset", slog.String("op", op), slog.String("uid", user.UID))
	return nil
}

// ChangePassword меняет пароль вызывающего после проверки текущего.
func (s *Service) ChangePassword(ctx context.Context, caller models.Caller, req models.ChangePasswordRequest) error {
	const op = "auth.ChangePassword"
	if caller.SubjectID == "" {
		return apperr.New(apperr.KindUnauthenticated, op, "authentication required")
	}
	if err := s.validate.Struct(req); err != nil {
		return apperr.Wrap(apperr.KindValidation, op, "current password and new password of 8+ characters are required", err)
	}

	user, err := s.users.GetUser(ctx, caller.SubjectID)
	if err != nil {
		return err
	}
	if err := password.CompareHash(user.PasswordHash, req.CurrentPassword); err != nil {
		return apperr.Wrap(apperr.KindValidation, op, "current password is incorrect", err)
	}
	if err := s.setPassword(ctx, op, user.UID, req.NewPassword); err != nil {
		return err
	}
	s.log.Info("password changed", slog.String("op", op), slog.String("uid", user.UID))
	return nil
}

func (s *Service) setPassword(ctx context.Context, op, uid, raw string) error {
	hashed, err := password.GetHash(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.users.UpdatePassword(ctx, uid, hashed)
}

// issueCode сохраняет новый код под prefix+email и ставит письмо с ним в очередь.
// body содержит два глагола формата: код и срок жизни в минутах.
func (s *Service) issueCode(ctx context.Context, op, prefix, email, subject, body string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.codes.Set(ctx, prefix+email, otpEntry{Code: code}, s.otpTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.mailer.EnqueueMail(ctx, models.MailMessage{
		To:      email,
		Subject: subject,
		Body:    fmt.Sprintf(body, code, int(s.otpTTL.Minutes())),
	})
	if err != nil {
		s.log.Error("failed to enqueue code mail", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: failed to send code: %w", op, err)
	}
	return nil
}

// takeCode забирает код под prefix+email и сравнивает его с присланным.
func (s *Service) takeCode(ctx context.Context, op, prefix, email, code string) error {
	var entry otpEntry
	found, err := s.codes.Take(ctx, prefix+email, &entry)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !found || subtle.ConstantTimeCompare([]byte(entry.Code), []byte(strings.TrimSpace(code))) != 1 {
		return apperr.New(apperr.KindValidation, op, "invalid or expired code")
	}
	return nil
}

// EnsureSuperadmin создаёт учётную запись суперадминистратора из конфигурации.
func (s *Service) EnsureSuperadmin(ctx context.Context, name, email, rawPassword string) (string, error) {
	const op = "auth.EnsureSuperadmin"
	if email == "" || rawPassword == "" {
		return "", apperr.New(apperr.KindValidation, op, "superadmin email and password are required")
	}
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return s.users.EnsureSuperadmin(ctx, models.User{
		Name:         name,
		Email:        normalizeEmail(email),
		PasswordHash: hashed,
		Role:         models.RoleSuperAdmin,
		Verified:     true,
	})
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
