// Package profinder собирает HTTP API маркетплейса и gRPC-сервис проверки здоровья.
package profinder

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/profinder/internal/config"
	// Регистрация swagger-документа.
	_ "github.com/magabrotheeeer/profinder/internal/docs"
	"github.com/magabrotheeeer/profinder/internal/http/handlers/auth"
	"github.com/magabrotheeeer/profinder/internal/http/handlers/billing"
	"github.com/magabrotheeeer/profinder/internal/http/handlers/contact"
	"github.com/magabrotheeeer/profinder/internal/http/handlers/engagements"
	"github.com/magabrotheeeer/profinder/internal/http/handlers/notifications"
	"github.com/magabrotheeeer/profinder/internal/http/handlers/platform"
	"github.com/magabrotheeeer/profinder/internal/http/handlers/profiles"
	"github.com/magabrotheeeer/profinder/internal/http/middlewarectx"
)

// Handlers набор обработчиков, из которых собираются маршруты.
type Handlers struct {
	Auth          *auth.Handler
	Profiles      *profiles.Handler
	Engagements   *engagements.Handler
	Billing       *billing.Handler
	Notifications *notifications.Handler
	Platform      *platform.Handler
	Contact       *contact.Handler
	Metrics       http.Handler
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg config.HTTPServer, parser middlewarectx.TokenParser, h Handlers) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit, cfg.RateBurst))

		// Открытые конечные точки
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/otp/send", h.Auth.SendOTP)
		r.Post("/otp/verify", h.Auth.VerifyOTP)
		r.Post("/password/forgot", h.Auth.ForgotPassword)
		r.Post("/password/reset", h.Auth.ResetPassword)
		r.Post("/contact", h.Contact.Submit)
		r.Get("/profiles/verified", h.Profiles.Search)
		r.Get("/professionals/{id}/rating", h.Engagements.Rating)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(parser, logger))

			r.Post("/password/change", h.Auth.ChangePassword)

			r.Post("/profiles", h.Profiles.Submit)
			r.Get("/profiles/me", h.Profiles.Mine)
			r.Get("/profiles/{id}", h.Profiles.Get)

			r.Route("/superadmin/profiles", func(r chi.Router) {
				r.Get("/", h.Profiles.ListAll)
				r.Get("/pending", h.Profiles.ListPending)
				r.Post("/{id}/verify", h.Profiles.Verify)
				r.Post("/{id}/reject", h.Profiles.Reject)
				r.Delete("/{id}", h.Profiles.Delete)
			})
			r.Get("/superadmin/users", h.Platform.Users)
			r.Get("/superadmin/admins", h.Platform.Admins)
			r.Get("/superadmin/stats", h.Platform.Stats)
			r.Route("/superadmin/contact", func(r chi.Router) {
				r.Get("/", h.Contact.List)
				r.Get("/{id}", h.Contact.Get)
				r.Patch("/{id}", h.Contact.Update)
				r.Delete("/{id}", h.Contact.Delete)
			})

			r.Post("/engagements", h.Engagements.Create)
			r.Get("/engagements", h.Engagements.List)
			r.Get("/engagements/{id}", h.Engagements.Get)
			r.Put("/engagements/{id}/response", h.Engagements.Respond)
			r.Put("/engagements/{id}/status", h.Engagements.Advance)
			r.Post("/engagements/{id}/rating", h.Engagements.Rate)

			r.Get("/subscription", h.Billing.Subscription)
			r.Post("/subscription/pro", h.Billing.Upgrade)
			r.Get("/payments", h.Billing.Payments)
			r.Post("/payments", h.Billing.RecordPayment)

			r.Get("/notifications", h.Notifications.List)
			r.Post("/notifications/{id}/read", h.Notifications.MarkRead)
		})
	})

	r.Handle("/metrics", h.Metrics)
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
