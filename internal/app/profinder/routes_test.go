package profinder

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/profinder/internal/config"
	"github.com/magabrotheeeer/profinder/internal/lib/jwt"
	"github.com/magabrotheeeer/profinder/internal/metrics"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newRouter(t *testing.T) *chi.Mux {
	t.Helper()
	r := chi.NewRouter()
	RegisterRoutes(r, newNoopLogger(), config.HTTPServer{RateLimit: 100, RateBurst: 100},
		jwt.NewJWTMaker("secret", time.Hour), Handlers{Metrics: metrics.New().Handler()})
	return r
}

func TestRegisterRoutes_Table(t *testing.T) {
	var got []string
	err := chi.Walk(newRouter(t), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		got = append(got, method+" "+strings.TrimSuffix(route, "/"))
		return nil
	})
	require.NoError(t, err)

	want := []string{
		"POST /api/v1/register",
		"POST /api/v1/login",
		"POST /api/v1/otp/send",
		"POST /api/v1/otp/verify",
		"POST /api/v1/password/forgot",
		"POST /api/v1/password/reset",
		"POST /api/v1/password/change",
		"POST /api/v1/contact",
		"GET /api/v1/profiles/verified",
		"GET /api/v1/professionals/{id}/rating",
		"POST /api/v1/profiles",
		"GET /api/v1/profiles/me",
		"GET /api/v1/superadmin/profiles/pending",
		"POST /api/v1/superadmin/profiles/{id}/verify",
		"POST /api/v1/superadmin/profiles/{id}/reject",
		"DELETE /api/v1/superadmin/profiles/{id}",
		"GET /api/v1/superadmin/users",
		"GET /api/v1/superadmin/admins",
		"GET /api/v1/superadmin/stats",
		"GET /api/v1/superadmin/contact",
		"GET /api/v1/superadmin/contact/{id}",
		"PATCH /api/v1/superadmin/contact/{id}",
		"DELETE /api/v1/superadmin/contact/{id}",
		"POST /api/v1/engagements",
		"GET /api/v1/engagements",
		"GET /api/v1/engagements/{id}",
		"PUT /api/v1/engagements/{id}/response",
		"PUT /api/v1/engagements/{id}/status",
		"POST /api/v1/engagements/{id}/rating",
		"GET /api/v1/subscription",
		"POST /api/v1/subscription/pro",
		"GET /api/v1/payments",
		"POST /api/v1/payments",
		"GET /api/v1/notifications",
		"POST /api/v1/notifications/{id}/read",
		"GET /metrics",
	}
	for _, route := range want {
		assert.Contains(t, got, route)
	}
}

func TestRegisterRoutes_ProtectedNeedToken(t *testing.T) {
	r := newRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/engagements"},
		{http.MethodGet, "/api/v1/superadmin/profiles/pending"},
		{http.MethodPost, "/api/v1/subscription/pro"},
		{http.MethodGet, "/api/v1/notifications"},
		{http.MethodPost, "/api/v1/password/change"},
		{http.MethodGet, "/api/v1/superadmin/stats"},
		{http.MethodDelete, "/api/v1/superadmin/contact/c1"},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestRegisterRoutes_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
