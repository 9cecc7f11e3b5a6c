package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/profinder/internal/http/middlewarectx"
	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/models"
)

type MockService struct {
	mock.Mock
}

func contactResult(args mock.Arguments) (*models.ContactSubmission, error) {
	c, _ := args.Get(0).(*models.ContactSubmission)
	return c, args.Error(1)
}

func (m *MockService) Submit(ctx context.Context, req models.ContactRequest) (*models.ContactSubmission, error) {
	return contactResult(m.Called(ctx, req))
}

func (m *MockService) List(ctx context.Context, c models.Caller, status models.ContactStatus) ([]*models.ContactSubmission, error) {
	args := m.Called(ctx, c, status)
	l, _ := args.Get(0).([]*models.ContactSubmission)
	return l, args.Error(1)
}

func (m *MockService) Get(ctx context.Context, c models.Caller, id string) (*models.ContactSubmission, error) {
	return contactResult(m.Called(ctx, c, id))
}

func (m *MockService) Update(ctx context.Context, c models.Caller, id string, req models.UpdateContactRequest) (*models.ContactSubmission, error) {
	return contactResult(m.Called(ctx, c, id, req))
}

func (m *MockService) Delete(ctx context.Context, c models.Caller, id string) error {
	return m.Called(ctx, c, id).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var superadmin = models.Caller{SubjectID: "sa", Role: models.RoleSuperAdmin}

func serve(t *testing.T, svc *MockService, method, path, body string) (int, map[string]any) {
	t.Helper()
	h := New(newNoopLogger(), svc)
	r := chi.NewRouter()
	r.Post("/contact", h.Submit)
	r.Get("/superadmin/contact", h.List)
	r.Get("/superadmin/contact/{id}", h.Get)
	r.Patch("/superadmin/contact/{id}", h.Update)
	r.Delete("/superadmin/contact/{id}", h.Delete)

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req = req.WithContext(middlewarectx.WithCaller(req.Context(), superadmin))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	return rec.Code, got
}

func TestHandler_Submit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMocks func(*MockService)
		wantCode   int
		wantError  string
	}{
		{
			name: "received",
			body: `{"name":"Asha","email":"asha@example.com","subject":"Billing","message":"Charged twice"}`,
			setupMocks: func(s *MockService) {
				s.On("Submit", mock.Anything, models.ContactRequest{
					Name: "Asha", Email: "asha@example.com", Subject: "Billing", Message: "Charged twice",
				}).Return(&models.ContactSubmission{ID: "c1"}, nil).Once()
			},
			wantCode: http.StatusCreated,
		},
		{
			name:       "invalid body never reaches the service",
			body:       `{"name":"Asha","email":"asha"}`,
			setupMocks: func(_ *MockService) {},
			wantCode:   http.StatusUnprocessableEntity,
		},
		{
			name: "blank message rejected by the service",
			body: `{"name":"Asha","email":"asha@example.com","subject":"Billing","message":"  "}`,
			setupMocks: func(s *MockService) {
				s.On("Submit", mock.Anything, mock.Anything).
					Return(nil, apperr.New(apperr.KindValidation, "contact.Submit", "name, valid email, subject and message are required")).Once()
			},
			wantCode:  http.StatusUnprocessableEntity,
			wantError: "name, valid email, subject and message are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMocks(svc)

			code, got := serve(t, svc, http.MethodPost, "/contact", tt.body)

			assert.Equal(t, tt.wantCode, code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_Triage(t *testing.T) {
	svc := new(MockService)
	svc.On("List", mock.Anything, superadmin, models.ContactNew).
		Return([]*models.ContactSubmission{{ID: "c1"}}, nil).Once()
	svc.On("Update", mock.Anything, superadmin, "c1", models.UpdateContactRequest{Status: models.ContactResolved, SendEmail: true}).
		Return(&models.ContactSubmission{ID: "c1", Status: models.ContactResolved}, nil).Once()
	svc.On("Get", mock.Anything, superadmin, "c404").
		Return(nil, apperr.New(apperr.KindNotFound, "storage.GetContact", "contact submission not found")).Once()
	svc.On("Delete", mock.Anything, superadmin, "c1").Return(nil).Once()

	code, got := serve(t, svc, http.MethodGet, "/superadmin/contact?status=new", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, got["data"], 1)

	code, got = serve(t, svc, http.MethodPatch, "/superadmin/contact/c1", `{"status":"resolved","send_email":true}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "resolved", got["data"].(map[string]any)["status"])

	code, _ = serve(t, svc, http.MethodGet, "/superadmin/contact/c404", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = serve(t, svc, http.MethodDelete, "/superadmin/contact/c1", "")
	assert.Equal(t, http.StatusOK, code)
	svc.AssertExpectations(t)
}
