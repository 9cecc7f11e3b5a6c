package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/profinder/internal/http/middlewarectx"
	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/subscription"
)

type MockPlans struct {
	mock.Mock
}

func (m *MockPlans) GetSubscription(ctx context.Context, c models.Caller) (*models.Subscription, error) {
	args := m.Called(ctx, c)
	s, _ := args.Get(0).(*models.Subscription)
	return s, args.Error(1)
}

func (m *MockPlans) UpgradeToPro(ctx context.Context, c models.Caller) (*subscription.Upgrade, error) {
	args := m.Called(ctx, c)
	u, _ := args.Get(0).(*subscription.Upgrade)
	return u, args.Error(1)
}

type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) Record(ctx context.Context, c models.Caller, req models.RecordPaymentRequest) (*models.Payment, error) {
	args := m.Called(ctx, c, req)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Error(1)
}

func (m *MockPayments) ListMine(ctx context.Context, c models.Caller) ([]*models.Payment, error) {
	args := m.Called(ctx, c)
	l, _ := args.Get(0).([]*models.Payment)
	return l, args.Error(1)
}

func (m *MockPayments) ListAll(ctx context.Context, c models.Caller) ([]*models.Payment, error) {
	args := m.Called(ctx, c)
	l, _ := args.Get(0).([]*models.Payment)
	return l, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var (
	professional = models.Caller{SubjectID: "pu1", Role: models.RoleAdmin}
	superadmin   = models.Caller{SubjectID: "sa", Role: models.RoleSuperAdmin}
)

func call(t *testing.T, fn http.HandlerFunc, caller models.Caller, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req = req.WithContext(middlewarectx.WithCaller(req.Context(), caller))
	rec := httptest.NewRecorder()
	fn(rec, req)
	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	return rec.Code, got
}

func TestHandler_Upgrade(t *testing.T) {
	plans := new(MockPlans)
	plans.On("UpgradeToPro", mock.Anything, professional).Return(&subscription.Upgrade{
		Subscription: models.Subscription{Plan: models.PlanPro},
		Period:       &models.PlanSubscription{ID: "ps1", PlanName: "pro"},
	}, nil).Once()
	plans.On("UpgradeToPro", mock.Anything, professional).
		Return(nil, apperr.New(apperr.KindConflict, "subscription.UpgradeToPro", "plan is already pro")).Once()
	h := New(newNoopLogger(), plans, new(MockPayments))

	code, got := call(t, h.Upgrade, professional, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pro", got["data"].(map[string]any)["subscription"].(map[string]any)["plan"])

	code, got = call(t, h.Upgrade, professional, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "plan is already pro", got["error"])
	plans.AssertExpectations(t)
}

func TestHandler_Subscription(t *testing.T) {
	plans := new(MockPlans)
	plans.On("GetSubscription", mock.Anything, professional).
		Return(&models.Subscription{Plan: models.PlanTrial, Usage: 7}, nil).Once()

	code, got := call(t, New(newNoopLogger(), plans, new(MockPayments)).Subscription, professional, "")

	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 7, got["data"].(map[string]any)["usage"])
}

func TestHandler_Payments(t *testing.T) {
	tests := []struct {
		name       string
		caller     models.Caller
		setupMocks func(*MockPayments)
		wantLen    int
	}{
		{
			name:   "own payments",
			caller: professional,
			setupMocks: func(p *MockPayments) {
				p.On("ListMine", mock.Anything, professional).Return([]*models.Payment{{ID: "1"}}, nil).Once()
			},
			wantLen: 1,
		},
		{
			name:   "superadmin sees the ledger",
			caller: superadmin,
			setupMocks: func(p *MockPayments) {
				p.On("ListAll", mock.Anything, superadmin).Return([]*models.Payment{{ID: "1"}, {ID: "2"}}, nil).Once()
			},
			wantLen: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := new(MockPayments)
			tt.setupMocks(payments)

			code, got := call(t, New(newNoopLogger(), new(MockPlans), payments).Payments, tt.caller, "")

			assert.Equal(t, http.StatusOK, code)
			assert.Len(t, got["data"], tt.wantLen)
			payments.AssertExpectations(t)
		})
	}
}

func TestHandler_RecordPayment(t *testing.T) {
	payments := new(MockPayments)
	payments.On("Record", mock.Anything, professional, models.RecordPaymentRequest{
		EngagementID: "e1", Amount: 50000, Status: models.PaymentSuccess, ProviderRef: "rzp_1",
	}).Return(&models.Payment{ID: "pay1"}, nil).Once()
	h := New(newNoopLogger(), new(MockPlans), payments)

	code, _ := call(t, h.RecordPayment, professional,
		`{"engagement_id":"e1","amount":50000,"status":"success","provider_ref":"rzp_1"}`)
	assert.Equal(t, http.StatusCreated, code)

	code, got := call(t, h.RecordPayment, professional, `{"amount":0,"status":"success","provider_ref":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "validation", got["kind"])
	payments.AssertExpectations(t)
}
