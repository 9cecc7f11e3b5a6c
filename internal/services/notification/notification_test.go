package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/authz"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateNotification(ctx context.Context, n models.Notification) (string, error) {
	args := m.Called(ctx, n)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) ListNotifications(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error) {
	args := m.Called(ctx, recipientID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Notification), args.Error(1)
}

func (m *MockRepository) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	args := m.Called(ctx, id, recipientID)
	return args.Error(0)
}

func (m *MockRepository) GetUser(ctx context.Context, uid string) (*models.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) EnqueueMail(ctx context.Context, msg models.MailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestService_Notify(t *testing.T) {
	tests := []struct {
		name       string
		notice     Notice
		setupMocks func(*MockRepository, *MockMailer)
	}{
		{
			name: "inbox only",
			notice: Notice{
				RecipientID: "u1",
				Type:        models.NotifyAdminVerified,
				Title:       "Admin Verification Approved",
				Message:     "approved",
			},
			setupMocks: func(r *MockRepository, _ *MockMailer) {
				r.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
					return n.RecipientID == "u1" && n.RelatedEntityID == nil
				})).Return("n1", nil).Once()
			},
		},
		{
			name: "inbox and mail with known address",
			notice: Notice{
				RecipientID:     "u1",
				Type:            models.NotifyRefund,
				Title:           "Refund Processed",
				Message:         "credited",
				RelatedEntityID: "e1",
				Mail:            true,
				Email:           "user@example.com",
			},
			setupMocks: func(r *MockRepository, m *MockMailer) {
				r.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
					return n.RelatedEntityID != nil && *n.RelatedEntityID == "e1"
				})).Return("n1", nil).Once()
				m.On("EnqueueMail", mock.Anything, models.MailMessage{
					To: "user@example.com", Subject: "Refund Processed", Body: "credited",
				}).Return(nil).Once()
			},
		},
		{
			name:   "mail address resolved from user",
			notice: Notice{RecipientID: "u1", Title: "t", Message: "m", Mail: true},
			setupMocks: func(r *MockRepository, m *MockMailer) {
				r.On("CreateNotification", mock.Anything, mock.Anything).Return("n1", nil).Once()
				r.On("GetUser", mock.Anything, "u1").Return(&models.User{UID: "u1", Email: "u1@example.com"}, nil).Once()
				m.On("EnqueueMail", mock.Anything, mock.MatchedBy(func(msg models.MailMessage) bool {
					return msg.To == "u1@example.com"
				})).Return(nil).Once()
			},
		},
		{
			name:   "inbox failure still sends mail",
			notice: Notice{RecipientID: "u1", Title: "t", Message: "m", Mail: true, Email: "a@b.c"},
			setupMocks: func(r *MockRepository, m *MockMailer) {
				r.On("CreateNotification", mock.Anything, mock.Anything).Return("", errors.New("db down")).Once()
				m.On("EnqueueMail", mock.Anything, mock.Anything).Return(nil).Once()
			},
		},
		{
			name:   "mail failure is swallowed",
			notice: Notice{RecipientID: "u1", Title: "t", Message: "m", Mail: true, Email: "a@b.c"},
			setupMocks: func(r *MockRepository, m *MockMailer) {
				r.On("CreateNotification", mock.Anything, mock.Anything).Return("n1", nil).Once()
				m.On("EnqueueMail", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
			},
		},
		{
			name:   "unknown recipient skips mail",
			notice: Notice{RecipientID: "u1", Title: "t", Message: "m", Mail: true},
			setupMocks: func(r *MockRepository, _ *MockMailer) {
				r.On("CreateNotification", mock.Anything, mock.Anything).Return("n1", nil).Once()
				r.On("GetUser", mock.Anything, "u1").Return(nil, apperr.ErrNotFound).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			mailer := new(MockMailer)
			tt.setupMocks(repo, mailer)

			svc := New(repo, mailer, authz.New(nil), nil, newNoopLogger())
			assert.NotPanics(t, func() { svc.Notify(context.Background(), tt.notice) })

			repo.AssertExpectations(t)
			mailer.AssertExpectations(t)
		})
	}
}

func TestService_NotifyWithoutMailer(t *testing.T) {
	repo := new(MockRepository)
	repo.On("CreateNotification", mock.Anything, mock.Anything).Return("n1", nil).Once()

	svc := New(repo, nil, authz.New(nil), nil, newNoopLogger())
	svc.Notify(context.Background(), Notice{RecipientID: "u1", Mail: true, Email: "a@b.c"})

	repo.AssertExpectations(t)
}

func TestService_NotifyAll(t *testing.T) {
	repo := new(MockRepository)
	repo.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.RecipientID == "s1"
	})).Return("n1", nil).Once()
	repo.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.RecipientID == "s2"
	})).Return("", errors.New("db down")).Once()

	svc := New(repo, nil, authz.New(nil), nil, newNoopLogger())
	svc.NotifyAll(context.Background(), []string{"s1", "s2"}, Notice{Type: models.NotifyVerificationRequest})

	repo.AssertExpectations(t)
}

func TestService_List(t *testing.T) {
	caller := models.Caller{SubjectID: "u1", Role: models.RoleUser}

	t.Run("limit is clamped", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("ListNotifications", mock.Anything, "u1", DefaultLimit).
			Return([]*models.Notification{{ID: "n1"}}, nil).Once()

		svc := New(repo, nil, authz.New(nil), nil, newNoopLogger())
		got, err := svc.List(context.Background(), caller, 1000)

		require.NoError(t, err)
		assert.Len(t, got, 1)
		repo.AssertExpectations(t)
	})

	t.Run("anonymous caller", func(t *testing.T) {
		svc := New(new(MockRepository), nil, authz.New(nil), nil, newNoopLogger())
		_, err := svc.List(context.Background(), models.Caller{}, 10)
		assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	})
}

func TestService_MarkRead(t *testing.T) {
	repo := new(MockRepository)
	repo.On("MarkNotificationRead", mock.Anything, "n1", "u1").Return(nil).Once()
	repo.On("MarkNotificationRead", mock.Anything, "n2", "u1").Return(apperr.ErrNotFound).Once()

	svc := New(repo, nil, authz.New(nil), nil, newNoopLogger())
	caller := models.Caller{SubjectID: "u1", Role: models.RoleAdmin}

	require.NoError(t, svc.MarkRead(context.Background(), caller, "n1"))
	assert.ErrorIs(t, svc.MarkRead(context.Background(), caller, "n2"), apperr.ErrNotFound)
	repo.AssertExpectations(t)
}
