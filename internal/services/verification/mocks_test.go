package verification

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/notification"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateProfile(ctx context.Context, userID string, fields models.ProfileFields, docs models.ProfileDocuments) (string, error) {
	args := m.Called(ctx, userID, fields, docs)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) ResubmitProfile(ctx context.Context, id string, fields models.ProfileFields, docs models.ProfileDocuments) error {
	args := m.Called(ctx, id, fields, docs)
	return args.Error(0)
}

func (m *MockRepository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockRepository) GetProfileByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockRepository) SetProfileStatus(ctx context.Context, id string, status models.ProfileStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockRepository) DeleteProfile(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListProfilesByStatus(ctx context.Context, status models.ProfileStatus) ([]*models.Profile, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Profile), args.Error(1)
}

func (m *MockRepository) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Profile), args.Error(1)
}

func (m *MockRepository) SearchVerified(ctx context.Context, city, profession string) ([]*models.Profile, error) {
	args := m.Called(ctx, city, profession)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Profile), args.Error(1)
}

func (m *MockRepository) GetUser(ctx context.Context, uid string) (*models.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) ListUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockRepository) SetUserRole(ctx context.Context, uid string, role models.Role, verified bool) error {
	args := m.Called(ctx, uid, role, verified)
	return args.Error(0)
}

func (m *MockRepository) SetUserDocuments(ctx context.Context, uid string, docs models.ProfileDocuments) error {
	args := m.Called(ctx, uid, docs)
	return args.Error(0)
}

func (m *MockRepository) ResetUserIdentity(ctx context.Context, uid string) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	args := m.Called(ctx, prefix)
	return args.Error(0)
}

// recordingNotifier запоминает уведомления вместо отправки.
type recordingNotifier struct {
	notices []notification.Notice
}

func (r *recordingNotifier) Notify(_ context.Context, n notification.Notice) {
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) NotifyAll(_ context.Context, recipients []string, n notification.Notice) {
	for _, id := range recipients {
		n.RecipientID = id
		r.notices = append(r.notices, n)
	}
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}
