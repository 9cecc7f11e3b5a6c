package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/profinder/internal/config"
	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/metrics"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/notification"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindOverdue(ctx context.Context, now time.Time) ([]*models.Engagement, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Engagement), args.Error(1)
}

func (m *MockRepository) FindRefundable(ctx context.Context, cutoff time.Time) ([]*models.Engagement, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Engagement), args.Error(1)
}

func (m *MockRepository) RefundEngagement(ctx context.Context, id string, now time.Time) (*models.RefundInfo, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefundInfo), args.Error(1)
}

func (m *MockRepository) FindActivePlanSubscriptions(ctx context.Context) ([]*models.PlanSubscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PlanSubscription), args.Error(1)
}

func (m *MockRepository) MarkReminded(ctx context.Context, id string, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) FindStatusDivergence(ctx context.Context) ([]models.ProfileIdentity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ProfileIdentity), args.Error(1)
}

func (m *MockRepository) FindOrphanedIdentities(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRepository) SetUserRole(ctx context.Context, uid string, role models.Role, verified bool) error {
	args := m.Called(ctx, uid, role, verified)
	return args.Error(0)
}

func (m *MockRepository) ResetUserIdentity(ctx context.Context, uid string) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

func (m *MockRepository) GetUser(ctx context.Context, uid string) (*models.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notification.Notice
}

func (r *recordingNotifier) Notify(_ context.Context, n notification.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) types() []models.NotificationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.NotificationType, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.Type)
	}
	return out
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var now = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func newService(repo *MockRepository, n *recordingNotifier) *Service {
	s := New(repo, n, metrics.New(), newNoopLogger(),
		config.Lifecycle{RefundWindow: 30 * 24 * time.Hour},
		config.Scheduler{SchedulerInterval: time.Hour})
	s.now = func() time.Time { return now }
	return s
}

func TestService_Overdue(t *testing.T) {
	end := now.Add(-48 * time.Hour)
	overdue := []*models.Engagement{
		{ID: "e1", UserID: "u1", ProfessionalID: "p1", Status: models.EngagementApproved, EndDate: &end},
		{ID: "e2", UserID: "ghost", ProfessionalID: "p1", Status: models.EngagementApproved, EndDate: &end},
	}

	tests := []struct {
		name       string
		setupMocks func(*MockRepository)
		want       Result
		wantTypes  []models.NotificationType
		wantErr    bool
	}{
		{
			name: "notifies both sides and continues past missing user",
			setupMocks: func(r *MockRepository) {
				r.On("FindOverdue", mock.Anything, now).Return(overdue, nil).Once()
				r.On("GetUser", mock.Anything, "u1").Return(&models.User{UID: "u1", Name: "Asha", Email: "asha@example.com"}, nil).Once()
				r.On("GetProfile", mock.Anything, "p1").Return(&models.Profile{ID: "p1", UserID: "pu1"}, nil).Once()
				r.On("GetUser", mock.Anything, "pu1").Return(&models.User{UID: "pu1", Name: "Ravi", Email: "ravi@example.com"}, nil).Once()
				r.On("GetUser", mock.Anything, "ghost").Return(nil, apperr.ErrNotFound).Once()
			},
			want:      Result{Processed: 1, Skipped: 1},
			wantTypes: []models.NotificationType{models.NotifyServiceDelay, models.NotifyAccountWarning},
		},
		{
			name: "nothing overdue",
			setupMocks: func(r *MockRepository) {
				r.On("FindOverdue", mock.Anything, now).Return([]*models.Engagement{}, nil).Once()
			},
			wantTypes: []models.NotificationType{},
		},
		{
			name: "query failure",
			setupMocks: func(r *MockRepository) {
				r.On("FindOverdue", mock.Anything, now).Return(nil, errors.New("db down")).Once()
			},
			wantTypes: []models.NotificationType{},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			notifier := &recordingNotifier{}
			tt.setupMocks(repo)

			res, err := newService(repo, notifier).Overdue(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, res)
			assert.Equal(t, tt.wantTypes, notifier.types())
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Refunds(t *testing.T) {
	cutoff := now.Add(-30 * 24 * time.Hour)
	items := []*models.Engagement{{ID: "e1"}, {ID: "e2"}, {ID: "e3"}}

	repo := new(MockRepository)
	repo.On("FindRefundable", mock.Anything, cutoff).Return(items, nil).Once()
	repo.On("RefundEngagement", mock.Anything, "e1", now).
		Return(nil, errors.New("tx aborted")).Once()
	repo.On("RefundEngagement", mock.Anything, "e2", now).
		Return(nil, apperr.New(apperr.KindConflict, "storage.RefundEngagement", "engagement is not refundable")).Once()
	repo.On("RefundEngagement", mock.Anything, "e3", now).
		Return(&models.RefundInfo{EngagementID: "e3", UserID: "u1", Amount: 150050}, nil).Once()
	repo.On("GetUser", mock.Anything, "u1").Return(&models.User{UID: "u1", Name: "Asha"}, nil).Once()
	notifier := &recordingNotifier{}

	res, err := newService(repo, notifier).Refunds(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1, Skipped: 1, Failed: 1}, res)
	require.Len(t, notifier.notices, 1)
	n := notifier.notices[0]
	assert.Equal(t, models.NotifyRefund, n.Type)
	assert.Equal(t, "u1", n.RecipientID)
	assert.Equal(t, "e3", n.RelatedEntityID)
	assert.True(t, n.Mail)
	assert.Equal(t, "Hello Asha, your refund of ₹1500.50 has been credited to your account.", n.Message)
	repo.AssertExpectations(t)
}

func TestService_PlanExpiry(t *testing.T) {
	sub := func(id string, end time.Time) *models.PlanSubscription {
		return &models.PlanSubscription{
			ID: id, ProfessionalID: "p-" + id, PlanName: "pro", EndDate: end,
			UserID: "u-" + id, Email: id + "@example.com", Name: "Owner " + id,
		}
	}

	tests := []struct {
		name       string
		subs       []*models.PlanSubscription
		setupMocks func(*MockRepository)
		want       Result
		wantTypes  []models.NotificationType
	}{
		{
			name: "reminds one day before expiry",
			subs: []*models.PlanSubscription{sub("s1", now.Add(20*time.Hour))},
			setupMocks: func(r *MockRepository) {
				r.On("MarkReminded", mock.Anything, "s1", now).Return(true, nil).Once()
			},
			want:      Result{Processed: 1},
			wantTypes: []models.NotificationType{models.NotifyPlanReminder},
		},
		{
			name: "reminder is sent once",
			subs: []*models.PlanSubscription{sub("s1", now.Add(20*time.Hour))},
			setupMocks: func(r *MockRepository) {
				r.On("MarkReminded", mock.Anything, "s1", now).Return(false, nil).Once()
			},
			want:      Result{Skipped: 1},
			wantTypes: []models.NotificationType{},
		},
		{
			name: "expires past end date",
			subs: []*models.PlanSubscription{sub("s2", now.Add(-time.Hour))},
			setupMocks: func(r *MockRepository) {
				r.On("MarkExpired", mock.Anything, "s2").Return(true, nil).Once()
			},
			want:      Result{Processed: 1},
			wantTypes: []models.NotificationType{models.NotifyPlanExpired},
		},
		{
			name: "already expired by a concurrent run",
			subs: []*models.PlanSubscription{sub("s2", now.Add(-time.Hour))},
			setupMocks: func(r *MockRepository) {
				r.On("MarkExpired", mock.Anything, "s2").Return(false, nil).Once()
			},
			want:      Result{Skipped: 1},
			wantTypes: []models.NotificationType{},
		},
		{
			name: "failure on one plan does not stop the others",
			subs: []*models.PlanSubscription{
				sub("s2", now.Add(-time.Hour)),
				sub("s3", now.Add(10*24*time.Hour)),
				sub("s1", now.Add(20*time.Hour)),
			},
			setupMocks: func(r *MockRepository) {
				r.On("MarkExpired", mock.Anything, "s2").Return(false, errors.New("db down")).Once()
				r.On("MarkReminded", mock.Anything, "s1", now).Return(true, nil).Once()
			},
			want:      Result{Processed: 1, Skipped: 1, Failed: 1},
			wantTypes: []models.NotificationType{models.NotifyPlanReminder},
		},
		{
			name:       "no contact email",
			subs:       []*models.PlanSubscription{{ID: "s4", EndDate: now.Add(-time.Hour)}},
			setupMocks: func(_ *MockRepository) {},
			want:       Result{Skipped: 1},
			wantTypes:  []models.NotificationType{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			repo.On("FindActivePlanSubscriptions", mock.Anything).Return(tt.subs, nil).Once()
			tt.setupMocks(repo)
			notifier := &recordingNotifier{}

			res, err := newService(repo, notifier).PlanExpiry(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
			assert.Equal(t, tt.wantTypes, notifier.types())
			repo.AssertExpectations(t)
		})
	}
}

func TestService_PlanExpiry_Messages(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindActivePlanSubscriptions", mock.Anything).Return([]*models.PlanSubscription{
		{ID: "s1", ProfessionalID: "p1", PlanName: "pro", EndDate: now.Add(-time.Minute), UserID: "u1", Email: "ravi@example.com", Name: "Ravi"},
	}, nil).Once()
	repo.On("MarkExpired", mock.Anything, "s1").Return(true, nil).Once()
	notifier := &recordingNotifier{}

	_, err := newService(repo, notifier).PlanExpiry(context.Background())

	require.NoError(t, err)
	require.Len(t, notifier.notices, 1)
	n := notifier.notices[0]
	assert.Equal(t, "Subscription Expired", n.Title)
	assert.Equal(t, "Hello Ravi, your pro plan has expired. Please renew to continue using premium features.", n.Message)
	assert.Equal(t, "ravi@example.com", n.Email)
	assert.Equal(t, "u1", n.RecipientID)
}

func TestService_Reconcile(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindStatusDivergence", mock.Anything).Return([]models.ProfileIdentity{
		{ProfileID: "p1", UserID: "u1", Status: models.ProfileVerified, UserRole: models.RoleUser},
		{ProfileID: "p2", UserID: "u2", Status: models.ProfileRejected, UserRole: models.RoleAdmin, UserVerified: true},
		{ProfileID: "p3", UserID: "u3", Status: models.ProfilePending, UserRole: models.RoleUser, UserVerified: true},
	}, nil).Once()
	repo.On("SetUserRole", mock.Anything, "u1", models.RoleAdmin, true).Return(nil).Once()
	repo.On("SetUserRole", mock.Anything, "u2", models.RoleUser, false).Return(nil).Once()
	repo.On("SetUserRole", mock.Anything, "u3", models.RoleUser, false).Return(errors.New("db down")).Once()
	repo.On("FindOrphanedIdentities", mock.Anything).Return([]string{"u4", "u5"}, nil).Once()
	repo.On("ResetUserIdentity", mock.Anything, "u4").Return(nil).Once()
	repo.On("ResetUserIdentity", mock.Anything, "u5").Return(nil).Once()

	res, err := newService(repo, &recordingNotifier{}).Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 4, Failed: 1}, res)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "SetUserRole", mock.Anything, "u4", mock.Anything, mock.Anything)
}

func TestService_ReconcileOrphanFailures(t *testing.T) {
	tests := []struct {
		name     string
		findErr  error
		resetErr error
		want     Result
		wantErr  bool
	}{
		{name: "reset failure is counted", resetErr: errors.New("db down"), want: Result{Failed: 1}},
		{name: "lookup failure stops the job", findErr: errors.New("db down"), wantErr: true},
		{name: "reset clears identity", want: Result{Processed: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			repo.On("FindStatusDivergence", mock.Anything).Return([]models.ProfileIdentity{}, nil).Once()
			if tt.findErr != nil {
				repo.On("FindOrphanedIdentities", mock.Anything).Return(nil, tt.findErr).Once()
			} else {
				repo.On("FindOrphanedIdentities", mock.Anything).Return([]string{"u7"}, nil).Once()
				repo.On("ResetUserIdentity", mock.Anything, "u7").Return(tt.resetErr).Once()
			}

			res, err := newService(repo, &recordingNotifier{}).Reconcile(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_RunStopsOnCancel(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindOverdue", mock.Anything, now).Return([]*models.Engagement{}, nil)
	repo.On("FindRefundable", mock.Anything, mock.Anything).Return([]*models.Engagement{}, nil)
	repo.On("FindActivePlanSubscriptions", mock.Anything).Return([]*models.PlanSubscription{}, nil)
	repo.On("FindStatusDivergence", mock.Anything).Return([]models.ProfileIdentity{}, nil)
	ran := make(chan struct{})
	var once sync.Once
	repo.On("FindOrphanedIdentities", mock.Anything).Return([]string{}, nil).
		Run(func(mock.Arguments) { once.Do(func() { close(ran) }) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newService(repo, &recordingNotifier{}).Run(ctx)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("initial run did not reach reconciliation")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
