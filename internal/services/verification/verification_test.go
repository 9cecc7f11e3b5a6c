package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/authz"
)

var (
	superadmin = models.Caller{SubjectID: "sa1", Role: models.RoleSuperAdmin}
	candidate  = models.Caller{SubjectID: "u1", Role: models.RoleUser}
	validForm  = models.ProfileFields{Profession: "Plumber", Experience: 5, City: "Pune", Pincode: "411001"}
)

func newService(repo Repository, cache Cache, n Notifier) *Service {
	return New(repo, cache, n, authz.New(nil), nil, newNoopLogger(), 5*time.Minute)
}

func TestService_Submit(t *testing.T) {
	voterOnly := models.ProfileDocuments{VoterID: "blob/voter.pdf"}
	aadhar := "blob/aadhar.png"

	tests := []struct {
		name       string
		caller     models.Caller
		fields     models.ProfileFields
		docs       models.ProfileDocuments
		setupMocks func(*MockRepository)
		wantErr    error
		wantStatus models.ProfileStatus
		notices    int
	}{
		{
			name:   "first submission with voter id only",
			caller: candidate,
			fields: validForm,
			docs:   voterOnly,
			setupMocks: func(r *MockRepository) {
				r.On("GetProfileByUserID", mock.Anything, "u1").Return(nil, apperr.ErrNotFound).Once()
				r.On("CreateProfile", mock.Anything, "u1", validForm, voterOnly).Return("p1", nil).Once()
				r.On("SetUserDocuments", mock.Anything, "u1", voterOnly).Return(nil).Once()
				r.On("ListUsersByRole", mock.Anything, models.RoleSuperAdmin).
					Return([]*models.User{{UID: "sa1"}, {UID: "sa2"}}, nil).Once()
				r.On("GetUser", mock.Anything, "u1").Return(&models.User{UID: "u1", Name: "Asha"}, nil).Once()
				r.On("GetProfile", mock.Anything, "p1").
					Return(&models.Profile{ID: "p1", UserID: "u1", Status: models.ProfilePending}, nil).Once()
			},
			wantStatus: models.ProfilePending,
			notices:    2,
		},
		{
			name:       "no identity document",
			caller:     candidate,
			fields:     validForm,
			docs:       models.ProfileDocuments{ProfilePhoto: "blob/photo.jpg"},
			setupMocks: func(r *MockRepository) {
				r.On("GetProfileByUserID", mock.Anything, "u1").Return(nil, apperr.ErrNotFound).Once()
			},
			wantErr: apperr.ErrValidation,
		},
		{
			name:       "missing required fields",
			caller:     candidate,
			fields:     models.ProfileFields{Profession: "Plumber"},
			docs:       voterOnly,
			setupMocks: func(_ *MockRepository) {},
			wantErr:    apperr.ErrValidation,
		},
		{
			name:   "already pending",
			caller: candidate,
			fields: validForm,
			docs:   voterOnly,
			setupMocks: func(r *MockRepository) {
				r.On("GetProfileByUserID", mock.Anything, "u1").
					Return(&models.Profile{ID: "p1", Status: models.ProfilePending}, nil).Once()
			},
			wantErr: apperr.ErrConflict,
		},
		{
			name:   "already verified",
			caller: candidate,
			fields: validForm,
			docs:   voterOnly,
			setupMocks: func(r *MockRepository) {
				r.On("GetProfileByUserID", mock.Anything, "u1").
					Return(&models.Profile{ID: "p1", Status: models.ProfileVerified}, nil).Once()
			},
			wantErr: apperr.ErrConflict,
		},
		{
			name:   "resubmission keeps stored documents",
			caller: candidate,
			fields: validForm,
			docs:   models.ProfileDocuments{},
			setupMocks: func(r *MockRepository) {
				r.On("GetProfileByUserID", mock.Anything, "u1").
					Return(&models.Profile{ID: "p1", Status: models.ProfileRejected, AadharCard: &aadhar}, nil).Once()
				r.On("ResubmitProfile", mock.Anything, "p1", validForm, models.ProfileDocuments{}).Return(nil).Once()
				r.On("ListUsersByRole", mock.Anything, models.RoleSuperAdmin).Return([]*models.User{{UID: "sa1"}}, nil).Once()
				r.On("GetUser", mock.Anything, "u1").Return(nil, apperr.ErrNotFound).Once()
				r.On("GetProfile", mock.Anything, "p1").
					Return(&models.Profile{ID: "p1", Status: models.ProfilePending}, nil).Once()
			},
			wantStatus: models.ProfilePending,
			notices:    1,
		},
		{
			name:   "resubmission without any identity document",
			caller: candidate,
			fields: validForm,
			docs:   models.ProfileDocuments{},
			setupMocks: func(r *MockRepository) {
				r.On("GetProfileByUserID", mock.Anything, "u1").
					Return(&models.Profile{ID: "p1", Status: models.ProfileRejected}, nil).Once()
			},
			wantErr: apperr.ErrValidation,
		},
		{
			name:   "notification failure does not fail submission",
			caller: candidate,
			fields: validForm,
			docs:   voterOnly,
			setupMocks: func(r *MockRepository) {
				r.On("GetProfileByUserID", mock.Anything, "u1").Return(nil, apperr.ErrNotFound).Once()
				r.On("CreateProfile", mock.Anything, "u1", validForm, voterOnly).Return("p1", nil).Once()
				r.On("SetUserDocuments", mock.Anything, "u1", voterOnly).Return(errors.New("db down")).Once()
				r.On("ListUsersByRole", mock.Anything, models.RoleSuperAdmin).Return(nil, errors.New("db down")).Once()
				r.On("GetProfile", mock.Anything, "p1").
					Return(&models.Profile{ID: "p1", Status: models.ProfilePending}, nil).Once()
			},
			wantStatus: models.ProfilePending,
		},
		{
			name:       "superadmin cannot submit",
			caller:     superadmin,
			fields:     validForm,
			docs:       voterOnly,
			setupMocks: func(_ *MockRepository) {},
			wantErr:    apperr.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			tt.setupMocks(repo)
			n := &recordingNotifier{}

			got, err := newService(repo, nil, n).Submit(context.Background(), tt.caller, tt.fields, tt.docs)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, got.Status)
			}
			assert.Len(t, n.notices, tt.notices)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Verify(t *testing.T) {
	pending := func() *models.Profile {
		return &models.Profile{ID: "p1", UserID: "u1", Status: models.ProfilePending}
	}

	tests := []struct {
		name       string
		caller     models.Caller
		setupMocks func(*MockRepository)
		wantErr    error
		notices    int
	}{
		{
			name:   "success",
			caller: superadmin,
			setupMocks: func(r *MockRepository) {
				r.On("GetProfile", mock.Anything, "p1").Return(pending(), nil).Once()
				r.On("SetProfileStatus", mock.Anything, "p1", models.ProfileVerified).Return(nil).Once()
				r.On("SetUserRole", mock.Anything, "u1", models.RoleAdmin, true).Return(nil).Once()
			},
			notices: 1,
		},
		{
			name:       "not superadmin",
			caller:     models.Caller{SubjectID: "a1", Role: models.RoleAdmin},
			setupMocks: func(_ *MockRepository) {},
			wantErr:    apperr.ErrForbidden,
		},
		{
			name:   "profile not found",
			caller: superadmin,
			setupMocks: func(r *MockRepository) {
				r.On("GetProfile", mock.Anything, "p1").Return(nil, apperr.New(apperr.KindNotFound, "storage.GetProfile", "profile not found")).Once()
			},
			wantErr: apperr.ErrNotFound,
		},
		{
			name:   "already verified",
			caller: superadmin,
			setupMocks: func(r *MockRepository) {
				r.On("GetProfile", mock.Anything, "p1").
					Return(&models.Profile{ID: "p1", UserID: "u1", Status: models.ProfileVerified}, nil).Once()
			},
			wantErr: apperr.ErrConflict,
		},
		{
			name:   "rejected profile",
			caller: superadmin,
			setupMocks: func(r *MockRepository) {
				r.On("GetProfile", mock.Anything, "p1").
					Return(&models.Profile{ID: "p1", UserID: "u1", Status: models.ProfileRejected}, nil).Once()
			},
			wantErr: apperr.ErrInvalidState,
		},
		{
			name:   "user update fails after profile committed",
			caller: superadmin,
			setupMocks: func(r *MockRepository) {
				r.On("GetProfile", mock.Anything, "p1").Return(pending(), nil).Once()
				r.On("SetProfileStatus", mock.Anything, "p1", models.ProfileVerified).Return(nil).Once()
				r.On("SetUserRole", mock.Anything, "u1", models.RoleAdmin, true).Return(errors.New("connection reset")).Once()
			},
			wantErr: apperr.ErrPartialFailure,
		},
		{
			name:   "profile update fails",
			caller: superadmin,
			setupMocks: func(r *MockRepository) {
				r.On("GetProfile", mock.Anything, "p1").Return(pending(), nil).Once()
				r.On("SetProfileStatus", mock.Anything, "p1", models.ProfileVerified).Return(errors.New("db down")).Once()
			},
			wantErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			tt.setupMocks(repo)
			n := &recordingNotifier{}

			got, err := newService(repo, nil, n).Verify(context.Background(), tt.caller, "p1")

			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
				assert.Equal(t, models.ProfileVerified, got.Status)
			case apperr.KindOf(tt.wantErr) != "":
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.EqualError(t, err, tt.wantErr.Error())
			}
			assert.Len(t, n.notices, tt.notices)
			if tt.notices > 0 {
				assert.Equal(t, models.NotifyAdminVerified, n.notices[0].Type)
				assert.Equal(t, "u1", n.notices[0].RecipientID)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Reject(t *testing.T) {
	t.Run("verified profile is demoted", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetProfile", mock.Anything, "p1").
			Return(&models.Profile{ID: "p1", UserID: "u1", Status: models.ProfileVerified}, nil).Once()
		repo.On("SetProfileStatus", mock.Anything, "p1", models.ProfileRejected).Return(nil).Once()
		repo.On("SetUserRole", mock.Anything, "u1", models.RoleUser, false).Return(nil).Once()
		n := &recordingNotifier{}

		got, err := newService(repo, nil, n).Reject(context.Background(), superadmin, "p1")

		require.NoError(t, err)
		assert.Equal(t, models.ProfileRejected, got.Status)
		require.Len(t, n.notices, 1)
		assert.Equal(t, models.NotifyAdminRejected, n.notices[0].Type)
		repo.AssertExpectations(t)
	})

	t.Run("already rejected", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetProfile", mock.Anything, "p1").
			Return(&models.Profile{ID: "p1", UserID: "u1", Status: models.ProfileRejected}, nil).Once()

		_, err := newService(repo, nil, &recordingNotifier{}).Reject(context.Background(), superadmin, "p1")
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("partial failure", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetProfile", mock.Anything, "p1").
			Return(&models.Profile{ID: "p1", UserID: "u1", Status: models.ProfilePending}, nil).Once()
		repo.On("SetProfileStatus", mock.Anything, "p1", models.ProfileRejected).Return(nil).Once()
		repo.On("SetUserRole", mock.Anything, "u1", models.RoleUser, false).Return(errors.New("timeout")).Once()
		n := &recordingNotifier{}

		_, err := newService(repo, nil, n).Reject(context.Background(), superadmin, "p1")
		assert.ErrorIs(t, err, apperr.ErrPartialFailure)
		assert.Empty(t, n.notices)
	})
}

func TestService_Delete(t *testing.T) {
	tests := []struct {
		name       string
		caller     models.Caller
		setupMocks func(*MockRepository, *MockCache)
		wantErr    error
	}{
		{
			name:   "success resets owner",
			caller: superadmin,
			setupMocks: func(r *MockRepository, c *MockCache) {
				r.On("GetProfile", mock.Anything, "p1").Return(&models.Profile{ID: "p1", UserID: "u1"}, nil).Once()
				r.On("DeleteProfile", mock.Anything, "p1").Return(nil).Once()
				c.On("InvalidatePrefix", mock.Anything, searchCachePrefix).Return(nil).Once()
				r.On("ResetUserIdentity", mock.Anything, "u1").Return(nil).Once()
			},
		},
		{
			name:       "only superadmin",
			caller:     candidate,
			setupMocks: func(_ *MockRepository, _ *MockCache) {},
			wantErr:    apperr.ErrForbidden,
		},
		{
			name:   "reset fails",
			caller: superadmin,
			setupMocks: func(r *MockRepository, c *MockCache) {
				r.On("GetProfile", mock.Anything, "p1").Return(&models.Profile{ID: "p1", UserID: "u1"}, nil).Once()
				r.On("DeleteProfile", mock.Anything, "p1").Return(nil).Once()
				c.On("InvalidatePrefix", mock.Anything, searchCachePrefix).Return(errors.New("redis down")).Once()
				r.On("ResetUserIdentity", mock.Anything, "u1").Return(errors.New("db down")).Once()
			},
			wantErr: apperr.ErrPartialFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			cache := new(MockCache)
			tt.setupMocks(repo, cache)

			err := newService(repo, cache, &recordingNotifier{}).Delete(context.Background(), tt.caller, "p1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestService_SearchVerified(t *testing.T) {
	key := searchCachePrefix + "pune:plumber"
	found := []*models.Profile{{ID: "p1", Status: models.ProfileVerified}}

	t.Run("cache miss populates cache", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		cache.On("Get", mock.Anything, key, mock.Anything).Return(false, nil).Once()
		repo.On("SearchVerified", mock.Anything, "Pune", "Plumber").Return(found, nil).Once()
		cache.On("Set", mock.Anything, key, found, 5*time.Minute).Return(nil).Once()

		got, err := newService(repo, cache, &recordingNotifier{}).SearchVerified(context.Background(), " Pune ", "Plumber")

		require.NoError(t, err)
		assert.Equal(t, found, got)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("cache hit skips repository", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		cache.On("Get", mock.Anything, key, mock.Anything).Return(true, nil).Once()

		_, err := newService(repo, cache, &recordingNotifier{}).SearchVerified(context.Background(), "Pune", "Plumber")

		require.NoError(t, err)
		repo.AssertNotCalled(t, "SearchVerified", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cache errors fall through", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		cache.On("Get", mock.Anything, key, mock.Anything).Return(false, errors.New("redis down")).Once()
		repo.On("SearchVerified", mock.Anything, "Pune", "Plumber").Return(found, nil).Once()
		cache.On("Set", mock.Anything, key, found, 5*time.Minute).Return(errors.New("redis down")).Once()

		got, err := newService(repo, cache, &recordingNotifier{}).SearchVerified(context.Background(), "Pune", "Plumber")

		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestService_Reads(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ListProfilesByStatus", mock.Anything, models.ProfilePending).Return([]*models.Profile{{ID: "p1"}}, nil).Once()
	repo.On("GetProfileByUserID", mock.Anything, "u1").Return(&models.Profile{ID: "p1"}, nil).Once()
	svc := newService(repo, nil, &recordingNotifier{})

	pending, err := svc.ListPending(context.Background(), superadmin)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = svc.ListPending(context.Background(), candidate)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	mine, err := svc.Mine(context.Background(), candidate)
	require.NoError(t, err)
	assert.Equal(t, "p1", mine.ID)

	_, err = svc.ListAll(context.Background(), models.Caller{})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	repo.AssertExpectations(t)
}
