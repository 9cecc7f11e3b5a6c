package engagement

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/models"
	"github.com/magabrotheeeer/profinder/internal/services/notification"
)

// memStore повторяет условные обновления хранилища: версия заявки
// и завершение, в котором проверка лимита, счётчик и запись заявки
// применяются вместе или не применяются вовсе.
type memStore struct {
	mu          sync.Mutex
	profiles    map[string]*models.Profile
	engagements map[string]*models.Engagement
	seq         int

	updateErr error
	// afterGet вызывается после каждого чтения заявки, вне блокировки
	afterGet func()
}

func newMemStore(profiles ...*models.Profile) *memStore {
	s := &memStore{profiles: map[string]*models.Profile{}, engagements: map[string]*models.Engagement{}}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *memStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "memStore", "profile not found")
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) GetProfileByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.Lock()
	var id string
	for _, p := range s.profiles {
		if p.UserID == userID {
			id = p.ID
		}
	}
	s.mu.Unlock()
	return s.GetProfile(ctx, id)
}

func (s *memStore) CreateEngagement(_ context.Context, e models.Engagement) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.ID = "e" + strconv.Itoa(s.seq)
	e.Status = models.EngagementPending
	e.Version = 1
	s.engagements[e.ID] = &e
	return e.ID, nil
}

func (s *memStore) GetEngagement(_ context.Context, id string) (*models.Engagement, error) {
	s.mu.Lock()
	e, ok := s.engagements[id]
	if !ok {
		s.mu.Unlock()
		return nil, apperr.New(apperr.KindNotFound, "memStore", "engagement not found")
	}
	cp := *e
	hook := s.afterGet
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return &cp, nil
}

func (s *memStore) UpdateEngagement(_ context.Context, e *models.Engagement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	stored, ok := s.engagements[e.ID]
	if !ok || stored.Version != e.Version {
		return apperr.New(apperr.KindConflict, "memStore", "engagement was modified concurrently")
	}
	e.Version++
	cp := *e
	s.engagements[e.ID] = &cp
	return nil
}

func (s *memStore) CompleteEngagement(_ context.Context, e *models.Engagement, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return 0, s.updateErr
	}
	p, ok := s.profiles[e.ProfessionalID]
	if !ok {
		return 0, apperr.New(apperr.KindNotFound, "memStore", "profile not found")
	}
	if p.Subscription.Plan != models.PlanPro && p.Subscription.Usage >= limit {
		return 0, apperr.New(apperr.KindQuotaExceeded, "memStore", "trial plan limit reached")
	}
	stored, ok := s.engagements[e.ID]
	if !ok || stored.Version != e.Version {
		return 0, apperr.New(apperr.KindConflict, "memStore", "engagement was modified concurrently")
	}
	p.Subscription.Usage++
	e.Version++
	cp := *e
	s.engagements[e.ID] = &cp
	return p.Subscription.Usage, nil
}

// barrier возвращает хук, который держит каждого из n вызывающих,
// пока все n не дойдут до него.
func barrier(n int) func() {
	var wg sync.WaitGroup
	wg.Add(n)
	return func() {
		wg.Done()
		wg.Wait()
	}
}

func (s *memStore) list(match func(*models.Engagement) bool) []*models.Engagement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Engagement
	for _, e := range s.engagements {
		if match(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

func (s *memStore) ListEngagementsByUser(_ context.Context, userID string) ([]*models.Engagement, error) {
	return s.list(func(e *models.Engagement) bool { return e.UserID == userID }), nil
}

func (s *memStore) ListEngagementsByProfessional(_ context.Context, professionalID string) ([]*models.Engagement, error) {
	return s.list(func(e *models.Engagement) bool { return e.ProfessionalID == professionalID }), nil
}

func (s *memStore) ListEngagements(_ context.Context) ([]*models.Engagement, error) {
	return s.list(func(*models.Engagement) bool { return true }), nil
}

func (s *memStore) AverageRating(_ context.Context, professionalID string) (float64, int, error) {
	var sum, n int
	for _, e := range s.list(func(e *models.Engagement) bool { return e.ProfessionalID == professionalID }) {
		if e.Status == models.EngagementCompleted && e.UserRating != nil {
			sum += e.UserRating.Stars
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
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

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}
