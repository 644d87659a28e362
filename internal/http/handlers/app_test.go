package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/listing"
	"server/internal/middleware"
	"server/internal/storage"
)

const testJWTSecret = "test-secret"

type fakeUserRepo struct {
	mu    sync.Mutex
	users []*domain.User
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return domain.ErrDuplicateEmail
		}
	}
	stored := *user
	stored.IsActive = true
	stored.CreatedAt = time.Now().UTC()
	r.users = append(r.users, &stored)
	*user = stored
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			dup := *u
			return &dup, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			dup := *u
			return &dup, nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	records []*domain.GenerationRecord
}

func (r *fakeHistoryRepo) Save(_ context.Context, rec *domain.GenerationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.records = append(r.records, &stored)
	return nil
}

func (r *fakeHistoryRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.GenerationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.GenerationSummary
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		out = append(out, domain.GenerationSummary{
			ID:          rec.ID,
			Lang:        rec.Lang,
			Hint:        rec.Hint,
			ImageCount:  rec.ImageCount,
			ProductType: rec.ProductType,
			Brand:       rec.Brand,
			ElapsedMS:   rec.ElapsedMS,
			CreatedAt:   rec.CreatedAt,
		})
	}
	return out, nil
}

func (r *fakeHistoryRepo) GetByID(_ context.Context, id, userID string) (*domain.GenerationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id && rec.UserID == userID {
			dup := *rec
			return &dup, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeHistoryRepo) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range r.records {
		if rec.ID == id && rec.UserID == userID {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

var (
	_ domain.UserRepository    = (*fakeUserRepo)(nil)
	_ domain.HistoryRepository = (*fakeHistoryRepo)(nil)
)

type queueInvoker struct {
	mu    sync.Mutex
	queue []queuedCall
	calls int
}

type queuedCall struct {
	response string
	err      error
}

func (s *queueInvoker) Complete(_ context.Context, _ listing.Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.queue) == 0 {
		return "", errors.New("stub queue exhausted")
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next.response, next.err
}

type testEnv struct {
	app     *App
	users   *fakeUserRepo
	history *fakeHistoryRepo
	invoker *queueInvoker
	store   *storage.FileStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	invoker := &queueInvoker{}
	pipeline, err := listing.NewPipeline(listing.Options{
		Invoker:      invoker,
		ModelTimeout: time.Second,
		Logger:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	users := &fakeUserRepo{}
	history := &fakeHistoryRepo{}
	return &testEnv{
		app:     NewApp(zerolog.Nop(), users, history, pipeline, store, testJWTSecret),
		users:   users,
		history: history,
		invoker: invoker,
		store:   store,
	}
}

func authedContext(ctx context.Context, userID string) context.Context {
	return middleware.ContextWithUserID(ctx, userID)
}
