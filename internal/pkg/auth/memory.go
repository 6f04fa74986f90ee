package auth

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/anicoll/counter-dashboard/internal/pkg/model"
)

// MemoryRepository keeps users and sessions in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	users    map[string]*model.User
	sessions map[string]*model.Session
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:    make(map[string]*model.User),
		sessions: make(map[string]*model.Session),
		now:      time.Now,
	}
}

func (r *MemoryRepository) CreateUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := lo.Find(lo.Values(r.users), func(u *model.User) bool { return u.Email == user.Email }); exists {
		return model.ErrUserExists
	}
	user.CreatedAt = r.now()
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *MemoryRepository) UserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := lo.Find(lo.Values(r.users), func(u *model.User) bool { return u.Email == email })
	if !ok {
		return nil, model.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *MemoryRepository) UserByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *MemoryRepository) CreateSession(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.CreatedAt = r.now()
	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

func (r *MemoryRepository) SessionByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := *s
	return &out, nil
}

func (r *MemoryRepository) RevokeSession(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.RevokedAt != nil {
		return model.ErrNotFound
	}
	s.RevokedAt = &at
	return nil
}

func (r *MemoryRepository) DeleteExpiredSessions(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(before) || (s.RevokedAt != nil && s.RevokedAt.Before(before)) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}
