package repository

import (
	"context"
	"sync"
	"time"

	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"
)

var _ domain.UserRepository = (*InMemoryUserRepository)(nil)

// InMemoryUserRepository keeps users in a map keyed by username. Values are
// copied in and out so callers never share state with the store.
type InMemoryUserRepository struct {
	byUsername map[string]*domain.User
	byID       map[string]string

	mu sync.RWMutex
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		byUsername: make(map[string]*domain.User),
		byID:       make(map[string]string),
	}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	if u.StreakClaimedOn != nil {
		t := *u.StreakClaimedOn
		c.StreakClaimedOn = &t
	}
	return &c
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[user.Username]; ok {
		return domain.ErrUsernameAlreadyExists
	}

	r.byUsername[user.Username] = cloneUser(user)
	r.byID[user.ID] = user.Username
	return nil
}

func (r *InMemoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byUsername[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(r.byUsername[username]), nil
}

func (r *InMemoryUserRepository) UpdateStreak(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byUsername[user.Username]
	if !ok {
		return domain.ErrUserNotFound
	}
	if stored.Version != user.Version {
		return domain.ErrStreakConflict
	}

	user.Version++
	user.UpdatedAt = time.Now().UTC()

	stored.ApplyStreak(cloneUser(user).StreakState())
	stored.Version = user.Version
	stored.UpdatedAt = user.UpdatedAt
	return nil
}
