package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) UpdateStreak(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

type MockLeaderboard struct {
	mock.Mock
}

func (m *MockLeaderboard) Record(ctx context.Context, s domain.Standing) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockLeaderboard) Top(ctx context.Context, limit int, activeSince time.Time) ([]domain.LeaderboardEntry, error) {
	args := m.Called(ctx, limit, activeSince)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LeaderboardEntry), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Enqueue(s domain.Standing) {
	m.Called(s)
}
