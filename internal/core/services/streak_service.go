package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

// ClaimRecorder receives the resulting standing of every claim that changed
// state. Enqueue must not block.
type ClaimRecorder interface {
	Enqueue(s domain.Standing)
}

type StreakServiceDeps struct {
	Repo        domain.UserRepository
	Locker      domain.UserLocker
	Policy      domain.StreakPolicy
	Leaderboard domain.Leaderboard
	Recorder    ClaimRecorder
	Logger      logrus.FieldLogger
	Clock       func() time.Time
}

type StreakService struct {
	repo     domain.UserRepository
	locker   domain.UserLocker
	policy   domain.StreakPolicy
	board    domain.Leaderboard
	recorder ClaimRecorder
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewStreakService(deps StreakServiceDeps) *StreakService {
	s := &StreakService{
		repo:     deps.Repo,
		locker:   deps.Locker,
		policy:   deps.Policy,
		board:    deps.Leaderboard,
		recorder: deps.Recorder,
		log:      deps.Logger,
		now:      deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

type ClaimResult struct {
	Outcome domain.Outcome
	User    *domain.User
}

type StreakStatus struct {
	User        *domain.User
	NextOutcome domain.Outcome
	Claimable   bool
	AtRisk      bool
	EvaluatedAt time.Time
}

// Claim runs one evaluate-and-claim for username. The load, decision and
// write happen under the per-user lock; an idempotent claim writes nothing.
func (s *StreakService) Claim(ctx context.Context, username string) (*ClaimResult, error) {
	username = domain.NormalizeUsername(username)

	unlock, err := s.locker.Lock(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire claim lock for %s: %w", domain.ErrStoreUnavailable, username, err)
	}
	defer unlock()

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	previous := user.Streak
	next, outcome := s.policy.Decide(now, user.StreakState())

	if outcome != domain.OutcomeAlreadyClaimed {
		user.ApplyStreak(next)
		if err := s.repo.UpdateStreak(ctx, user); err != nil {
			return nil, fmt.Errorf("streak service: save streak for %s: %w", username, err)
		}

		if s.recorder != nil {
			s.recorder.Enqueue(domain.Standing{
				Username:  user.Username,
				Streak:    user.Streak,
				ClaimedAt: now,
			})
		}
	}

	s.log.WithFields(logrus.Fields{
		"username": username,
		"outcome":  outcome,
		"previous": previous,
		"streak":   user.Streak,
	}).Info("streak claim evaluated")

	return &ClaimResult{Outcome: outcome, User: user}, nil
}

// Status previews what a claim would do right now without writing.
func (s *StreakService) Status(ctx context.Context, username string) (*StreakStatus, error) {
	user, err := s.repo.GetByUsername(ctx, domain.NormalizeUsername(username))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	_, outcome := s.policy.Decide(now, user.StreakState())

	return &StreakStatus{
		User:        user,
		NextOutcome: outcome,
		Claimable:   outcome != domain.OutcomeAlreadyClaimed,
		AtRisk:      outcome == domain.OutcomeStreakLost && user.Streak > 0,
		EvaluatedAt: now,
	}, nil
}

// Leaderboard ranks current streaks only: users whose next claim would be
// STREAK_LOST are left out.
func (s *StreakService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if s.board == nil {
		return []domain.LeaderboardEntry{}, nil
	}

	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}

	activeSince := s.policy.ActiveSince(s.now().UTC())

	entries, err := s.board.Top(ctx, limit, activeSince)
	if err != nil {
		return nil, fmt.Errorf("streak service: leaderboard: %w", err)
	}
	return entries, nil
}
