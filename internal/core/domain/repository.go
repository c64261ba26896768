package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable wraps every infrastructure failure of a store.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrStreakConflict   = errors.New("streak version conflict")
)

type UserRepository interface {
	// Create persists a newly registered user.
	Create(ctx context.Context, user *User) error

	// GetByUsername retrieves a user by its normalized username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID retrieves a user by its unique identifier.
	GetByID(ctx context.Context, id string) (*User, error)

	// UpdateStreak saves the streak fields of user.
	// Implementations must compare user.Version with the stored version and
	// return ErrStreakConflict on mismatch. On success user.Version is bumped.
	UpdateStreak(ctx context.Context, user *User) error
}

// UserLocker serializes work on a single username. The returned func
// releases the lock and must be called exactly once.
type UserLocker interface {
	Lock(ctx context.Context, username string) (unlock func(), err error)
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Streak   int    `json:"streak"`
}

// Standing is a user's streak as of the claim that produced it.
type Standing struct {
	Username  string
	Streak    int
	ClaimedAt time.Time
}

type Leaderboard interface {
	// Record stores s unless a standing with a later ClaimedAt is already
	// held for the same user.
	Record(ctx context.Context, s Standing) error

	// Top ranks users whose last claim is at or after activeSince.
	Top(ctx context.Context, limit int, activeSince time.Time) ([]LeaderboardEntry, error)
}
