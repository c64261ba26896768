package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"
)

var _ domain.Leaderboard = (*PostgresLeaderboard)(nil)

// PostgresLeaderboard reads the ranking straight from the users table. It is
// used when no Redis is configured; Record is a no-op because UpdateStreak
// already wrote the source of truth.
type PostgresLeaderboard struct {
	db *sqlx.DB
}

func NewPostgresLeaderboard(db *sqlx.DB) *PostgresLeaderboard {
	return &PostgresLeaderboard{db: db}
}

func (l *PostgresLeaderboard) Record(ctx context.Context, s domain.Standing) error {
	return nil
}

// Top ranks users whose last login is at or after activeSince; anyone older
// would lose their streak on the next claim.
func (l *PostgresLeaderboard) Top(ctx context.Context, limit int, activeSince time.Time) ([]domain.LeaderboardEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT username, streak
		FROM users
		WHERE streak > 0 AND last_login >= $2
		ORDER BY streak DESC, streak_claimed_on DESC
		LIMIT $1`

	var rows []struct {
		Username string `db:"username"`
		Streak   int    `db:"streak"`
	}
	if err := l.db.SelectContext(ctx, &rows, query, limit, activeSince.UTC()); err != nil {
		return nil, unavailable("leaderboard", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:     i + 1,
			Username: row.Username,
			Streak:   row.Streak,
		})
	}
	return entries, nil
}

// Standings lists the current streak of every user active since
// activeSince. It seeds the Redis leaderboard on startup.
func (l *PostgresLeaderboard) Standings(ctx context.Context, activeSince time.Time) ([]domain.Standing, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT username, streak, streak_claimed_on
		FROM users
		WHERE streak > 0 AND last_login >= $1 AND streak_claimed_on IS NOT NULL`

	var rows []struct {
		Username  string    `db:"username"`
		Streak    int       `db:"streak"`
		ClaimedOn time.Time `db:"streak_claimed_on"`
	}
	if err := l.db.SelectContext(ctx, &rows, query, activeSince.UTC()); err != nil {
		return nil, unavailable("leaderboard standings", err)
	}

	standings := make([]domain.Standing, 0, len(rows))
	for _, row := range rows {
		standings = append(standings, domain.Standing{
			Username:  row.Username,
			Streak:    row.Streak,
			ClaimedAt: row.ClaimedOn.UTC(),
		})
	}
	return standings, nil
}
