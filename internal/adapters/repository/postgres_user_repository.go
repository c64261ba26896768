package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var _ domain.UserRepository = (*PostgresUserRepository)(nil)

const (
	uniqueViolation = "23505"
	queryTimeout    = 3 * time.Second
)

type PostgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// isUniqueViolation understands both drivers the service can run on.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: repository: %s: %w", domain.ErrStoreUnavailable, op, err)
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO users (
			id, username, password_hash, joined_at,
			streak, last_login, streak_claimed_on,
			version, updated_at
		) VALUES (
			:id, :username, :password_hash, :joined_at,
			:streak, :last_login, :streak_claimed_on,
			:version, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUsernameAlreadyExists
		}
		return unavailable("create user", err)
	}

	return nil
}

func (r *PostgresUserRepository) get(ctx context.Context, op, column, value string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, username, password_hash, joined_at,
		       streak, last_login, streak_claimed_on,
		       version, updated_at
		FROM users
		WHERE %s = $1`, column)

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, unavailable(op, err)
	}

	return &user, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.get(ctx, "get user by username", "username", username)
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, "get user by id", "id", id)
}

func (r *PostgresUserRepository) UpdateStreak(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE users SET
			streak = $1, last_login = $2, streak_claimed_on = $3,
			updated_at = NOW(), version = version + 1
		WHERE username = $4 AND version = $5
		RETURNING version, updated_at`

	var newVersion int
	var newUpdatedAt time.Time

	err := r.db.QueryRowxContext(ctx, query,
		user.Streak, user.LastLogin, user.StreakClaimedOn,
		user.Username, user.Version,
	).Scan(&newVersion, &newUpdatedAt)

	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return unavailable("update streak", err)
		}

		var count int
		if checkErr := r.db.GetContext(ctx, &count, `SELECT count(*) FROM users WHERE username = $1`, user.Username); checkErr != nil {
			return unavailable("existence check", checkErr)
		}
		if count == 0 {
			return domain.ErrUserNotFound
		}
		return domain.ErrStreakConflict
	}

	user.Version = newVersion
	user.UpdatedAt = newUpdatedAt
	return nil
}
