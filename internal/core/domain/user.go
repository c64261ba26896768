package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidUsername       = errors.New("invalid username (3-32 chars: letters, digits, '_', '.', '-')")
	ErrPasswordTooShort      = errors.New("password must be at least 8 characters long")
)

const (
	MinPasswordLen = 8
	bcryptCost     = 12
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

type User struct {
	ID              string     `json:"id" db:"id"`
	Username        string     `json:"username" db:"username"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	JoinedAt        time.Time  `json:"joined_at" db:"joined_at"`
	Streak          int        `json:"streak" db:"streak"`
	LastLogin       *time.Time `json:"last_login" db:"last_login"`
	StreakClaimedOn *time.Time `json:"streak_claimed_on" db:"streak_claimed_on"`
	Version         int        `json:"version" db:"version"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

func NewUser(id, username string) (*User, error) {
	username = NormalizeUsername(username)

	if !usernameRegex.MatchString(username) {
		return nil, ErrInvalidUsername
	}

	now := time.Now().UTC()
	return &User{
		ID:        id,
		Username:  username,
		JoinedAt:  now,
		UpdatedAt: now,
		Version:   1,
	}, nil
}

// NormalizeUsername is applied on every lookup so that "Alice" and "alice"
// resolve to the same record.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (u *User) SetPassword(plainPassword string) error {
	if utf8.RuneCountInString(plainPassword) < MinPasswordLen {
		return ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcryptCost)
	if err != nil {
		return err
	}

	u.PasswordHash = string(hash)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (u *User) CheckPassword(plainPassword string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plainPassword))
}

func (u *User) StreakState() StreakState {
	return StreakState{
		Streak:          u.Streak,
		LastLogin:       u.LastLogin,
		StreakClaimedOn: u.StreakClaimedOn,
	}
}

// ApplyStreak copies the streak fields of s onto the user. It is the only
// mutator of those fields.
func (u *User) ApplyStreak(s StreakState) {
	u.Streak = s.Streak
	u.LastLogin = s.LastLogin
	u.StreakClaimedOn = s.StreakClaimedOn
}
