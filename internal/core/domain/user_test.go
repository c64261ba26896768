package domain

import (
	"testing"
	"time"
)

func TestNewUser(t *testing.T) {
	t.Parallel()

	t.Run("Should create user with normalized username", func(t *testing.T) {
		t.Parallel()

		user, err := NewUser("123", "  Alice.Dev  ")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		if user.Username != "alice.dev" {
			t.Errorf("Expected username alice.dev, got %s", user.Username)
		}
		if user.ID != "123" {
			t.Errorf("Expected id 123, got %s", user.ID)
		}
		if user.JoinedAt.IsZero() {
			t.Error("Expected JoinedAt to be set")
		}
	})

	t.Run("Should start with an empty streak", func(t *testing.T) {
		t.Parallel()

		user, _ := NewUser("123", "bob")

		if user.Streak != 0 || user.LastLogin != nil || user.StreakClaimedOn != nil {
			t.Errorf("Expected default streak fields, got %+v", user.StreakState())
		}
	})

	t.Run("Should fail with invalid username", func(t *testing.T) {
		t.Parallel()

		for _, name := range []string{"", "ab", "has space", "emoji🔥", "this-username-is-way-too-long-to-be-accepted"} {
			if _, err := NewUser("123", name); err != ErrInvalidUsername {
				t.Errorf("Expected ErrInvalidUsername for %q, got %v", name, err)
			}
		}
	})
}

func TestUserPassword(t *testing.T) {
	t.Parallel()

	t.Run("Should hash password correctly and update timestamp", func(t *testing.T) {
		t.Parallel()
		user, _ := NewUser("123", "carol")
		oldUpdatedAt := user.UpdatedAt

		time.Sleep(1 * time.Millisecond)

		if err := user.SetPassword("superSecret123"); err != nil {
			t.Fatalf("Expected no error setting password, got %v", err)
		}
		if user.PasswordHash == "superSecret123" || user.PasswordHash == "" {
			t.Error("Password should be hashed")
		}
		if !user.UpdatedAt.After(oldUpdatedAt) {
			t.Error("UpdatedAt should be updated after setting password")
		}
	})

	t.Run("Should validate password length", func(t *testing.T) {
		t.Parallel()
		user, _ := NewUser("123", "carol")

		if err := user.SetPassword("short"); err != ErrPasswordTooShort {
			t.Errorf("Expected ErrPasswordTooShort, got %v", err)
		}
	})

	t.Run("CheckPassword should work", func(t *testing.T) {
		t.Parallel()
		user, _ := NewUser("123", "carol")
		_ = user.SetPassword("correctPassword")

		if err := user.CheckPassword("correctPassword"); err != nil {
			t.Errorf("Expected password to match, got error: %v", err)
		}
		if err := user.CheckPassword("wrongPassword"); err == nil {
			t.Error("Expected error for wrong password, got nil")
		}
	})
}

func TestUserApplyStreak(t *testing.T) {
	t.Parallel()

	user, _ := NewUser("123", "dave")
	now := time.Date(2024, 1, 2, 11, 0, 0, 0, time.UTC)

	next, _ := Decide(now, user.StreakState())
	user.ApplyStreak(next)

	if user.Streak != 1 {
		t.Errorf("Expected streak 1, got %d", user.Streak)
	}
	if user.LastLogin == nil || !user.LastLogin.Equal(now) {
		t.Errorf("Expected LastLogin %v, got %v", now, user.LastLogin)
	}
	if user.StreakClaimedOn == nil || !user.StreakClaimedOn.Equal(now) {
		t.Errorf("Expected StreakClaimedOn %v, got %v", now, user.StreakClaimedOn)
	}
}
