package workers

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"
)

// fakeBoard keeps the newest standing per user, like the real boards.
type fakeBoard struct {
	mu      sync.Mutex
	entries map[string]domain.Standing
	failFor string
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{entries: map[string]domain.Standing{}}
}

func (b *fakeBoard) Record(ctx context.Context, s domain.Standing) error {
	if s.Username == b.failFor {
		return errors.New("redis down")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.entries[s.Username]; ok && prev.ClaimedAt.After(s.ClaimedAt) {
		return nil
	}
	b.entries[s.Username] = s
	return nil
}

func (b *fakeBoard) Top(ctx context.Context, limit int, activeSince time.Time) ([]domain.LeaderboardEntry, error) {
	return nil, nil
}

func (b *fakeBoard) score(username string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.entries[username]
	return s.Streak, ok
}

type fakeSource struct {
	standings []domain.Standing
	err       error
	since     time.Time
}

func (s *fakeSource) Standings(ctx context.Context, activeSince time.Time) ([]domain.Standing, error) {
	s.since = activeSince
	return s.standings, s.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

var t0 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func standing(username string, streak int, at time.Time) domain.Standing {
	return domain.Standing{Username: username, Streak: streak, ClaimedAt: at}
}

func runUntilStopped(w *LeaderboardWorker) {
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()
	w.Wait()
}

func TestLeaderboardWorker(t *testing.T) {
	t.Run("Records queued events and drains on shutdown", func(t *testing.T) {
		board := newFakeBoard()
		w := NewLeaderboardWorker(board, quietLogger(), 10)

		w.Enqueue(standing("alice", 3, t0))
		w.Enqueue(standing("bob", 7, t0))
		w.Enqueue(standing("alice", 4, t0.Add(24*time.Hour)))

		runUntilStopped(w)

		s, ok := board.score("alice")
		assert.True(t, ok)
		assert.Equal(t, 4, s, "later events win")

		s, ok = board.score("bob")
		assert.True(t, ok)
		assert.Equal(t, 7, s)
	})

	t.Run("Drops events when the queue is full", func(t *testing.T) {
		board := newFakeBoard()
		w := NewLeaderboardWorker(board, quietLogger(), 1)

		w.Enqueue(standing("alice", 1, t0))
		w.Enqueue(standing("bob", 1, t0))

		assert.Len(t, w.jobs, 1)
	})

	t.Run("Keeps going after a failed record", func(t *testing.T) {
		board := newFakeBoard()
		board.failFor = "broken"
		w := NewLeaderboardWorker(board, quietLogger(), 10)

		w.Enqueue(standing("broken", 2, t0))
		w.Enqueue(standing("carol", 5, t0))

		runUntilStopped(w)

		_, ok := board.score("broken")
		assert.False(t, ok)

		s, ok := board.score("carol")
		assert.True(t, ok)
		assert.Equal(t, 5, s)
	})

	t.Run("Default queue size", func(t *testing.T) {
		w := NewLeaderboardWorker(newFakeBoard(), quietLogger(), 0)
		assert.Equal(t, defaultQueueSize, cap(w.jobs))
	})
}

func TestLeaderboardWorker_Seed(t *testing.T) {
	t.Run("Loads standings before queued claims", func(t *testing.T) {
		board := newFakeBoard()
		src := &fakeSource{standings: []domain.Standing{
			standing("alice", 10, t0),
			standing("bob", 2, t0),
		}}
		since := t0.Add(-48 * time.Hour)

		w := NewLeaderboardWorker(board, quietLogger(), 10)
		w.SeedFrom(src, since)
		w.Enqueue(standing("bob", 3, t0.Add(time.Hour)))

		runUntilStopped(w)

		assert.True(t, src.since.Equal(since))
		s, _ := board.score("alice")
		assert.Equal(t, 10, s)
		s, _ = board.score("bob")
		assert.Equal(t, 3, s)
	})

	t.Run("Snapshot never overwrites a newer claim", func(t *testing.T) {
		board := newFakeBoard()
		_ = board.Record(context.Background(), standing("alice", 1, t0.Add(time.Hour)))

		w := NewLeaderboardWorker(board, quietLogger(), 10)
		w.SeedFrom(&fakeSource{standings: []domain.Standing{standing("alice", 9, t0)}}, t0)

		runUntilStopped(w)

		s, _ := board.score("alice")
		assert.Equal(t, 1, s)
	})

	t.Run("Seed failure leaves the worker running", func(t *testing.T) {
		board := newFakeBoard()
		w := NewLeaderboardWorker(board, quietLogger(), 10)
		w.SeedFrom(&fakeSource{err: errors.New("db down")}, t0)
		w.Enqueue(standing("carol", 4, t0))

		runUntilStopped(w)

		s, ok := board.score("carol")
		assert.True(t, ok)
		assert.Equal(t, 4, s)
	})
}
