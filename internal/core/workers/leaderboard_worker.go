package workers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"
)

const (
	defaultQueueSize = 100
	seedTimeout      = 30 * time.Second
)

// StandingSource lists the current standings of every active user. It is
// used to fill an empty leaderboard on startup.
type StandingSource interface {
	Standings(ctx context.Context, activeSince time.Time) ([]domain.Standing, error)
}

// LeaderboardWorker projects claim results into a Leaderboard off the
// request path. Jobs are dropped when the queue is full; the next claim of
// the same user repairs the ranking.
type LeaderboardWorker struct {
	board domain.Leaderboard
	log   logrus.FieldLogger
	jobs  chan domain.Standing
	wg    sync.WaitGroup

	seed      StandingSource
	seedSince time.Time
}

func NewLeaderboardWorker(board domain.Leaderboard, log logrus.FieldLogger, queueSize int) *LeaderboardWorker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &LeaderboardWorker{
		board: board,
		log:   log,
		jobs:  make(chan domain.Standing, queueSize),
	}
}

// SeedFrom makes Start load the standings of users active since
// activeSince before consuming the queue. Must be called before Start.
func (w *LeaderboardWorker) SeedFrom(src StandingSource, activeSince time.Time) {
	w.seed = src
	w.seedSince = activeSince
}

func (w *LeaderboardWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.log.Info("leaderboard worker started")

		if w.seed != nil {
			w.seedBoard(ctx)
		}

		for {
			select {
			case job := <-w.jobs:
				w.processJob(ctx, job)
			case <-ctx.Done():
				w.drain()
				w.log.Info("leaderboard worker stopped")
				return
			}
		}
	}()
}

// Wait blocks until the worker goroutine has exited.
func (w *LeaderboardWorker) Wait() {
	w.wg.Wait()
}

func (w *LeaderboardWorker) Enqueue(s domain.Standing) {
	select {
	case w.jobs <- s:
	default:
		w.log.WithField("username", s.Username).Warn("leaderboard queue full, dropping event")
	}
}

// seedBoard relies on Record ignoring older standings, so claims that
// arrive while seeding are never overwritten by the snapshot.
func (w *LeaderboardWorker) seedBoard(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, seedTimeout)
	defer cancel()

	standings, err := w.seed.Standings(ctx, w.seedSince)
	if err != nil {
		w.log.WithError(err).Error("failed to load leaderboard seed")
		return
	}

	for _, s := range standings {
		w.processJob(ctx, s)
	}
	w.log.WithField("users", len(standings)).Info("leaderboard seeded")
}

func (w *LeaderboardWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		select {
		case job := <-w.jobs:
			w.processJob(ctx, job)
		default:
			return
		}
	}
}

func (w *LeaderboardWorker) processJob(ctx context.Context, job domain.Standing) {
	if err := w.board.Record(ctx, job); err != nil {
		w.log.WithError(err).WithField("username", job.Username).Error("failed to record leaderboard entry")
		return
	}
	w.log.WithFields(logrus.Fields{"username": job.Username, "streak": job.Streak}).Debug("leaderboard updated")
}
