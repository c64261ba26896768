package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"
)

var _ domain.UserLocker = (*RedisLocker)(nil)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// Deletes the key only if it still holds our token, so an expired lock
// taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes claims across API instances sharing one Redis.
type RedisLocker struct {
	rdb     *redis.Client
	ttl     time.Duration
	wait    time.Duration
	backoff time.Duration
	log     logrus.FieldLogger
}

func NewRedisLocker(rdb *redis.Client, ttl, wait time.Duration, log logrus.FieldLogger) *RedisLocker {
	return &RedisLocker{
		rdb:     rdb,
		ttl:     ttl,
		wait:    wait,
		backoff: 10 * time.Millisecond,
		log:     log,
	}
}

func (l *RedisLocker) key(username string) string {
	return fmt.Sprintf("streak_lock:%s", username)
}

func (l *RedisLocker) Lock(ctx context.Context, username string) (func(), error) {
	key := l.key(username)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	delay := l.backoff

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if delay < 200*time.Millisecond {
			delay *= 2
		}
	}

	return func() {
		// The caller's context may already be cancelled; release regardless.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Err(); err != nil {
			l.log.WithError(err).WithField("key", key).Warn("failed to release claim lock, waiting for ttl")
		}
	}, nil
}
