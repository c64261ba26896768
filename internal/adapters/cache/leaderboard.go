package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"
)

var _ domain.Leaderboard = (*RedisLeaderboard)(nil)

const (
	leaderboardKey = "leaderboard:streaks"
	claimedKey     = "leaderboard:claimed"
)

// recordScript writes a standing unless the stored one was claimed later.
// KEYS: streaks, claimed. ARGV: username, streak, claimed-at micros.
var recordScript = redis.NewScript(`
local prev = redis.call("ZSCORE", KEYS[2], ARGV[1])
if prev and tonumber(prev) > tonumber(ARGV[3]) then
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[1])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[1])
return 1
`)

// pruneScript drops members whose last claim is before the cutoff.
// KEYS: streaks, claimed. ARGV: cutoff micros.
var pruneScript = redis.NewScript(`
local stale = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", "(" .. ARGV[1])
for _, member in ipairs(stale) do
	redis.call("ZREM", KEYS[1], member)
end
redis.call("ZREMRANGEBYSCORE", KEYS[2], "-inf", "(" .. ARGV[1])
return #stale
`)

// RedisLeaderboard ranks usernames by streak in one sorted set and tracks
// when each streak was claimed in a second one, so lapsed streaks can be
// dropped at read time.
type RedisLeaderboard struct {
	rdb        *redis.Client
	key        string
	claimedKey string
}

func NewRedisLeaderboard(rdb *redis.Client) *RedisLeaderboard {
	return &RedisLeaderboard{rdb: rdb, key: leaderboardKey, claimedKey: claimedKey}
}

func (l *RedisLeaderboard) keys() []string {
	return []string{l.key, l.claimedKey}
}

func micros(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

// Record stores s unless a standing with a later claim time is already
// there, so out-of-order writers cannot roll a score back.
func (l *RedisLeaderboard) Record(ctx context.Context, s domain.Standing) error {
	err := recordScript.Run(ctx, l.rdb, l.keys(), s.Username, s.Streak, micros(s.ClaimedAt)).Err()
	if err != nil {
		return fmt.Errorf("%w: leaderboard record: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (l *RedisLeaderboard) Top(ctx context.Context, limit int, activeSince time.Time) ([]domain.LeaderboardEntry, error) {
	if err := pruneScript.Run(ctx, l.rdb, l.keys(), micros(activeSince)).Err(); err != nil {
		return nil, fmt.Errorf("%w: leaderboard prune: %w", domain.ErrStoreUnavailable, err)
	}

	res, err := l.rdb.ZRevRangeWithScores(ctx, l.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: leaderboard top: %w", domain.ErrStoreUnavailable, err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for i, z := range res {
		username, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:     i + 1,
			Username: username,
			Streak:   int(z.Score),
		})
	}
	return entries, nil
}
