package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupRedis(t *testing.T) *redis.Client {
	_ = godotenv.Load("../../../.env")

	rdb, err := NewRedisClient(context.Background(), RedisOptions{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", "secret_redis_pass_local"),
		DB:       1,
	})
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	return rdb
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, RedisOptions{Host: "localhost", Port: "1"})
	assert.Error(t, err)
}

func TestRedisLeaderboard_Integration(t *testing.T) {
	rdb := setupRedis(t)
	defer rdb.Close()

	ctx := context.Background()
	board := NewRedisLeaderboard(rdb)
	board.key = "test:leaderboard:streaks"
	board.claimedKey = "test:leaderboard:claimed"
	require.NoError(t, rdb.Del(ctx, board.key, board.claimedKey).Err())
	defer rdb.Del(ctx, board.key, board.claimedKey)

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	cutoff := now.Add(-48 * time.Hour)
	at := func(ago time.Duration) time.Time { return now.Add(-ago) }

	t.Run("Ranks by streak descending", func(t *testing.T) {
		require.NoError(t, board.Record(ctx, domain.Standing{Username: "alice", Streak: 4, ClaimedAt: at(time.Hour)}))
		require.NoError(t, board.Record(ctx, domain.Standing{Username: "bob", Streak: 9, ClaimedAt: at(2 * time.Hour)}))
		require.NoError(t, board.Record(ctx, domain.Standing{Username: "carol", Streak: 1, ClaimedAt: at(3 * time.Hour)}))

		top, err := board.Top(ctx, 2, cutoff)
		require.NoError(t, err)
		require.Len(t, top, 2)

		assert.Equal(t, "bob", top[0].Username)
		assert.Equal(t, 9, top[0].Streak)
		assert.Equal(t, 1, top[0].Rank)
		assert.Equal(t, "alice", top[1].Username)
		assert.Equal(t, 2, top[1].Rank)
	})

	t.Run("A newer claim overwrites the score", func(t *testing.T) {
		require.NoError(t, board.Record(ctx, domain.Standing{Username: "bob", Streak: 1, ClaimedAt: at(time.Minute)}))

		top, err := board.Top(ctx, 1, cutoff)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, "alice", top[0].Username)
	})

	t.Run("An older claim does not overwrite a newer one", func(t *testing.T) {
		require.NoError(t, board.Record(ctx, domain.Standing{Username: "alice", Streak: 50, ClaimedAt: at(30 * time.Hour)}))

		score, err := rdb.ZScore(ctx, board.key, "alice").Result()
		require.NoError(t, err)
		assert.Equal(t, float64(4), score)
	})

	t.Run("Lapsed streaks are not ranked", func(t *testing.T) {
		require.NoError(t, board.Record(ctx, domain.Standing{Username: "dave", Streak: 100, ClaimedAt: at(50 * time.Hour)}))

		top, err := board.Top(ctx, 10, cutoff)
		require.NoError(t, err)
		for _, e := range top {
			assert.NotEqual(t, "dave", e.Username)
		}
		assert.Len(t, top, 3)

		_, err = rdb.ZScore(ctx, board.key, "dave").Result()
		assert.ErrorIs(t, err, redis.Nil, "lapsed member is pruned from the ranking set")
		_, err = rdb.ZScore(ctx, board.claimedKey, "dave").Result()
		assert.ErrorIs(t, err, redis.Nil)
	})
}
