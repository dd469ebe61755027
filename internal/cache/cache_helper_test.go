package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func newTestManager(t *testing.T) (*CacheManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheManager(client), mr
}

func TestCacheHelper_SetGet(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, cm.Test.Set(ctx, "a", payload{Name: "x", Score: 1.5}, time.Minute))
	assert.True(t, mr.Exists("quiz:test:a"))

	var got payload
	require.NoError(t, cm.Test.Get(ctx, "a", &got))
	assert.Equal(t, payload{Name: "x", Score: 1.5}, got)

	err := cm.Test.Get(ctx, "missing", &got)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheHelper_NilClientDegrades(t *testing.T) {
	cm := NewCacheManager(nil)
	ctx := context.Background()

	assert.False(t, cm.Enabled())
	assert.NoError(t, cm.Leaderboard.Set(ctx, "k", 1, time.Minute))
	assert.ErrorIs(t, cm.Leaderboard.Get(ctx, "k", new(int)), ErrCacheNotAvailable)
	assert.NoError(t, cm.Leaderboard.InvalidatePattern(ctx, "*"))
	assert.ErrorIs(t, cm.HealthCheck(ctx), ErrCacheNotAvailable)

	calls := 0
	var out int
	err := cm.Leaderboard.CacheOrExecute(ctx, "k", &out, time.Minute, func() (interface{}, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, out)
	assert.Equal(t, 1, calls)
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	cm, _ := newTestManager(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return []payload{{Name: "a", Score: 90}}, nil
	}

	var first, second []payload
	require.NoError(t, cm.Leaderboard.CacheOrExecute(ctx, "test:1:limit:10", &first, time.Minute, fetch))
	require.NoError(t, cm.Leaderboard.CacheOrExecute(ctx, "test:1:limit:10", &second, time.Minute, fetch))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	boom := errors.New("boom")
	err := cm.Leaderboard.CacheOrExecute(ctx, "other", &first, time.Minute, func() (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestCacheManager_InvalidateLeaderboards(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()
	cat := uint(3)

	require.NoError(t, cm.Leaderboard.Set(ctx, TestLeaderboardKey(1, 10), 1, time.Minute))
	require.NoError(t, cm.Leaderboard.Set(ctx, TestLeaderboardKey(2, 10), 1, time.Minute))
	require.NoError(t, cm.Leaderboard.Set(ctx, GlobalLeaderboardKey(nil, 10), 1, time.Minute))
	require.NoError(t, cm.Leaderboard.Set(ctx, GlobalLeaderboardKey(&cat, 10), 1, time.Minute))

	cm.InvalidateLeaderboards(ctx, 1)

	assert.False(t, mr.Exists("quiz:leaderboard:test:1:limit:10"))
	assert.True(t, mr.Exists("quiz:leaderboard:test:2:limit:10"))
	assert.False(t, mr.Exists("quiz:leaderboard:global:all:limit:10"))
	assert.False(t, mr.Exists("quiz:leaderboard:global:cat:3:limit:10"))
}

func TestCacheManager_InvalidateCompetency(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()
	cat := uint(1)

	require.NoError(t, cm.Competency.Set(ctx, CompetencyKey("u1", nil), 1, time.Minute))
	require.NoError(t, cm.Competency.Set(ctx, CompetencyKey("u1", &cat), 1, time.Minute))
	require.NoError(t, cm.Competency.Set(ctx, CompetencyKey("u2", nil), 1, time.Minute))

	cm.InvalidateCompetency(ctx, "u1")

	assert.False(t, mr.Exists("quiz:competency:user:u1:all"))
	assert.False(t, mr.Exists("quiz:competency:user:u1:cat:1"))
	assert.True(t, mr.Exists("quiz:competency:user:u2:all"))
}
