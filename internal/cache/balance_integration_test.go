//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eursukkul/token-bidding/internal/models"
)

func newTestCache(t *testing.T) *RedisBalanceCache {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return NewRedisBalanceCache(rdb, time.Minute)
}

func TestRedisBalanceCache_RoundTripAndInvalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	b := &models.Balance{ParticipantID: "p-cache", GroupID: 9001, TokensRemaining: 1, TokenStatus: models.TokenUnused}

	c.Set(ctx, b, c.Generation(ctx, 9001, "p-cache"))
	got, ok := c.Get(ctx, "p-cache", 9001)
	require.True(t, ok)
	assert.Equal(t, b, got)

	c.Invalidate(ctx, 9001, "p-cache")
	_, ok = c.Get(ctx, "p-cache", 9001)
	assert.False(t, ok)
}

func TestRedisBalanceCache_InvalidateGroup(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	c.Set(ctx, &models.Balance{ParticipantID: "a", GroupID: 9002}, c.Generation(ctx, 9002, "a"))
	c.Set(ctx, &models.Balance{ParticipantID: "b", GroupID: 9002}, c.Generation(ctx, 9002, "b"))

	c.InvalidateGroup(ctx, 9002)

	_, okA := c.Get(ctx, "a", 9002)
	_, okB := c.Get(ctx, "b", 9002)
	assert.False(t, okA)
	assert.False(t, okB)
}

func TestRedisBalanceCache_DropsSnapshotReadBeforeInvalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	gen := c.Generation(ctx, 9003, "p")
	c.Invalidate(ctx, 9003, "p")
	c.Set(ctx, &models.Balance{ParticipantID: "p", GroupID: 9003, TokensRemaining: 1}, gen)
	_, ok := c.Get(ctx, "p", 9003)
	assert.False(t, ok)

	gen = c.Generation(ctx, 9003, "q")
	c.InvalidateGroup(ctx, 9003)
	c.Set(ctx, &models.Balance{ParticipantID: "q", GroupID: 9003, TokensRemaining: 1}, gen)
	_, ok = c.Get(ctx, "q", 9003)
	assert.False(t, ok)

	gen = c.Generation(ctx, 9003, "p")
	c.Set(ctx, &models.Balance{ParticipantID: "p", GroupID: 9003}, gen)
	_, ok = c.Get(ctx, "p", 9003)
	assert.True(t, ok)
}
