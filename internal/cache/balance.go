// Package cache holds the read-through cache in front of ledger balances.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Eursukkul/token-bidding/internal/models"
)

// BalanceCache stores balance snapshots. Misses and cache errors are both
// reported as a miss; the database stays the source of truth.
//
// Readers take a Generation before loading from the database and hand it to
// Set. Every invalidation moves the generation, so a snapshot loaded before
// a concurrent write is dropped instead of stored.
type BalanceCache interface {
	Get(ctx context.Context, participantID string, groupID uint) (*models.Balance, bool)
	Generation(ctx context.Context, groupID uint, participantID string) string
	Set(ctx context.Context, b *models.Balance, generation string)
	Invalidate(ctx context.Context, groupID uint, participantIDs ...string)
	InvalidateGroup(ctx context.Context, groupID uint)
}

var errStale = errors.New("balance invalidated during read")

type RedisBalanceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisBalanceCache(rdb *redis.Client, ttl time.Duration) *RedisBalanceCache {
	return &RedisBalanceCache{rdb: rdb, ttl: ttl}
}

func (c *RedisBalanceCache) Get(ctx context.Context, participantID string, groupID uint) (*models.Balance, bool) {
	data, err := c.rdb.Get(ctx, balanceKey(groupID, participantID)).Bytes()
	if err != nil {
		return nil, false
	}
	var b models.Balance
	if json.Unmarshal(data, &b) != nil {
		return nil, false
	}
	return &b, true
}

// Generation returns the pair and group invalidation counters. On a Redis
// error it returns "", which never matches a stored generation.
func (c *RedisBalanceCache) Generation(ctx context.Context, groupID uint, participantID string) string {
	vals, err := c.rdb.MGet(ctx, pairGenKey(groupID, participantID), groupGenKey(groupID)).Result()
	if err != nil {
		return ""
	}
	return generationOf(vals)
}

// Set stores b only if neither counter moved since generation was read. The
// counters are watched, so an invalidation landing between the check and the
// write aborts the write.
func (c *RedisBalanceCache) Set(ctx context.Context, b *models.Balance, generation string) {
	data, err := json.Marshal(b)
	if err != nil {
		return
	}
	key := balanceKey(b.GroupID, b.ParticipantID)
	pairGen, groupGen := pairGenKey(b.GroupID, b.ParticipantID), groupGenKey(b.GroupID)

	_ = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		vals, err := tx.MGet(ctx, pairGen, groupGen).Result()
		if err != nil {
			return err
		}
		if generation == "" || generationOf(vals) != generation {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			pipe.SAdd(ctx, groupKey(b.GroupID), key)
			pipe.Expire(ctx, groupKey(b.GroupID), c.ttl)
			return nil
		})
		return err
	}, pairGen, groupGen)
}

func (c *RedisBalanceCache) Invalidate(ctx context.Context, groupID uint, participantIDs ...string) {
	if len(participantIDs) == 0 {
		return
	}
	keys := make([]string, len(participantIDs))
	_, _ = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, p := range participantIDs {
			keys[i] = balanceKey(groupID, p)
			pipe.Incr(ctx, pairGenKey(groupID, p))
			pipe.Expire(ctx, pairGenKey(groupID, p), c.genTTL())
		}
		pipe.Del(ctx, keys...)
		return nil
	})
}

// InvalidateGroup drops every cached balance in the group, using the member
// set written alongside each snapshot.
func (c *RedisBalanceCache) InvalidateGroup(ctx context.Context, groupID uint) {
	_, _ = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, groupGenKey(groupID))
		pipe.Expire(ctx, groupGenKey(groupID), c.genTTL())
		return nil
	})
	keys, err := c.rdb.SMembers(ctx, groupKey(groupID)).Result()
	if err == nil && len(keys) > 0 {
		c.rdb.Del(ctx, keys...)
	}
	c.rdb.Del(ctx, groupKey(groupID))
}

// genTTL outlives any snapshot, so a counter cannot expire and reset while a
// snapshot taken against it is still cached.
func (c *RedisBalanceCache) genTTL() time.Duration { return 2 * c.ttl }

func generationOf(vals []any) string {
	out := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = s
		} else {
			out[i] = "0"
		}
	}
	return fmt.Sprintf("%s:%s", out[0], out[1])
}

func balanceKey(groupID uint, participantID string) string {
	return fmt.Sprintf("balance:%d:%s", groupID, participantID)
}

func groupKey(groupID uint) string { return fmt.Sprintf("balance-members:%d", groupID) }

func pairGenKey(groupID uint, participantID string) string {
	return fmt.Sprintf("balance-gen:%d:%s", groupID, participantID)
}

func groupGenKey(groupID uint) string { return fmt.Sprintf("balance-gen:%d", groupID) }

// Noop is used when no Redis is configured.
type Noop struct{}

func (Noop) Get(context.Context, string, uint) (*models.Balance, bool) { return nil, false }
func (Noop) Generation(context.Context, uint, string) string           { return "" }
func (Noop) Set(context.Context, *models.Balance, string)              {}
func (Noop) Invalidate(context.Context, uint, ...string)               {}
func (Noop) InvalidateGroup(context.Context, uint)                     {}
