package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/lifecycle"
	"github.com/Eursukkul/token-bidding/internal/models"
	"github.com/Eursukkul/token-bidding/internal/repository"
	"github.com/Eursukkul/token-bidding/pkg/database"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	deps  Deps
	clock *lifecycle.FakeClock
	cache *mapCache

	bids      BidService
	selection SelectionService
	cascade   CascadeService
	ledger    LedgerService
	opps      OpportunityService
	directory DirectoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := database.NewSQLiteDB(dsn, 1)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{db: db, clock: lifecycle.NewFakeClock(testNow), cache: newMapCache()}
	d := Deps{
		Tx:     NewTxRunner(db, TxOptions{MaxRetries: 2, Backoff: time.Millisecond}, logger),
		Repos:  repository.New(),
		Clock:  f.clock,
		Cache:  f.cache,
		Logger: logger,
	}
	f.deps = d
	f.bids = NewBidService(d)
	f.selection = NewSelectionService(d, rand.New(rand.NewPCG(1, 2)))
	f.cascade = NewCascadeService(d)
	f.ledger = NewLedgerService(d)
	f.opps = NewOpportunityService(d)
	f.directory = NewDirectoryService(d)
	return f
}

func (f *fixture) group(t *testing.T, id uint, participants ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.directory.UpsertGroup(ctx, id, fmt.Sprintf("group-%d", id)))
	for _, p := range participants {
		created, err := f.directory.Enroll(ctx, p, id)
		require.NoError(t, err)
		require.True(t, created)
	}
}

// openOpportunity creates an opportunity whose window contains testNow.
func (f *fixture) openOpportunity(t *testing.T, groupID uint, capacity int) *models.Opportunity {
	t.Helper()
	opp, err := f.opps.CreateOpportunity(context.Background(), CreateOpportunityInput{
		GroupID:   groupID,
		Title:     "Field trip",
		OpensAt:   testNow.Add(-time.Hour),
		ClosesAt:  testNow.Add(time.Hour),
		EventDate: testNow.Add(72 * time.Hour),
		Capacity:  capacity,
	})
	require.NoError(t, err)
	require.Equal(t, models.OpportunityOpen, opp.Status)
	return opp
}

func (f *fixture) submit(t *testing.T, oppID uint, participants ...string) {
	t.Helper()
	for _, p := range participants {
		_, err := f.bids.SubmitBid(context.Background(), p, oppID, models.BidAmount)
		require.NoError(t, err, p)
	}
}

func (f *fixture) enrollment(t *testing.T, participantID string, groupID uint) models.Enrollment {
	t.Helper()
	var e models.Enrollment
	require.NoError(t, f.db.Where("participant_id = ? AND group_id = ?", participantID, groupID).First(&e).Error)
	return e
}

func (f *fixture) bid(t *testing.T, participantID string, oppID uint) models.Bid {
	t.Helper()
	var b models.Bid
	require.NoError(t, f.db.Where("participant_id = ? AND opportunity_id = ?", participantID, oppID).First(&b).Error)
	return b
}

func (f *fixture) count(t *testing.T, model any, where ...any) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

// assertConsistent checks the per-enrollment token rules and the ledger
// reconciliation for a group.
func (f *fixture) assertConsistent(t *testing.T, groupID uint) {
	t.Helper()
	var enrollments []models.Enrollment
	require.NoError(t, f.db.Where("group_id = ?", groupID).Find(&enrollments).Error)
	for _, e := range enrollments {
		assert.GreaterOrEqual(t, e.TokensRemaining, 0, e.ParticipantID)
		assert.LessOrEqual(t, e.TokensRemaining, 1, e.ParticipantID)
		assert.Equal(t, models.TokenStatusFor(e.TokensRemaining), e.TokenStatus, e.ParticipantID)
	}

	var bids []models.Bid
	require.NoError(t, f.db.Find(&bids).Error)
	for _, b := range bids {
		assert.Equal(t, b.Status.IsWinning(), b.IsWinner, "bid %d", b.ID)
	}

	drift, err := f.ledger.Reconcile(context.Background(), groupID)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, KindOf(err), err.Error())
}

// mapCache is an in-process BalanceCache that records invalidations. It
// keeps generations the same way the Redis cache does. beforeSet, when set,
// runs once just ahead of the next Set.
type mapCache struct {
	mu          sync.Mutex
	entries     map[string]models.Balance
	gens        map[string]int
	groupGens   map[uint]int
	invalidated []string
	beforeSet   func()
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]models.Balance{}, gens: map[string]int{}, groupGens: map[uint]int{}}
}

func (c *mapCache) Generation(_ context.Context, groupID uint, participantID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation(groupID, participantID)
}

func (c *mapCache) generation(groupID uint, participantID string) string {
	return fmt.Sprintf("%d:%d", c.gens[cacheKey(groupID, participantID)], c.groupGens[groupID])
}

func cacheKey(groupID uint, participantID string) string {
	return fmt.Sprintf("%d/%s", groupID, participantID)
}

func (c *mapCache) Get(_ context.Context, participantID string, groupID uint) (*models.Balance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[cacheKey(groupID, participantID)]
	if !ok {
		return nil, false
	}
	return &b, true
}

func (c *mapCache) Set(_ context.Context, b *models.Balance, generation string) {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation(b.GroupID, b.ParticipantID) != generation {
		return
	}
	c.entries[cacheKey(b.GroupID, b.ParticipantID)] = *b
}

func (c *mapCache) Invalidate(_ context.Context, groupID uint, participantIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range participantIDs {
		delete(c.entries, cacheKey(groupID, p))
		c.gens[cacheKey(groupID, p)]++
		c.invalidated = append(c.invalidated, cacheKey(groupID, p))
	}
}

func (c *mapCache) InvalidateGroup(_ context.Context, groupID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groupGens[groupID]++
	prefix := fmt.Sprintf("%d/", groupID)
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
	c.invalidated = append(c.invalidated, prefix+"*")
}
