package service

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/cache"
	"github.com/Eursukkul/token-bidding/internal/lifecycle"
	"github.com/Eursukkul/token-bidding/internal/models"
	"github.com/Eursukkul/token-bidding/internal/repository"
)

// Deps is what every service is built from.
type Deps struct {
	Tx     *TxRunner
	Repos  repository.Repositories
	Clock  lifecycle.Clock
	Cache  cache.BalanceCache
	Logger *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = lifecycle.Real()
	}
	if d.Cache == nil {
		d.Cache = cache.Noop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// credit adds delta tokens to e, clamped to the single-token range, and
// appends the matching ledger entry. The ledger records the applied change,
// not the requested one, so the balance always reconciles.
func (d Deps) credit(ctx context.Context, tx *gorm.DB, e *models.Enrollment, delta int, kind models.LedgerKind, opportunityID *uint, desc string) (int, error) {
	next := min(max(e.TokensRemaining+delta, 0), models.InitialTokens)
	applied := next - e.TokensRemaining
	e.SetTokens(next)
	if applied == 0 {
		return 0, nil
	}
	entry := &models.LedgerEntry{
		ParticipantID: e.ParticipantID,
		GroupID:       e.GroupID,
		OpportunityID: opportunityID,
		Amount:        applied,
		Kind:          kind,
		Description:   desc,
	}
	if err := d.Repos.Ledger.Append(ctx, tx, entry); err != nil {
		return 0, fmt.Errorf("append %s entry: %w", kind, err)
	}
	return applied, nil
}

// refreshLocked recomputes the status of an opportunity the caller holds an
// exclusive lock on and writes it back if it moved.
func (d Deps) refreshLocked(ctx context.Context, tx *gorm.DB, opp *models.Opportunity) error {
	if lifecycle.Refresh(opp, d.Clock.Now()) {
		return d.Repos.Opportunities.UpdateStatus(ctx, tx, opp.ID, opp.Status)
	}
	return nil
}

// persistStatus writes a status computed under a shared lock. It runs after
// that transaction has finished; a failure only leaves the stored status stale.
func (d Deps) persistStatus(ctx context.Context, id uint, status models.OpportunityStatus) {
	err := d.Tx.DB().WithContext(ctx).
		Model(&models.Opportunity{}).
		Where("id = ? AND status <> ?", id, status).
		Update("status", status).Error
	if err != nil {
		d.Logger.Warn("persist opportunity status", "opportunity_id", id, "status", status, "error", err)
	}
}

func participantIDs(bids []models.Bid) []string {
	seen := make(map[string]struct{}, len(bids))
	out := make([]string, 0, len(bids))
	for _, b := range bids {
		if _, ok := seen[b.ParticipantID]; ok {
			continue
		}
		seen[b.ParticipantID] = struct{}{}
		out = append(out, b.ParticipantID)
	}
	return out
}

// lockEnrollments locks the enrollments behind bids and fails if any bidder
// has lost theirs.
func (d Deps) lockEnrollments(ctx context.Context, tx *gorm.DB, groupID uint, bids []models.Bid) (map[string]*models.Enrollment, error) {
	ids := participantIDs(bids)
	rows, err := d.Repos.Enrollments.FindManyForUpdate(ctx, tx, groupID, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.Enrollment, len(rows))
	for i := range rows {
		out[rows[i].ParticipantID] = &rows[i]
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, newError(KindIntegrityViolation, fmt.Sprintf("bidder %s has no enrollment in group %d", id, groupID), nil)
		}
	}
	return out, nil
}
