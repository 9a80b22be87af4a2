package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/models"
)

type LedgerRepository interface {
	Append(ctx context.Context, tx *gorm.DB, entry *models.LedgerEntry) error
	ListByParticipant(ctx context.Context, tx *gorm.DB, participantID string, groupID uint) ([]models.LedgerEntry, error)
	Sum(ctx context.Context, tx *gorm.DB, participantID string, groupID uint) (int, error)
	SumByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (map[string]int, error)
	NetByOpportunity(ctx context.Context, tx *gorm.DB, opportunityID uint) (map[string]int, error)
	NetForPair(ctx context.Context, tx *gorm.DB, participantID string, opportunityID uint) (int, error)
	DeleteForPair(ctx context.Context, tx *gorm.DB, participantID string, opportunityID uint) (int64, error)
	CountByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (int64, error)
	DeleteByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (int64, error)
}

type ledgerRepository struct{}

func NewLedgerRepository() LedgerRepository {
	return &ledgerRepository{}
}

type participantSum struct {
	ParticipantID string
	Total         int
}

func (r *ledgerRepository) Append(ctx context.Context, tx *gorm.DB, entry *models.LedgerEntry) error {
	return tx.WithContext(ctx).Create(entry).Error
}

func (r *ledgerRepository) ListByParticipant(ctx context.Context, tx *gorm.DB, participantID string, groupID uint) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	err := tx.WithContext(ctx).
		Where("participant_id = ? AND group_id = ?", participantID, groupID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *ledgerRepository) Sum(ctx context.Context, tx *gorm.DB, participantID string, groupID uint) (int, error) {
	var total int
	err := tx.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("participant_id = ? AND group_id = ?", participantID, groupID).
		Scan(&total).Error
	return total, err
}

func (r *ledgerRepository) SumByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (map[string]int, error) {
	var rows []participantSum
	err := tx.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("participant_id, SUM(amount) AS total").
		Where("group_id = ?", groupID).
		Group("participant_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toMap(rows), nil
}

// NetByOpportunity returns each participant's summed ledger movement on one
// opportunity. A negative value means the bid's spend is still outstanding.
func (r *ledgerRepository) NetByOpportunity(ctx context.Context, tx *gorm.DB, opportunityID uint) (map[string]int, error) {
	var rows []participantSum
	err := tx.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("participant_id, SUM(amount) AS total").
		Where("opportunity_id = ?", opportunityID).
		Group("participant_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toMap(rows), nil
}

func (r *ledgerRepository) NetForPair(ctx context.Context, tx *gorm.DB, participantID string, opportunityID uint) (int, error) {
	var total int
	err := tx.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("participant_id = ? AND opportunity_id = ?", participantID, opportunityID).
		Scan(&total).Error
	return total, err
}

// DeleteForPair removes the bid and refund entries a participant accrued on
// one opportunity.
func (r *ledgerRepository) DeleteForPair(ctx context.Context, tx *gorm.DB, participantID string, opportunityID uint) (int64, error) {
	res := tx.WithContext(ctx).
		Where("participant_id = ? AND opportunity_id = ? AND kind IN ?",
			participantID, opportunityID, []models.LedgerKind{models.LedgerBid, models.LedgerRefund}).
		Delete(&models.LedgerEntry{})
	return res.RowsAffected, res.Error
}

func (r *ledgerRepository) CountByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (int64, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&models.LedgerEntry{}).Where("group_id = ?", groupID).Count(&n).Error
	return n, err
}

func (r *ledgerRepository) DeleteByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (int64, error) {
	res := tx.WithContext(ctx).Where("group_id = ?", groupID).Delete(&models.LedgerEntry{})
	return res.RowsAffected, res.Error
}

func toMap(rows []participantSum) map[string]int {
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.ParticipantID] = r.Total
	}
	return out
}
