package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/models"
)

type BidRepository interface {
	Create(ctx context.Context, tx *gorm.DB, bid *models.Bid) error
	FindByPair(ctx context.Context, tx *gorm.DB, participantID string, opportunityID uint) (*models.Bid, error)
	FindByPairForUpdate(ctx context.Context, tx *gorm.DB, participantID string, opportunityID uint) (*models.Bid, error)
	ListByOpportunity(ctx context.Context, tx *gorm.DB, opportunityID uint, status *models.BidStatus) ([]models.Bid, error)
	ListForUpdate(ctx context.Context, tx *gorm.DB, opportunityID uint, status *models.BidStatus) ([]models.Bid, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, bidID uint, status models.BidStatus) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, bidID uint) error
	DeleteByOpportunity(ctx context.Context, tx *gorm.DB, opportunityID uint) (int64, error)
	CountByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (int64, error)
}

type bidRepository struct{}

func NewBidRepository() BidRepository {
	return &bidRepository{}
}

func (r *bidRepository) Create(ctx context.Context, tx *gorm.DB, bid *models.Bid) error {
	return tx.WithContext(ctx).Create(bid).Error
}

func (r *bidRepository) FindByPair(ctx context.Context, tx *gorm.DB, participantID string, opportunityID uint) (*models.Bid, error) {
	var bid models.Bid
	err := tx.WithContext(ctx).
		Where("participant_id = ? AND opportunity_id = ?", participantID, opportunityID).
		First(&bid).Error
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *bidRepository) FindByPairForUpdate(ctx context.Context, tx *gorm.DB, participantID string, opportunityID uint) (*models.Bid, error) {
	var bid models.Bid
	err := forUpdate(tx.WithContext(ctx)).
		Where("participant_id = ? AND opportunity_id = ?", participantID, opportunityID).
		First(&bid).Error
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *bidRepository) ListByOpportunity(ctx context.Context, tx *gorm.DB, opportunityID uint, status *models.BidStatus) ([]models.Bid, error) {
	var bids []models.Bid
	q := tx.WithContext(ctx).Where("opportunity_id = ?", opportunityID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	err := q.Order("id ASC").Find(&bids).Error
	return bids, err
}

// ListForUpdate locks the opportunity's bids in id order.
func (r *bidRepository) ListForUpdate(ctx context.Context, tx *gorm.DB, opportunityID uint, status *models.BidStatus) ([]models.Bid, error) {
	var bids []models.Bid
	q := forUpdate(tx.WithContext(ctx)).Where("opportunity_id = ?", opportunityID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	err := q.Order("id ASC").Find(&bids).Error
	return bids, err
}

// UpdateStatus writes status and the matching is_winner flag. The returned
// count is zero when the bid already had that status.
func (r *bidRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, bidID uint, status models.BidStatus) (int64, error) {
	res := tx.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id = ? AND (status <> ? OR is_winner <> ?)", bidID, status, status.IsWinning()).
		Updates(map[string]any{"status": status, "is_winner": status.IsWinning()})
	return res.RowsAffected, res.Error
}

func (r *bidRepository) Delete(ctx context.Context, tx *gorm.DB, bidID uint) error {
	return tx.WithContext(ctx).Delete(&models.Bid{}, bidID).Error
}

func (r *bidRepository) DeleteByOpportunity(ctx context.Context, tx *gorm.DB, opportunityID uint) (int64, error) {
	res := tx.WithContext(ctx).Where("opportunity_id = ?", opportunityID).Delete(&models.Bid{})
	return res.RowsAffected, res.Error
}

func (r *bidRepository) CountByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (int64, error) {
	var n int64
	err := tx.WithContext(ctx).
		Model(&models.Bid{}).
		Joins("JOIN opportunities ON opportunities.id = bids.opportunity_id").
		Where("opportunities.group_id = ?", groupID).
		Count(&n).Error
	return n, err
}
