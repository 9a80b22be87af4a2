package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/models"
)

type OpportunityRepository interface {
	Create(ctx context.Context, tx *gorm.DB, opp *models.Opportunity) error
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Opportunity, error)
	FindByIDForShare(ctx context.Context, tx *gorm.DB, id uint) (*models.Opportunity, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Opportunity, error)
	ListByGroup(ctx context.Context, tx *gorm.DB, groupID uint) ([]models.Opportunity, error)
	ListIDsByGroupForUpdate(ctx context.Context, tx *gorm.DB, groupID uint) ([]uint, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.OpportunityStatus) error
	CountByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
}

type opportunityRepository struct{}

func NewOpportunityRepository() OpportunityRepository {
	return &opportunityRepository{}
}

func (r *opportunityRepository) Create(ctx context.Context, tx *gorm.DB, opp *models.Opportunity) error {
	return tx.WithContext(ctx).Create(opp).Error
}

func (r *opportunityRepository) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Opportunity, error) {
	var opp models.Opportunity
	if err := tx.WithContext(ctx).First(&opp, id).Error; err != nil {
		return nil, err
	}
	return &opp, nil
}

// FindByIDForShare blocks deletion and selection of the opportunity while
// letting concurrent submits through.
func (r *opportunityRepository) FindByIDForShare(ctx context.Context, tx *gorm.DB, id uint) (*models.Opportunity, error) {
	var opp models.Opportunity
	if err := forShare(tx.WithContext(ctx)).First(&opp, id).Error; err != nil {
		return nil, err
	}
	return &opp, nil
}

func (r *opportunityRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Opportunity, error) {
	var opp models.Opportunity
	if err := forUpdate(tx.WithContext(ctx)).First(&opp, id).Error; err != nil {
		return nil, err
	}
	return &opp, nil
}

func (r *opportunityRepository) ListByGroup(ctx context.Context, tx *gorm.DB, groupID uint) ([]models.Opportunity, error) {
	var out []models.Opportunity
	err := tx.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("opens_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *opportunityRepository) ListIDsByGroupForUpdate(ctx context.Context, tx *gorm.DB, groupID uint) ([]uint, error) {
	var ids []uint
	err := forUpdate(tx.WithContext(ctx).Model(&models.Opportunity{})).
		Where("group_id = ?", groupID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *opportunityRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.OpportunityStatus) error {
	return tx.WithContext(ctx).
		Model(&models.Opportunity{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *opportunityRepository) CountByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (int64, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&models.Opportunity{}).Where("group_id = ?", groupID).Count(&n).Error
	return n, err
}

func (r *opportunityRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return tx.WithContext(ctx).Delete(&models.Opportunity{}, id).Error
}
