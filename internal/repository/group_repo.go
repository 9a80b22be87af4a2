package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Eursukkul/token-bidding/internal/models"
)

type GroupRepository interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Group, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Group, error)
	Upsert(ctx context.Context, tx *gorm.DB, group *models.Group) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
}

type groupRepository struct{}

func NewGroupRepository() GroupRepository {
	return &groupRepository{}
}

func (r *groupRepository) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Group, error) {
	var g models.Group
	if err := tx.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *groupRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Group, error) {
	var g models.Group
	if err := forUpdate(tx.WithContext(ctx)).First(&g, id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// Upsert inserts the group or refreshes its name when the id already exists.
func (r *groupRepository) Upsert(ctx context.Context, tx *gorm.DB, group *models.Group) error {
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(group).Error
}

func (r *groupRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return tx.WithContext(ctx).Delete(&models.Group{}, id).Error
}
