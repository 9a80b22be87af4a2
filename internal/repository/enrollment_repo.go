package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Eursukkul/token-bidding/internal/models"
)

type EnrollmentRepository interface {
	Find(ctx context.Context, tx *gorm.DB, participantID string, groupID uint) (*models.Enrollment, error)
	FindForUpdate(ctx context.Context, tx *gorm.DB, participantID string, groupID uint) (*models.Enrollment, error)
	FindManyForUpdate(ctx context.Context, tx *gorm.DB, groupID uint, participantIDs []string) ([]models.Enrollment, error)
	ListByGroup(ctx context.Context, tx *gorm.DB, groupID uint) ([]models.Enrollment, error)
	ListSpentForUpdate(ctx context.Context, tx *gorm.DB, groupID uint) ([]models.Enrollment, error)
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, e *models.Enrollment) (bool, error)
	Save(ctx context.Context, tx *gorm.DB, e *models.Enrollment) error
	CountByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (int64, error)
	DeleteByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (int64, error)
}

type enrollmentRepository struct{}

func NewEnrollmentRepository() EnrollmentRepository {
	return &enrollmentRepository{}
}

func (r *enrollmentRepository) Find(ctx context.Context, tx *gorm.DB, participantID string, groupID uint) (*models.Enrollment, error) {
	var e models.Enrollment
	err := tx.WithContext(ctx).
		Where("participant_id = ? AND group_id = ?", participantID, groupID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *enrollmentRepository) FindForUpdate(ctx context.Context, tx *gorm.DB, participantID string, groupID uint) (*models.Enrollment, error) {
	var e models.Enrollment
	err := forUpdate(tx.WithContext(ctx)).
		Where("participant_id = ? AND group_id = ?", participantID, groupID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// FindManyForUpdate locks the given participants' enrollments in
// participant_id order. Missing rows are simply absent from the result.
func (r *enrollmentRepository) FindManyForUpdate(ctx context.Context, tx *gorm.DB, groupID uint, participantIDs []string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	if len(participantIDs) == 0 {
		return out, nil
	}
	err := forUpdate(tx.WithContext(ctx)).
		Where("group_id = ? AND participant_id IN ?", groupID, participantIDs).
		Order("participant_id ASC").
		Find(&out).Error
	return out, err
}

func (r *enrollmentRepository) ListByGroup(ctx context.Context, tx *gorm.DB, groupID uint) ([]models.Enrollment, error) {
	var out []models.Enrollment
	err := tx.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("participant_id ASC").
		Find(&out).Error
	return out, err
}

func (r *enrollmentRepository) ListSpentForUpdate(ctx context.Context, tx *gorm.DB, groupID uint) ([]models.Enrollment, error) {
	var out []models.Enrollment
	err := forUpdate(tx.WithContext(ctx)).
		Where("group_id = ? AND tokens_remaining < ?", groupID, models.InitialTokens).
		Order("participant_id ASC").
		Find(&out).Error
	return out, err
}

// CreateIfAbsent inserts e unless the (participant, group) pair already
// exists. It reports whether a row was written.
func (r *enrollmentRepository) CreateIfAbsent(ctx context.Context, tx *gorm.DB, e *models.Enrollment) (bool, error) {
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(e)
	return res.RowsAffected > 0, res.Error
}

func (r *enrollmentRepository) Save(ctx context.Context, tx *gorm.DB, e *models.Enrollment) error {
	return tx.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("participant_id = ? AND group_id = ?", e.ParticipantID, e.GroupID).
		Updates(map[string]any{
			"tokens_remaining": e.TokensRemaining,
			"token_status":     e.TokenStatus,
			"bidding_result":   e.BiddingResult,
		}).Error
}

func (r *enrollmentRepository) CountByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (int64, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&models.Enrollment{}).Where("group_id = ?", groupID).Count(&n).Error
	return n, err
}

func (r *enrollmentRepository) DeleteByGroup(ctx context.Context, tx *gorm.DB, groupID uint) (int64, error) {
	res := tx.WithContext(ctx).Where("group_id = ?", groupID).Delete(&models.Enrollment{})
	return res.RowsAffected, res.Error
}
