package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/models"
)

// DirectoryService applies group and enrollment records pushed by the
// enrollment directory. Both operations are safe to replay.
type DirectoryService interface {
	UpsertGroup(ctx context.Context, groupID uint, name string) error
	Enroll(ctx context.Context, participantID string, groupID uint) (bool, error)
}

type directoryService struct {
	Deps
}

func NewDirectoryService(d Deps) DirectoryService {
	return &directoryService{Deps: d.withDefaults()}
}

func (s *directoryService) UpsertGroup(ctx context.Context, groupID uint, name string) error {
	if groupID == 0 || strings.TrimSpace(name) == "" {
		return newError(KindInvalidArgument, "group id and name are required", nil)
	}
	return s.Tx.Run(ctx, "upsert_group", func(tx *gorm.DB) error {
		return s.Repos.Groups.Upsert(ctx, tx, &models.Group{ID: groupID, Name: name})
	})
}

// Enroll creates the enrollment with its initial token. An existing
// enrollment is left untouched and reported as not created.
func (s *directoryService) Enroll(ctx context.Context, participantID string, groupID uint) (bool, error) {
	if strings.TrimSpace(participantID) == "" || groupID == 0 {
		return false, newError(KindInvalidArgument, "participant id and group id are required", nil)
	}
	created := false
	err := s.Tx.Run(ctx, "enroll", func(tx *gorm.DB) error {
		if _, err := s.Repos.Groups.FindByID(ctx, tx, groupID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		e := &models.Enrollment{
			ParticipantID: participantID,
			GroupID:       groupID,
			BiddingResult: models.ResultPending,
		}
		e.SetTokens(models.InitialTokens)
		var err error
		created, err = s.Repos.Enrollments.CreateIfAbsent(ctx, tx, e)
		return err
	})
	return created, err
}
