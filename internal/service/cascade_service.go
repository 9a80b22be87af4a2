package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/metrics"
	"github.com/Eursukkul/token-bidding/internal/models"
)

// DeletionCounts reports what existed in a group before it was deleted.
type DeletionCounts struct {
	Enrollments   int64 `json:"enrollments"`
	Opportunities int64 `json:"opportunities"`
	Bids          int64 `json:"bids"`
	LedgerEntries int64 `json:"ledger_entries"`
}

type CascadeService interface {
	DeleteOpportunity(ctx context.Context, opportunityID uint) error
	DeleteGroup(ctx context.Context, groupID uint) (DeletionCounts, error)
}

type cascadeService struct {
	Deps
}

func NewCascadeService(d Deps) CascadeService {
	return &cascadeService{Deps: d.withDefaults()}
}

// DeleteOpportunity refunds every bidder still holding a spent token on the
// opportunity, then removes its bids and the opportunity itself. Deleting an
// opportunity that does not exist succeeds.
func (s *cascadeService) DeleteOpportunity(ctx context.Context, opportunityID uint) error {
	var (
		groupID  uint
		refunded int
	)
	err := s.Tx.Run(ctx, "delete_opportunity", func(tx *gorm.DB) error {
		refunded = 0
		opp, err := s.Repos.Opportunities.FindByIDForUpdate(ctx, tx, opportunityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		groupID = opp.GroupID
		refunded, err = s.deleteOpportunity(ctx, tx, opp)
		return err
	})
	if err != nil {
		return err
	}

	if groupID != 0 {
		s.Cache.InvalidateGroup(ctx, groupID)
		metrics.Refunds.WithLabelValues("opportunity_deleted").Add(float64(refunded))
		s.Logger.Info("opportunity deleted", "opportunity_id", opportunityID, "refunded", refunded)
	}
	return nil
}

// deleteOpportunity runs the refund-then-delete cascade for one locked
// opportunity and returns how many participants got a token back.
func (s *cascadeService) deleteOpportunity(ctx context.Context, tx *gorm.DB, opp *models.Opportunity) (int, error) {
	bids, err := s.Repos.Bids.ListForUpdate(ctx, tx, opp.ID, nil)
	if err != nil {
		return 0, err
	}
	enrollments, err := s.lockEnrollments(ctx, tx, opp.GroupID, bids)
	if err != nil {
		return 0, err
	}
	net, err := s.Repos.Ledger.NetByOpportunity(ctx, tx, opp.ID)
	if err != nil {
		return 0, err
	}

	refunded := 0
	for _, id := range participantIDs(bids) {
		e := enrollments[id]
		e.BiddingResult = models.ResultPending
		if outstanding := -net[id]; outstanding > 0 {
			oid := opp.ID
			applied, err := s.credit(ctx, tx, e, outstanding, models.LedgerRefund, &oid,
				fmt.Sprintf("refund for deleted opportunity %d", opp.ID))
			if err != nil {
				return 0, err
			}
			if applied > 0 {
				refunded++
			}
		}
		if err := s.Repos.Enrollments.Save(ctx, tx, e); err != nil {
			return 0, err
		}
	}

	if _, err := s.Repos.Bids.DeleteByOpportunity(ctx, tx, opp.ID); err != nil {
		return 0, err
	}
	if err := s.Repos.Opportunities.Delete(ctx, tx, opp.ID); err != nil {
		return 0, err
	}
	return refunded, nil
}

func (s *cascadeService) DeleteGroup(ctx context.Context, groupID uint) (DeletionCounts, error) {
	var counts DeletionCounts
	err := s.Tx.Run(ctx, "delete_group", func(tx *gorm.DB) error {
		counts = DeletionCounts{}
		if _, err := s.Repos.Groups.FindByIDForUpdate(ctx, tx, groupID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}

		// 1. Count what is about to go
		var err error
		if counts.Enrollments, err = s.Repos.Enrollments.CountByGroup(ctx, tx, groupID); err != nil {
			return err
		}
		if counts.Opportunities, err = s.Repos.Opportunities.CountByGroup(ctx, tx, groupID); err != nil {
			return err
		}
		if counts.Bids, err = s.Repos.Bids.CountByGroup(ctx, tx, groupID); err != nil {
			return err
		}
		if counts.LedgerEntries, err = s.Repos.Ledger.CountByGroup(ctx, tx, groupID); err != nil {
			return err
		}

		// 2. Per-opportunity refund and delete
		ids, err := s.Repos.Opportunities.ListIDsByGroupForUpdate(ctx, tx, groupID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			opp, err := s.Repos.Opportunities.FindByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if _, err := s.deleteOpportunity(ctx, tx, opp); err != nil {
				return err
			}
		}

		// 3. Ledger, enrollments, then the group
		if _, err := s.Repos.Ledger.DeleteByGroup(ctx, tx, groupID); err != nil {
			return err
		}
		if _, err := s.Repos.Enrollments.DeleteByGroup(ctx, tx, groupID); err != nil {
			return err
		}
		return s.Repos.Groups.Delete(ctx, tx, groupID)
	})
	if err != nil {
		return DeletionCounts{}, err
	}

	s.Cache.InvalidateGroup(ctx, groupID)
	s.Logger.Info("group deleted", "group_id", groupID,
		"enrollments", counts.Enrollments, "opportunities", counts.Opportunities,
		"bids", counts.Bids, "ledger_entries", counts.LedgerEntries)
	return counts, nil
}
