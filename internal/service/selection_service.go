package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/metrics"
	"github.com/Eursukkul/token-bidding/internal/models"
)

type SelectionMode string

const (
	ModeAutoAdmit SelectionMode = "auto_admit"
	ModeContested SelectionMode = "contested"
)

type SelectionResult struct {
	OpportunityID uint          `json:"opportunity_id"`
	Mode          SelectionMode `json:"mode"`
	Capacity      int           `json:"capacity"`
	TotalBids     int           `json:"total_bids"`
	Winners       []string      `json:"winners"`
	Losers        []string      `json:"losers"`
	Refunded      int           `json:"refunded"`
}

type ResetResult struct {
	OpportunityID    uint `json:"opportunity_id"`
	ResetBids        int  `json:"reset_bids"`
	ResetEnrollments int  `json:"reset_enrollments"`
}

type SelectionService interface {
	RunSelection(ctx context.Context, opportunityID uint, capacity int) (*SelectionResult, error)
	ResetSelection(ctx context.Context, opportunityID uint) (*ResetResult, error)
}

type selectionService struct {
	Deps

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelectionService builds the selection engine. rng drives the draw; nil
// seeds one from the runtime's entropy source.
func NewSelectionService(d Deps, rng *rand.Rand) SelectionService {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &selectionService{Deps: d.withDefaults(), rng: rng}
}

func (s *selectionService) RunSelection(ctx context.Context, opportunityID uint, capacity int) (*SelectionResult, error) {
	if capacity <= 0 {
		return nil, ErrCapacityInvalid
	}

	var (
		result  *SelectionResult
		groupID uint
	)
	err := s.Tx.Run(ctx, "run_selection", func(tx *gorm.DB) error {
		// 1. Lock order: opportunity, bids by id, enrollments
		opp, err := s.Repos.Opportunities.FindByIDForUpdate(ctx, tx, opportunityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOpportunityNotFound
			}
			return err
		}
		groupID = opp.GroupID
		if err := s.refreshLocked(ctx, tx, opp); err != nil {
			return err
		}

		placed := models.BidPlaced
		bids, err := s.Repos.Bids.ListForUpdate(ctx, tx, opportunityID, &placed)
		if err != nil {
			return err
		}
		enrollments, err := s.lockEnrollments(ctx, tx, opp.GroupID, bids)
		if err != nil {
			return err
		}

		result = &SelectionResult{
			OpportunityID: opportunityID,
			Capacity:      capacity,
			TotalBids:     len(bids),
			Winners:       []string{},
			Losers:        []string{},
		}

		// 2. Admit or draw
		if len(bids) <= capacity {
			result.Mode = ModeAutoAdmit
			result.Refunded, err = s.autoAdmit(ctx, tx, opp, bids, enrollments, result)
			return err
		}
		result.Mode = ModeContested
		return s.contested(ctx, tx, bids, enrollments, capacity, result)
	})
	if err != nil {
		return nil, err
	}

	s.Cache.InvalidateGroup(ctx, groupID)
	metrics.Selections.WithLabelValues(string(result.Mode)).Inc()
	if result.Refunded > 0 {
		metrics.Refunds.WithLabelValues("auto_admit").Add(float64(result.Refunded))
	}
	s.Logger.Info("selection completed",
		"opportunity_id", opportunityID, "mode", result.Mode,
		"bids", result.TotalBids, "capacity", capacity, "winners", len(result.Winners))
	return result, nil
}

// autoAdmit wins every bid and hands each bidder's token back. A bid whose
// spend was already refunded by an earlier run is not refunded again.
func (s *selectionService) autoAdmit(ctx context.Context, tx *gorm.DB, opp *models.Opportunity, bids []models.Bid, enrollments map[string]*models.Enrollment, result *SelectionResult) (int, error) {
	net, err := s.Repos.Ledger.NetByOpportunity(ctx, tx, opp.ID)
	if err != nil {
		return 0, err
	}

	refunded := 0
	for _, bid := range bids {
		if _, err := s.Repos.Bids.UpdateStatus(ctx, tx, bid.ID, models.BidAutoSelected); err != nil {
			return 0, err
		}
		e := enrollments[bid.ParticipantID]
		e.BiddingResult = models.ResultWon
		if outstanding := -net[bid.ParticipantID]; outstanding > 0 {
			oid := opp.ID
			applied, err := s.credit(ctx, tx, e, outstanding, models.LedgerRefund, &oid,
				fmt.Sprintf("auto-admit refund for opportunity %d", opp.ID))
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
		result.Winners = append(result.Winners, bid.ParticipantID)
	}
	return refunded, nil
}

func (s *selectionService) contested(ctx context.Context, tx *gorm.DB, bids []models.Bid, enrollments map[string]*models.Enrollment, capacity int, result *SelectionResult) error {
	won := s.draw(len(bids), capacity)

	for i, bid := range bids {
		status, outcome := models.BidRejected, models.ResultLost
		if won[i] {
			status, outcome = models.BidSelected, models.ResultWon
		}
		if _, err := s.Repos.Bids.UpdateStatus(ctx, tx, bid.ID, status); err != nil {
			return err
		}
		e := enrollments[bid.ParticipantID]
		e.BiddingResult = outcome
		if err := s.Repos.Enrollments.Save(ctx, tx, e); err != nil {
			return err
		}
		if won[i] {
			result.Winners = append(result.Winners, bid.ParticipantID)
		} else {
			result.Losers = append(result.Losers, bid.ParticipantID)
		}
	}
	return nil
}

// draw picks k of n indexes uniformly without replacement with a partial
// Fisher-Yates shuffle. Callers pass bids in id order, so a seeded rng
// gives a reproducible draw.
func (s *selectionService) draw(n, k int) []bool {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	s.mu.Lock()
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	s.mu.Unlock()

	won := make([]bool, n)
	for _, i := range idx[:k] {
		won[i] = true
	}
	return won
}

func (s *selectionService) ResetSelection(ctx context.Context, opportunityID uint) (*ResetResult, error) {
	var (
		result  *ResetResult
		groupID uint
	)
	err := s.Tx.Run(ctx, "reset_selection", func(tx *gorm.DB) error {
		opp, err := s.Repos.Opportunities.FindByIDForUpdate(ctx, tx, opportunityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOpportunityNotFound
			}
			return err
		}
		groupID = opp.GroupID
		if err := s.refreshLocked(ctx, tx, opp); err != nil {
			return err
		}

		bids, err := s.Repos.Bids.ListForUpdate(ctx, tx, opportunityID, nil)
		if err != nil {
			return err
		}
		enrollments, err := s.lockEnrollments(ctx, tx, opp.GroupID, bids)
		if err != nil {
			return err
		}

		result = &ResetResult{OpportunityID: opportunityID}
		for _, bid := range bids {
			n, err := s.Repos.Bids.UpdateStatus(ctx, tx, bid.ID, models.BidPlaced)
			if err != nil {
				return err
			}
			result.ResetBids += int(n)
		}
		// Tokens stay as they are; only the outcome is cleared.
		for _, id := range participantIDs(bids) {
			e := enrollments[id]
			if e.BiddingResult == models.ResultPending {
				continue
			}
			e.BiddingResult = models.ResultPending
			if err := s.Repos.Enrollments.Save(ctx, tx, e); err != nil {
				return err
			}
			result.ResetEnrollments++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Cache.InvalidateGroup(ctx, groupID)
	return result, nil
}
