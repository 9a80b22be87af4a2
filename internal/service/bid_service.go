package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/lifecycle"
	"github.com/Eursukkul/token-bidding/internal/metrics"
	"github.com/Eursukkul/token-bidding/internal/models"
)

type BidService interface {
	SubmitBid(ctx context.Context, participantID string, opportunityID uint, amount int) (*models.Bid, error)
	WithdrawBid(ctx context.Context, participantID string, opportunityID uint) error
	ListBids(ctx context.Context, opportunityID uint, status *models.BidStatus) ([]models.Bid, error)
}

type bidService struct {
	Deps
}

func NewBidService(d Deps) BidService {
	return &bidService{Deps: d.withDefaults()}
}

func (s *bidService) SubmitBid(ctx context.Context, participantID string, opportunityID uint, amount int) (*models.Bid, error) {
	if amount <= 0 {
		return nil, newError(KindInvalidArgument, "amount must be positive", nil)
	}

	var (
		result  *models.Bid
		groupID uint
		stale   *models.OpportunityStatus
	)
	err := s.Tx.Run(ctx, "submit_bid", func(tx *gorm.DB) error {
		stale = nil

		// 1. Shared lock: concurrent submits proceed, selection and deletion wait
		opp, err := s.Repos.Opportunities.FindByIDForShare(ctx, tx, opportunityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOpportunityNotFound
			}
			return err
		}
		groupID = opp.GroupID

		// 2. Window check
		now := s.Clock.Now()
		status := lifecycle.CurrentStatus(opp, now)
		if status != opp.Status {
			stale = &status
		}
		if status != models.OpportunityOpen {
			return newError(KindWindowClosed, fmt.Sprintf("opportunity %d is %s", opp.ID, status), nil)
		}

		// 3. Enrollment, locked for the token decrement
		enrollment, err := s.Repos.Enrollments.FindForUpdate(ctx, tx, participantID, opp.GroupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotEnrolled
			}
			return err
		}

		// 4. Balance
		if enrollment.TokensRemaining < amount {
			return ErrInsufficientToken
		}

		// 5. One bid per participant per opportunity
		if _, err := s.Repos.Bids.FindByPair(ctx, tx, participantID, opportunityID); err == nil {
			return ErrDuplicateBid
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		bid := &models.Bid{
			ParticipantID: participantID,
			OpportunityID: opportunityID,
			Amount:        amount,
			SubmittedAt:   now,
		}
		bid.SetStatus(models.BidPlaced)
		if err := s.Repos.Bids.Create(ctx, tx, bid); err != nil {
			if isDuplicate(err) {
				return ErrDuplicateBid
			}
			return err
		}

		// 6. Spend the token
		oid := opportunityID
		if _, err := s.credit(ctx, tx, enrollment, -amount, models.LedgerBid, &oid,
			fmt.Sprintf("bid on opportunity %d", opportunityID)); err != nil {
			return err
		}
		if err := s.Repos.Enrollments.Save(ctx, tx, enrollment); err != nil {
			return err
		}

		result = bid
		return nil
	})
	if stale != nil {
		s.persistStatus(ctx, opportunityID, *stale)
	}
	if err != nil {
		return nil, err
	}

	s.Cache.Invalidate(ctx, groupID, participantID)
	metrics.BidsSubmitted.Inc()
	return result, nil
}

func (s *bidService) WithdrawBid(ctx context.Context, participantID string, opportunityID uint) error {
	var groupID uint
	err := s.Tx.Run(ctx, "withdraw_bid", func(tx *gorm.DB) error {
		opp, err := s.Repos.Opportunities.FindByIDForShare(ctx, tx, opportunityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBidNotFound
			}
			return err
		}
		groupID = opp.GroupID

		bid, err := s.Repos.Bids.FindByPairForUpdate(ctx, tx, participantID, opportunityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBidNotFound
			}
			return err
		}
		if bid.Status != models.BidPlaced {
			return newError(KindInvalidState, fmt.Sprintf("bid is %s; only placed bids can be withdrawn", bid.Status), nil)
		}

		enrollment, err := s.Repos.Enrollments.FindForUpdate(ctx, tx, participantID, opp.GroupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newError(KindIntegrityViolation,
					fmt.Sprintf("bid %d has no enrollment behind it", bid.ID), nil)
			}
			return err
		}

		// Undo exactly what this bid still holds: a bid refunded by auto-admit
		// and then reset has a net of zero and restores nothing.
		net, err := s.Repos.Ledger.NetForPair(ctx, tx, participantID, opportunityID)
		if err != nil {
			return err
		}

		if err := s.Repos.Bids.Delete(ctx, tx, bid.ID); err != nil {
			return err
		}
		if _, err := s.Repos.Ledger.DeleteForPair(ctx, tx, participantID, opportunityID); err != nil {
			return err
		}

		// A reset or top-up may already have given the token back. The clamp
		// then absorbs part of the reversal, and that part is written as an
		// adjustment so the ledger still sums to the balance.
		want := enrollment.TokensRemaining - net
		restored := min(max(want, 0), models.InitialTokens)
		if absorbed := restored - want; absorbed != 0 {
			if err := s.Repos.Ledger.Append(ctx, tx, &models.LedgerEntry{
				ParticipantID: participantID,
				GroupID:       opp.GroupID,
				Amount:        absorbed,
				Kind:          models.LedgerAdjust,
				Description:   fmt.Sprintf("withdrawal from opportunity %d after token was restored", opportunityID),
			}); err != nil {
				return fmt.Errorf("append adjust entry: %w", err)
			}
		}
		enrollment.SetTokens(restored)
		enrollment.BiddingResult = models.ResultPending
		return s.Repos.Enrollments.Save(ctx, tx, enrollment)
	})
	if err != nil {
		return err
	}

	s.Cache.Invalidate(ctx, groupID, participantID)
	metrics.BidsWithdrawn.Inc()
	return nil
}

func (s *bidService) ListBids(ctx context.Context, opportunityID uint, status *models.BidStatus) ([]models.Bid, error) {
	var bids []models.Bid
	err := s.Tx.Run(ctx, "list_bids", func(tx *gorm.DB) error {
		if _, err := s.Repos.Opportunities.FindByID(ctx, tx, opportunityID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOpportunityNotFound
			}
			return err
		}
		var err error
		bids, err = s.Repos.Bids.ListByOpportunity(ctx, tx, opportunityID, status)
		return err
	})
	return bids, err
}
