package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/models"
)

// Discrepancy is a participant whose ledger does not explain their balance.
type Discrepancy struct {
	ParticipantID   string `json:"participant_id"`
	TokensRemaining int    `json:"tokens_remaining"`
	LedgerTotal     int    `json:"ledger_total"`
	Expected        int    `json:"expected_tokens"`
}

type LedgerService interface {
	GetBalance(ctx context.Context, participantID string, groupID uint) (*models.Balance, error)
	History(ctx context.Context, participantID string, groupID uint) ([]models.LedgerEntry, error)
	TopUp(ctx context.Context, participantID string, groupID uint) (*models.Balance, error)
	ResetGroupTokens(ctx context.Context, groupID uint) (int, error)
	Reconcile(ctx context.Context, groupID uint) ([]Discrepancy, error)
}

type ledgerService struct {
	Deps
}

func NewLedgerService(d Deps) LedgerService {
	return &ledgerService{Deps: d.withDefaults()}
}

func (s *ledgerService) GetBalance(ctx context.Context, participantID string, groupID uint) (*models.Balance, error) {
	if b, ok := s.Cache.Get(ctx, participantID, groupID); ok {
		return b, nil
	}

	gen := s.Cache.Generation(ctx, groupID, participantID)
	var balance *models.Balance
	err := s.Tx.Run(ctx, "get_balance", func(tx *gorm.DB) error {
		e, err := s.findEnrollment(ctx, tx, participantID, groupID)
		if err != nil {
			return err
		}
		total, err := s.Repos.Ledger.Sum(ctx, tx, participantID, groupID)
		if err != nil {
			return err
		}
		balance = toBalance(e, total)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Cache.Set(ctx, balance, gen)
	return balance, nil
}

func (s *ledgerService) History(ctx context.Context, participantID string, groupID uint) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.Tx.Run(ctx, "ledger_history", func(tx *gorm.DB) error {
		if _, err := s.findEnrollment(ctx, tx, participantID, groupID); err != nil {
			return err
		}
		var err error
		entries, err = s.Repos.Ledger.ListByParticipant(ctx, tx, participantID, groupID)
		return err
	})
	return entries, err
}

// TopUp grants a fresh token to a participant who has spent theirs.
func (s *ledgerService) TopUp(ctx context.Context, participantID string, groupID uint) (*models.Balance, error) {
	var balance *models.Balance
	err := s.Tx.Run(ctx, "top_up", func(tx *gorm.DB) error {
		e, err := s.Repos.Enrollments.FindForUpdate(ctx, tx, participantID, groupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotEnrolled
			}
			return err
		}
		if e.TokensRemaining >= models.InitialTokens {
			return newError(KindInvalidState, "participant still holds a token", nil)
		}
		if _, err := s.credit(ctx, tx, e, models.InitialTokens-e.TokensRemaining, models.LedgerTopUp, nil, "manual top-up"); err != nil {
			return err
		}
		if err := s.Repos.Enrollments.Save(ctx, tx, e); err != nil {
			return err
		}
		total, err := s.Repos.Ledger.Sum(ctx, tx, participantID, groupID)
		if err != nil {
			return err
		}
		balance = toBalance(e, total)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Cache.Invalidate(ctx, groupID, participantID)
	return balance, nil
}

// ResetGroupTokens restores every spent token in the group and clears the
// bidding outcome of those participants. It returns how many were reset.
func (s *ledgerService) ResetGroupTokens(ctx context.Context, groupID uint) (int, error) {
	reset := 0
	err := s.Tx.Run(ctx, "reset_group_tokens", func(tx *gorm.DB) error {
		reset = 0
		if _, err := s.Repos.Groups.FindByID(ctx, tx, groupID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		spent, err := s.Repos.Enrollments.ListSpentForUpdate(ctx, tx, groupID)
		if err != nil {
			return err
		}
		for i := range spent {
			e := &spent[i]
			if _, err := s.credit(ctx, tx, e, models.InitialTokens-e.TokensRemaining, models.LedgerReset, nil, "group token reset"); err != nil {
				return err
			}
			e.BiddingResult = models.ResultPending
			if err := s.Repos.Enrollments.Save(ctx, tx, e); err != nil {
				return err
			}
			reset++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Cache.InvalidateGroup(ctx, groupID)
	s.Logger.Info("group tokens reset", "group_id", groupID, "reset", reset)
	return reset, nil
}

// Reconcile lists participants for whom 1 + sum(ledger) differs from the
// stored balance. An empty result means the group's ledger is consistent.
func (s *ledgerService) Reconcile(ctx context.Context, groupID uint) ([]Discrepancy, error) {
	out := []Discrepancy{}
	err := s.Tx.Run(ctx, "reconcile", func(tx *gorm.DB) error {
		out = out[:0]
		if _, err := s.Repos.Groups.FindByID(ctx, tx, groupID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		enrollments, err := s.Repos.Enrollments.ListByGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		sums, err := s.Repos.Ledger.SumByGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		for _, e := range enrollments {
			expected := models.InitialTokens + sums[e.ParticipantID]
			if expected != e.TokensRemaining || e.TokenStatus != models.TokenStatusFor(e.TokensRemaining) {
				out = append(out, Discrepancy{
					ParticipantID:   e.ParticipantID,
					TokensRemaining: e.TokensRemaining,
					LedgerTotal:     sums[e.ParticipantID],
					Expected:        expected,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		s.Logger.Warn("ledger drift detected", "group_id", groupID, "participants", len(out))
	}
	return out, nil
}

func (s *ledgerService) findEnrollment(ctx context.Context, tx *gorm.DB, participantID string, groupID uint) (*models.Enrollment, error) {
	e, err := s.Repos.Enrollments.Find(ctx, tx, participantID, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, err
	}
	return e, nil
}

func toBalance(e *models.Enrollment, ledgerTotal int) *models.Balance {
	return &models.Balance{
		ParticipantID:   e.ParticipantID,
		GroupID:         e.GroupID,
		TokensRemaining: e.TokensRemaining,
		TokenStatus:     e.TokenStatus,
		BiddingResult:   e.BiddingResult,
		LedgerTotal:     ledgerTotal,
	}
}
