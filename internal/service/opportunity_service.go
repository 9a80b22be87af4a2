package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Eursukkul/token-bidding/internal/lifecycle"
	"github.com/Eursukkul/token-bidding/internal/models"
)

type CreateOpportunityInput struct {
	GroupID   uint
	Title     string
	OpensAt   time.Time
	ClosesAt  time.Time
	EventDate time.Time
	Capacity  int
}

type OpportunityService interface {
	CreateOpportunity(ctx context.Context, in CreateOpportunityInput) (*models.Opportunity, error)
	GetOpportunity(ctx context.Context, id uint) (*models.Opportunity, error)
	ListOpportunities(ctx context.Context, groupID uint) ([]models.Opportunity, error)
}

type opportunityService struct {
	Deps
}

func NewOpportunityService(d Deps) OpportunityService {
	return &opportunityService{Deps: d.withDefaults()}
}

func (s *opportunityService) CreateOpportunity(ctx context.Context, in CreateOpportunityInput) (*models.Opportunity, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, newError(KindInvalidArgument, "title is required", nil)
	}
	if !in.OpensAt.Before(in.ClosesAt) {
		return nil, newError(KindInvalidArgument, "opens_at must be before closes_at", nil)
	}
	if in.Capacity <= 0 {
		return nil, newError(KindInvalidArgument, "capacity must be positive", nil)
	}

	opp := &models.Opportunity{
		GroupID:   in.GroupID,
		Title:     in.Title,
		OpensAt:   in.OpensAt,
		ClosesAt:  in.ClosesAt,
		EventDate: in.EventDate,
		Capacity:  in.Capacity,
	}
	opp.Status = lifecycle.CurrentStatus(opp, s.Clock.Now())

	err := s.Tx.Run(ctx, "create_opportunity", func(tx *gorm.DB) error {
		if _, err := s.Repos.Groups.FindByID(ctx, tx, in.GroupID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		opp.ID = 0
		return s.Repos.Opportunities.Create(ctx, tx, opp)
	})
	if err != nil {
		return nil, err
	}
	return opp, nil
}

// GetOpportunity returns the opportunity with its status brought up to date.
func (s *opportunityService) GetOpportunity(ctx context.Context, id uint) (*models.Opportunity, error) {
	var opp *models.Opportunity
	err := s.Tx.Run(ctx, "get_opportunity", func(tx *gorm.DB) error {
		var err error
		opp, err = s.Repos.Opportunities.FindByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOpportunityNotFound
			}
			return err
		}
		if lifecycle.Refresh(opp, s.Clock.Now()) {
			return s.Repos.Opportunities.UpdateStatus(ctx, tx, opp.ID, opp.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return opp, nil
}

func (s *opportunityService) ListOpportunities(ctx context.Context, groupID uint) ([]models.Opportunity, error) {
	var opps []models.Opportunity
	err := s.Tx.Run(ctx, "list_opportunities", func(tx *gorm.DB) error {
		if _, err := s.Repos.Groups.FindByID(ctx, tx, groupID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		var err error
		opps, err = s.Repos.Opportunities.ListByGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		now := s.Clock.Now()
		for i := range opps {
			if lifecycle.Refresh(&opps[i], now) {
				if err := s.Repos.Opportunities.UpdateStatus(ctx, tx, opps[i].ID, opps[i].Status); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return opps, err
}
