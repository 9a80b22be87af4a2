package handler

import (
	"context"
	"sync"

	"github.com/Eursukkul/token-bidding/internal/models"
	"github.com/Eursukkul/token-bidding/internal/service"
)

// --- Mock BidService ---

type mockBidService struct {
	submitFn   func(ctx context.Context, participantID string, opportunityID uint, amount int) (*models.Bid, error)
	withdrawFn func(ctx context.Context, participantID string, opportunityID uint) error
	listFn     func(ctx context.Context, opportunityID uint, status *models.BidStatus) ([]models.Bid, error)
}

func (m *mockBidService) SubmitBid(ctx context.Context, participantID string, opportunityID uint, amount int) (*models.Bid, error) {
	return m.submitFn(ctx, participantID, opportunityID, amount)
}
func (m *mockBidService) WithdrawBid(ctx context.Context, participantID string, opportunityID uint) error {
	return m.withdrawFn(ctx, participantID, opportunityID)
}
func (m *mockBidService) ListBids(ctx context.Context, opportunityID uint, status *models.BidStatus) ([]models.Bid, error) {
	return m.listFn(ctx, opportunityID, status)
}

// --- Mock SelectionService ---

type mockSelectionService struct {
	runFn   func(ctx context.Context, opportunityID uint, capacity int) (*service.SelectionResult, error)
	resetFn func(ctx context.Context, opportunityID uint) (*service.ResetResult, error)
}

func (m *mockSelectionService) RunSelection(ctx context.Context, opportunityID uint, capacity int) (*service.SelectionResult, error) {
	return m.runFn(ctx, opportunityID, capacity)
}
func (m *mockSelectionService) ResetSelection(ctx context.Context, opportunityID uint) (*service.ResetResult, error) {
	return m.resetFn(ctx, opportunityID)
}

// --- Mock CascadeService ---

type mockCascadeService struct {
	deleteOppFn   func(ctx context.Context, opportunityID uint) error
	deleteGroupFn func(ctx context.Context, groupID uint) (service.DeletionCounts, error)
}

func (m *mockCascadeService) DeleteOpportunity(ctx context.Context, opportunityID uint) error {
	return m.deleteOppFn(ctx, opportunityID)
}
func (m *mockCascadeService) DeleteGroup(ctx context.Context, groupID uint) (service.DeletionCounts, error) {
	return m.deleteGroupFn(ctx, groupID)
}

// --- Mock LedgerService ---

type mockLedgerService struct {
	balanceFn   func(ctx context.Context, participantID string, groupID uint) (*models.Balance, error)
	historyFn   func(ctx context.Context, participantID string, groupID uint) ([]models.LedgerEntry, error)
	topUpFn     func(ctx context.Context, participantID string, groupID uint) (*models.Balance, error)
	resetFn     func(ctx context.Context, groupID uint) (int, error)
	reconcileFn func(ctx context.Context, groupID uint) ([]service.Discrepancy, error)
}

func (m *mockLedgerService) GetBalance(ctx context.Context, participantID string, groupID uint) (*models.Balance, error) {
	return m.balanceFn(ctx, participantID, groupID)
}
func (m *mockLedgerService) History(ctx context.Context, participantID string, groupID uint) ([]models.LedgerEntry, error) {
	return m.historyFn(ctx, participantID, groupID)
}
func (m *mockLedgerService) TopUp(ctx context.Context, participantID string, groupID uint) (*models.Balance, error) {
	return m.topUpFn(ctx, participantID, groupID)
}
func (m *mockLedgerService) ResetGroupTokens(ctx context.Context, groupID uint) (int, error) {
	return m.resetFn(ctx, groupID)
}
func (m *mockLedgerService) Reconcile(ctx context.Context, groupID uint) ([]service.Discrepancy, error) {
	return m.reconcileFn(ctx, groupID)
}

// --- Mock OpportunityService ---

type mockOpportunityService struct {
	createFn func(ctx context.Context, in service.CreateOpportunityInput) (*models.Opportunity, error)
	getFn    func(ctx context.Context, id uint) (*models.Opportunity, error)
	listFn   func(ctx context.Context, groupID uint) ([]models.Opportunity, error)
}

func (m *mockOpportunityService) CreateOpportunity(ctx context.Context, in service.CreateOpportunityInput) (*models.Opportunity, error) {
	return m.createFn(ctx, in)
}
func (m *mockOpportunityService) GetOpportunity(ctx context.Context, id uint) (*models.Opportunity, error) {
	return m.getFn(ctx, id)
}
func (m *mockOpportunityService) ListOpportunities(ctx context.Context, groupID uint) ([]models.Opportunity, error) {
	return m.listFn(ctx, groupID)
}

// --- Recording notifier ---

type published struct {
	key     string
	payload any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (n *recordingNotifier) Publish(ctx context.Context, key string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, published{key: key, payload: payload})
	return n.err
}
