package dto

import (
	"time"

	"github.com/Eursukkul/token-bidding/internal/models"
)

// Envelope wraps every API response.
type Envelope struct {
	Success   bool   `json:"success"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

func Fail(kind, message string) Envelope {
	return Envelope{Success: false, ErrorKind: kind, Message: message}
}

type OpportunityResponse struct {
	ID        uint                     `json:"id"`
	GroupID   uint                     `json:"group_id"`
	Title     string                   `json:"title"`
	OpensAt   time.Time                `json:"opens_at"`
	ClosesAt  time.Time                `json:"closes_at"`
	EventDate time.Time                `json:"event_date"`
	Capacity  int                      `json:"capacity"`
	Status    models.OpportunityStatus `json:"status"`
}

type BidResponse struct {
	ID            uint             `json:"id"`
	ParticipantID string           `json:"participant_id"`
	OpportunityID uint             `json:"opportunity_id"`
	Amount        int              `json:"amount"`
	Status        models.BidStatus `json:"status"`
	IsWinner      bool             `json:"is_winner"`
	SubmittedAt   time.Time        `json:"submitted_at"`
}

type LedgerEntryResponse struct {
	ID            uint              `json:"id"`
	OpportunityID *uint             `json:"opportunity_id,omitempty"`
	Amount        int               `json:"amount"`
	Kind          models.LedgerKind `json:"kind"`
	Description   string            `json:"description"`
	CreatedAt     time.Time         `json:"created_at"`
}

type ResetTokensResponse struct {
	GroupID uint `json:"group_id"`
	Reset   int  `json:"reset"`
}

func ToOpportunityResponse(o *models.Opportunity) OpportunityResponse {
	return OpportunityResponse{
		ID:        o.ID,
		GroupID:   o.GroupID,
		Title:     o.Title,
		OpensAt:   o.OpensAt,
		ClosesAt:  o.ClosesAt,
		EventDate: o.EventDate,
		Capacity:  o.Capacity,
		Status:    o.Status,
	}
}

func ToBidResponse(b *models.Bid) BidResponse {
	return BidResponse{
		ID:            b.ID,
		ParticipantID: b.ParticipantID,
		OpportunityID: b.OpportunityID,
		Amount:        b.Amount,
		Status:        b.Status,
		IsWinner:      b.IsWinner,
		SubmittedAt:   b.SubmittedAt,
	}
}

func ToLedgerEntryResponse(e *models.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            e.ID,
		OpportunityID: e.OpportunityID,
		Amount:        e.Amount,
		Kind:          e.Kind,
		Description:   e.Description,
		CreatedAt:     e.CreatedAt,
	}
}
