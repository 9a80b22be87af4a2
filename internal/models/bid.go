package models

import "time"

type BidStatus string

const (
	BidPlaced       BidStatus = "placed"
	BidConfirmed    BidStatus = "confirmed"
	BidSelected     BidStatus = "selected"
	BidRejected     BidStatus = "rejected"
	BidAutoSelected BidStatus = "auto_selected"
)

// IsWinning reports whether a bid in this status counts as a win.
func (s BidStatus) IsWinning() bool {
	return s == BidSelected || s == BidAutoSelected
}

// BidAmount is the fixed cost of a bid in tokens.
const BidAmount = 1

type Bid struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ParticipantID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_bid_participant_opportunity,priority:1" json:"participant_id"`
	OpportunityID uint      `gorm:"not null;uniqueIndex:idx_bid_participant_opportunity,priority:2;index" json:"opportunity_id"`
	Amount        int       `gorm:"not null;default:1" json:"amount"`
	Status        BidStatus `gorm:"type:varchar(20);not null;default:'placed'" json:"status"`
	IsWinner      bool      `gorm:"not null;default:false;check:chk_bid_winner,is_winner = (status IN ('selected','auto_selected'))" json:"is_winner"`
	SubmittedAt   time.Time `gorm:"not null" json:"submitted_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Opportunity *Opportunity `gorm:"foreignKey:OpportunityID;constraint:OnDelete:CASCADE" json:"-"`
}

// SetStatus moves the bid to s and keeps IsWinner consistent with it.
func (b *Bid) SetStatus(s BidStatus) {
	b.Status = s
	b.IsWinner = s.IsWinning()
}
