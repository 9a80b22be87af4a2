package models

import "time"

type LedgerKind string

const (
	LedgerBid    LedgerKind = "bid"
	LedgerReset  LedgerKind = "reset"
	LedgerTopUp  LedgerKind = "topup"
	LedgerRefund LedgerKind = "refund"
	LedgerAdjust LedgerKind = "adjust"
)

// LedgerEntry is an audit record of one token balance change. OpportunityID
// deliberately has no foreign key so refunds keep pointing at an opportunity
// after it is deleted.
type LedgerEntry struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ParticipantID string     `gorm:"type:varchar(64);not null;index:idx_ledger_participant_group,priority:1" json:"participant_id"`
	GroupID       uint       `gorm:"not null;index:idx_ledger_participant_group,priority:2" json:"group_id"`
	OpportunityID *uint      `gorm:"index" json:"opportunity_id,omitempty"`
	Amount        int        `gorm:"not null" json:"amount"`
	Kind          LedgerKind `gorm:"type:varchar(10);not null" json:"kind"`
	Description   string     `gorm:"type:text" json:"description"`
	CreatedAt     time.Time  `json:"created_at"`
}
