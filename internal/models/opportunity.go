package models

import "time"

type OpportunityStatus string

const (
	OpportunityUpcoming  OpportunityStatus = "upcoming"
	OpportunityOpen      OpportunityStatus = "open"
	OpportunityClosed    OpportunityStatus = "closed"
	OpportunityCompleted OpportunityStatus = "completed"
)

// Opportunity is a capacity-limited event open for bidding between OpensAt
// (inclusive) and ClosesAt (exclusive). Status is derived from the clock and
// only ever written by the lifecycle package.
type Opportunity struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	GroupID   uint              `gorm:"not null;index" json:"group_id"`
	Title     string            `gorm:"not null" json:"title"`
	OpensAt   time.Time         `gorm:"not null" json:"opens_at"`
	ClosesAt  time.Time         `gorm:"not null" json:"closes_at"`
	EventDate time.Time         `gorm:"not null" json:"event_date"`
	Capacity  int               `gorm:"not null;check:chk_opportunity_capacity,capacity > 0" json:"capacity"`
	Status    OpportunityStatus `gorm:"type:varchar(20);not null;default:'upcoming'" json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	Group *Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
}
