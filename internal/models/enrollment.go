package models

import "time"

type TokenStatus string

const (
	TokenUnused TokenStatus = "unused"
	TokenUsed   TokenStatus = "used"
)

type BiddingResult string

const (
	ResultPending BiddingResult = "pending"
	ResultWon     BiddingResult = "won"
	ResultLost    BiddingResult = "lost"
)

// InitialTokens is the grant every enrollment starts with.
const InitialTokens = 1

type Enrollment struct {
	ParticipantID   string        `gorm:"primaryKey;type:varchar(64)" json:"participant_id"`
	GroupID         uint          `gorm:"primaryKey;autoIncrement:false" json:"group_id"`
	TokensRemaining int           `gorm:"not null;check:chk_enrollment_tokens,tokens_remaining >= 0 AND tokens_remaining <= 1" json:"tokens_remaining"`
	TokenStatus     TokenStatus   `gorm:"type:varchar(10);not null;default:'unused';check:chk_enrollment_token_status,(tokens_remaining <= 0) = (token_status = 'used')" json:"token_status"`
	BiddingResult   BiddingResult `gorm:"type:varchar(10);not null;default:'pending'" json:"bidding_result"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`

	Group *Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
}

// TokenStatusFor derives the token status from a balance.
func TokenStatusFor(tokensRemaining int) TokenStatus {
	if tokensRemaining <= 0 {
		return TokenUsed
	}
	return TokenUnused
}

// SetTokens updates the balance and keeps TokenStatus in step with it.
func (e *Enrollment) SetTokens(n int) {
	e.TokensRemaining = n
	e.TokenStatus = TokenStatusFor(n)
}
