package models

// Balance is the read model served for a participant's token position in a
// group. It is not persisted.
type Balance struct {
	ParticipantID   string        `json:"participant_id"`
	GroupID         uint          `json:"group_id"`
	TokensRemaining int           `json:"tokens_remaining"`
	TokenStatus     TokenStatus   `json:"token_status"`
	BiddingResult   BiddingResult `json:"bidding_result"`
	LedgerTotal     int           `json:"ledger_total"`
}
