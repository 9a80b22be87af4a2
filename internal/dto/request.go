package dto

import "time"

type CreateOpportunityRequest struct {
	GroupID   uint      `json:"group_id"`
	Title     string    `json:"title"`
	OpensAt   time.Time `json:"opens_at"`
	ClosesAt  time.Time `json:"closes_at"`
	EventDate time.Time `json:"event_date"`
	Capacity  int       `json:"capacity"`
}

type SubmitBidRequest struct {
	ParticipantID string `json:"participant_id"`
	Amount        int    `json:"amount"` // defaults to 1
}

type RunSelectionRequest struct {
	Capacity *int `json:"capacity"` // defaults to the opportunity's capacity
}
