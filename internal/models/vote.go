package models

import (
	"time"

	"github.com/pocketbase/pocketbase/core"
)

// Vote is one voter's card for one round. Votes are immutable once stored;
// a changed mind requires a new round.
type Vote struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	RoundNumber   int       `json:"roundNumber"`
	VoterID       string    `json:"voterId"`
	Value         string    `json:"value,omitempty"`
	Justification string    `json:"justification,omitempty"`
	VotedAt       time.Time `json:"votedAt"`
}

// VoteFromRecord maps a votes record to its DTO.
func VoteFromRecord(r *core.Record) *Vote {
	return &Vote{
		ID:            r.Id,
		SessionID:     r.GetString("session_id"),
		RoundNumber:   r.GetInt("round_number"),
		VoterID:       r.GetString("voter_id"),
		Value:         r.GetString("value"),
		Justification: r.GetString("justification"),
		VotedAt:       r.GetDateTime("voted_at").Time(),
	}
}
