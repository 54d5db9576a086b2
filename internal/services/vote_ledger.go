package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/sprintdeck/estimation/internal/models"
)

// VoteLedger is the append-only vote store. One vote per
// (session, round, voter); a second attempt fails with DUPLICATE_VOTE rather
// than overwriting. The votes collection carries a unique index on that key,
// so even two racing inserts resolve to one stored vote and one rejection.
type VoteLedger struct {
	app core.App
}

func NewVoteLedger(app core.App) *VoteLedger {
	return &VoteLedger{app: app}
}

// Put inserts a vote if the voter has none for the round.
func (l *VoteLedger) Put(sessionID string, round int, voterID, value, justification string) (*models.Vote, error) {
	voted, err := l.HasVoted(sessionID, round, voterID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, models.NewFieldError(models.KindDuplicateVote, "voterId", "voter already has a vote in this round")
	}

	collection, err := l.app.FindCollectionByNameOrId("votes")
	if err != nil {
		return nil, fmt.Errorf("failed to find votes collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("session_id", sessionID)
	record.Set("round_number", round)
	record.Set("voter_id", voterID)
	record.Set("value", value)
	record.Set("justification", justification)
	record.Set("voted_at", time.Now())

	if err := l.app.Save(record); err != nil {
		// Check-then-act races land here: the unique index keeps the first
		// write and we report the loser as a duplicate.
		if isUniqueViolation(err) {
			return nil, models.NewFieldError(models.KindDuplicateVote, "voterId", "voter already has a vote in this round")
		}
		return nil, fmt.Errorf("failed to save vote: %w", err)
	}

	return models.VoteFromRecord(record), nil
}

// ListByRound returns the round's votes in no guaranteed order; callers sort
// when display order matters.
func (l *VoteLedger) ListByRound(sessionID string, round int) ([]*models.Vote, error) {
	records, err := l.app.FindRecordsByFilter(
		"votes",
		"session_id = {:sessionId} && round_number = {:round}",
		"",
		500,
		0,
		map[string]any{"sessionId": sessionID, "round": round},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}

	votes := make([]*models.Vote, 0, len(records))
	for _, r := range records {
		votes = append(votes, models.VoteFromRecord(r))
	}
	return votes, nil
}

// CountByRound reports how many votes a round has without exposing values,
// for the "N people have voted" display before reveal.
func (l *VoteLedger) CountByRound(sessionID string, round int) (int, error) {
	votes, err := l.ListByRound(sessionID, round)
	if err != nil {
		return 0, err
	}
	return len(votes), nil
}

// HasVoted reports whether the voter already holds a vote in the round.
func (l *VoteLedger) HasVoted(sessionID string, round int, voterID string) (bool, error) {
	records, err := l.app.FindRecordsByFilter(
		"votes",
		"session_id = {:sessionId} && round_number = {:round} && voter_id = {:voterId}",
		"",
		1,
		0,
		map[string]any{"sessionId": sessionID, "round": round, "voterId": voterID},
	)
	if err != nil {
		return false, fmt.Errorf("failed to look up vote: %w", err)
	}
	return len(records) > 0, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "UNIQUE")
}
