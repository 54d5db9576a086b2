package services

import (
	"fmt"
	"sort"

	"github.com/pocketbase/pocketbase/core"

	"github.com/sprintdeck/estimation/internal/models"
)

// VotingHistory is the read projection over all of a session's rounds.
type VotingHistory struct {
	SessionID   string                `json:"sessionId"`
	Status      models.SessionStatus  `json:"status"`
	TotalRounds int                   `json:"totalRounds"`
	Rounds      []*models.Round       `json:"rounds"`
}

// HistoryAggregator assembles per-round vote sets and statistics. It only
// reads; it never mutates session state.
type HistoryAggregator struct {
	app        core.App
	ledger     *VoteLedger
	calculator *ConsensusCalculator
}

func NewHistoryAggregator(app core.App, ledger *VoteLedger, calculator *ConsensusCalculator) *HistoryAggregator {
	return &HistoryAggregator{app: app, ledger: ledger, calculator: calculator}
}

// History returns rounds 1..currentRound in ascending order, each with its
// votes (ordered by voted_at) and computed statistics. Round audit rows are
// created in the same transaction that advances the counter, so totalRounds
// and the audit trail cannot diverge.
func (h *HistoryAggregator) History(sessionID string) (*VotingHistory, error) {
	record, err := h.app.FindRecordById("sessions", sessionID)
	if err != nil {
		return nil, models.WrapError(models.KindNotFound, "session not found", err)
	}
	session := models.SessionFromRecord(record)

	audits, err := h.roundAudits(sessionID)
	if err != nil {
		return nil, err
	}

	history := &VotingHistory{
		SessionID:   sessionID,
		Status:      session.Status,
		TotalRounds: session.CurrentRound,
		Rounds:      make([]*models.Round, 0, session.CurrentRound),
	}

	for number := 1; number <= session.CurrentRound; number++ {
		votes, err := h.ledger.ListByRound(sessionID, number)
		if err != nil {
			return nil, err
		}
		sort.Slice(votes, func(i, j int) bool {
			return votes[i].VotedAt.Before(votes[j].VotedAt)
		})

		round := &models.Round{
			RoundNumber: number,
			Votes:       votes,
			Statistics:  h.calculator.Statistics(votes),
		}
		if audit, ok := audits[number]; ok {
			round.Reason = audit.GetString("reason")
			round.StartedAt = audit.GetDateTime("started_at").Time()
		}
		history.Rounds = append(history.Rounds, round)
	}

	return history, nil
}

func (h *HistoryAggregator) roundAudits(sessionID string) (map[int]*core.Record, error) {
	records, err := h.app.FindRecordsByFilter(
		"session_rounds",
		"session_id = {:sessionId}",
		"round_number",
		500,
		0,
		map[string]any{"sessionId": sessionID},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}

	audits := make(map[int]*core.Record, len(records))
	for _, r := range records {
		audits[r.GetInt("round_number")] = r
	}
	return audits, nil
}
