package models

import (
	"fmt"
	"time"
)

// RoundStatistics summarizes the votes of a single round.
type RoundStatistics struct {
	TotalVotes       int            `json:"totalVotes"`
	UniqueValueCount int            `json:"uniqueValueCount"`
	HasConsensus     bool           `json:"hasConsensus"`
	Distribution     map[string]int `json:"distribution"`
	// Average over the numeric, non-wildcard votes. HasAverage is false when
	// no vote parsed as a number (pure t-shirt rounds, lone wildcards).
	Average    float64 `json:"average"`
	HasAverage bool    `json:"hasAverage"`
}

// AverageDisplay renders the average for callers, "N/A" when undefined.
func (s RoundStatistics) AverageDisplay() string {
	if !s.HasAverage {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", s.Average)
}

// Round is a derived view: the votes recorded under one round number plus
// their statistics. Rounds are not separately persisted beyond the audit row
// holding the moderator's reason.
type Round struct {
	RoundNumber int             `json:"roundNumber"`
	Reason      string          `json:"reason,omitempty"`
	StartedAt   time.Time       `json:"startedAt,omitempty"`
	Votes       []*Vote         `json:"votes"`
	Statistics  RoundStatistics `json:"statistics"`
}
