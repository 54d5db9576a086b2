package models

import (
	"encoding/json"
	"time"

	"github.com/pocketbase/pocketbase/core"
)

type EstimationMethod string

const (
	MethodFibonacci   EstimationMethod = "fibonacci"
	MethodTShirt      EstimationMethod = "tshirt"
	MethodPowersOfTwo EstimationMethod = "powers_of_two"
	MethodCustom      EstimationMethod = "custom"
)

type SessionStatus string

const (
	StatusDraft  SessionStatus = "draft"
	StatusActive SessionStatus = "active"
	StatusClosed SessionStatus = "closed"
)

// EstimationSession is a data transfer object for session state.
// All persistent state is managed in the database via SessionManager.
// This struct is used for API responses and passing data between handlers.
type EstimationSession struct {
	ID              string           `json:"id"`
	ProjectID       string           `json:"projectId"`
	StoryID         string           `json:"storyId"`
	Name            string           `json:"name"`
	Method          EstimationMethod `json:"method"`
	Sequence        []string         `json:"sequence"`
	Status          SessionStatus    `json:"status"`
	CurrentRound    int              `json:"currentRound"`
	IsRevealed      bool             `json:"isRevealed"`
	FinalEstimation string           `json:"finalEstimation,omitempty"`
	EstimateHours   float64          `json:"estimateHours,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	ModeratorID     string           `json:"moderatorId"`
	ShareToken      string           `json:"shareToken,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	LastActivity    time.Time        `json:"lastActivity"`
}

// SessionFromRecord maps a sessions record to its DTO.
func SessionFromRecord(r *core.Record) *EstimationSession {
	s := &EstimationSession{
		ID:              r.Id,
		ProjectID:       r.GetString("project_id"),
		StoryID:         r.GetString("story_id"),
		Name:            r.GetString("name"),
		Method:          EstimationMethod(r.GetString("method")),
		Status:          SessionStatus(r.GetString("status")),
		CurrentRound:    r.GetInt("current_round"),
		IsRevealed:      r.GetBool("is_revealed"),
		FinalEstimation: r.GetString("final_estimation"),
		EstimateHours:   r.GetFloat("estimate_hours"),
		Notes:           r.GetString("notes"),
		ModeratorID:     r.GetString("moderator_id"),
		ShareToken:      r.GetString("share_token"),
		CreatedAt:       r.GetDateTime("created").Time(),
		LastActivity:    r.GetDateTime("last_activity").Time(),
	}

	if raw := r.GetString("sequence"); raw != "" {
		var seq []string
		if err := json.Unmarshal([]byte(raw), &seq); err == nil {
			s.Sequence = seq
		}
	}

	return s
}

func (s *EstimationSession) IsActive() bool {
	return s.Status == StatusActive
}

func (s *EstimationSession) IsClosed() bool {
	return s.Status == StatusClosed
}

// CanAcceptVotes reports whether votes may still enter the current round.
func (s *EstimationSession) CanAcceptVotes() bool {
	return s.Status == StatusActive && !s.IsRevealed
}

// CanReveal reports whether the current round may be revealed.
func (s *EstimationSession) CanReveal() bool {
	return s.Status == StatusActive && !s.IsRevealed
}

// CanAdvance reports whether a new round may be opened. A round must be
// revealed before the moderator can move on.
func (s *EstimationSession) CanAdvance() bool {
	return s.Status == StatusActive && s.IsRevealed
}

// CanFinalize mirrors CanAdvance: the estimate is committed from a revealed
// round.
func (s *EstimationSession) CanFinalize() bool {
	return s.Status == StatusActive && s.IsRevealed
}

// SequenceContains reports whether value is a legal card for this session.
func (s *EstimationSession) SequenceContains(value string) bool {
	for _, v := range s.Sequence {
		if v == value {
			return true
		}
	}
	return false
}
