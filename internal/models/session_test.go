package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionPhasePredicates(t *testing.T) {
	tests := []struct {
		name        string
		status      SessionStatus
		revealed    bool
		acceptVotes bool
		canReveal   bool
		canAdvance  bool
	}{
		{"active hidden round", StatusActive, false, true, true, false},
		{"active revealed round", StatusActive, true, false, false, true},
		{"draft", StatusDraft, false, false, false, false},
		{"closed", StatusClosed, true, false, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &EstimationSession{Status: tc.status, IsRevealed: tc.revealed}

			assert.Equal(t, tc.acceptVotes, s.CanAcceptVotes())
			assert.Equal(t, tc.canReveal, s.CanReveal())
			assert.Equal(t, tc.canAdvance, s.CanAdvance())
			assert.Equal(t, tc.canAdvance, s.CanFinalize())
		})
	}
}

func TestSequenceContains(t *testing.T) {
	s := &EstimationSession{Sequence: []string{"1", "2", "3", "?"}}

	assert.True(t, s.SequenceContains("2"))
	assert.True(t, s.SequenceContains("?"))
	assert.False(t, s.SequenceContains("4"))
	assert.False(t, s.SequenceContains(""))
}
