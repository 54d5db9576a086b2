package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintdeck/estimation/internal/models"
)

func TestHistory(t *testing.T) {
	f := newManagerFixture(t)
	session := f.createSession(t)

	aggregator := NewHistoryAggregator(f.app, f.manager.Ledger(), NewConsensusCalculator(f.manager.Catalog()))

	// round 1: split vote, reveal, advance
	_, err := f.manager.CastVote(session.ID, f.alice.Id, 1, "5", "")
	require.NoError(t, err)
	_, err = f.manager.CastVote(session.ID, f.bob.Id, 1, "13", "worried about migrations")
	require.NoError(t, err)
	_, err = f.manager.Reveal(session.ID, f.moderator.Id, 1)
	require.NoError(t, err)
	_, err = f.manager.StartNewRound(session.ID, f.moderator.Id, 2, "estimates too far apart")
	require.NoError(t, err)

	// round 2: bob abstains with the wildcard
	_, err = f.manager.CastVote(session.ID, f.alice.Id, 2, "8", "")
	require.NoError(t, err)
	_, err = f.manager.CastVote(session.ID, f.bob.Id, 2, "?", "")
	require.NoError(t, err)
	_, err = f.manager.Reveal(session.ID, f.moderator.Id, 2)
	require.NoError(t, err)
	_, err = f.manager.StartNewRound(session.ID, f.moderator.Id, 3, "discussed the migration risk")
	require.NoError(t, err)

	// round 3: consensus, finalize
	_, err = f.manager.CastVote(session.ID, f.alice.Id, 3, "8", "")
	require.NoError(t, err)
	_, err = f.manager.CastVote(session.ID, f.bob.Id, 3, "8", "")
	require.NoError(t, err)
	_, err = f.manager.Reveal(session.ID, f.moderator.Id, 3)
	require.NoError(t, err)
	_, err = f.manager.Finalize(session.ID, f.moderator.Id, "8", 24, "")
	require.NoError(t, err)

	history, err := aggregator.History(session.ID)
	require.NoError(t, err)

	assert.Equal(t, session.ID, history.SessionID)
	assert.Equal(t, models.StatusClosed, history.Status)
	assert.Equal(t, 3, history.TotalRounds)
	require.Len(t, history.Rounds, 3)

	t.Run("rounds ascend and keep their votes", func(t *testing.T) {
		for i, round := range history.Rounds {
			assert.Equal(t, i+1, round.RoundNumber)
			assert.Len(t, round.Votes, 2)
		}
	})

	t.Run("advance reasons survive in the audit trail", func(t *testing.T) {
		assert.Empty(t, history.Rounds[0].Reason, "round 1 opens with the session")
		assert.Equal(t, "estimates too far apart", history.Rounds[1].Reason)
		assert.Equal(t, "discussed the migration risk", history.Rounds[2].Reason)
		assert.False(t, history.Rounds[1].StartedAt.IsZero())
	})

	t.Run("statistics are computed per round", func(t *testing.T) {
		r1 := history.Rounds[0].Statistics
		assert.False(t, r1.HasConsensus)
		assert.Equal(t, 9.0, r1.Average)

		r2 := history.Rounds[1].Statistics
		assert.False(t, r2.HasConsensus)
		assert.Equal(t, 8.0, r2.Average, "wildcard drops out of the average")

		r3 := history.Rounds[2].Statistics
		assert.True(t, r3.HasConsensus)
		assert.Equal(t, 8.0, r3.Average)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := aggregator.History("missing00missing")
		require.Error(t, err)
		assert.Equal(t, models.KindNotFound, models.KindOf(err))
	})
}
