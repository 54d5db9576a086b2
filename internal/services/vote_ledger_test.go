package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintdeck/estimation/internal/models"
	"github.com/sprintdeck/estimation/internal/testutil"
)

func TestVoteLedger(t *testing.T) {
	app := testutil.NewApp(t)

	owner := testutil.CreateUser(t, app, "owner@example.com")
	alice := testutil.CreateUser(t, app, "alice@example.com")
	bob := testutil.CreateUser(t, app, "bob@example.com")

	project := testutil.CreateProject(t, app, "Ledger", owner)
	story := testutil.CreateStory(t, app, project, "As a user...", models.StoryStatusReady)

	manager := NewSessionManager(app)
	session, err := manager.CreateSession(CreateSessionParams{
		ProjectID:   project.Id,
		StoryID:     story.Id,
		Name:        "Sprint 12 estimation",
		Method:      models.MethodFibonacci,
		ModeratorID: owner.Id,
	})
	require.NoError(t, err)

	ledger := NewVoteLedger(app)

	t.Run("first vote is stored", func(t *testing.T) {
		vote, err := ledger.Put(session.ID, 1, alice.Id, "5", "feels medium")
		require.NoError(t, err)
		assert.Equal(t, "5", vote.Value)
		assert.Equal(t, alice.Id, vote.VoterID)
		assert.False(t, vote.VotedAt.IsZero())
	})

	t.Run("second vote by same voter is rejected", func(t *testing.T) {
		_, err := ledger.Put(session.ID, 1, alice.Id, "8", "")
		require.Error(t, err)
		assert.Equal(t, models.KindDuplicateVote, models.KindOf(err))

		// the original vote is untouched
		votes, err := ledger.ListByRound(session.ID, 1)
		require.NoError(t, err)
		require.Len(t, votes, 1)
		assert.Equal(t, "5", votes[0].Value)
	})

	t.Run("same voter may vote in a different round", func(t *testing.T) {
		_, err := ledger.Put(session.ID, 2, alice.Id, "8", "")
		require.NoError(t, err)
	})

	t.Run("count and membership checks", func(t *testing.T) {
		_, err := ledger.Put(session.ID, 1, bob.Id, "13", "")
		require.NoError(t, err)

		count, err := ledger.CountByRound(session.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		voted, err := ledger.HasVoted(session.ID, 1, bob.Id)
		require.NoError(t, err)
		assert.True(t, voted)

		voted, err = ledger.HasVoted(session.ID, 3, bob.Id)
		require.NoError(t, err)
		assert.False(t, voted)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(assert.AnError))
	assert.True(t, isUniqueViolation(errUniqueStub{}))
}

type errUniqueStub struct{}

func (errUniqueStub) Error() string { return "UNIQUE constraint failed: votes.session_id" }
