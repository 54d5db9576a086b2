package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sprintdeck/estimation/internal/models"
)

func votesFor(values ...string) []*models.Vote {
	votes := make([]*models.Vote, 0, len(values))
	for i, v := range values {
		votes = append(votes, &models.Vote{
			ID:      "vote" + string(rune('a'+i)),
			VoterID: "voter" + string(rune('a'+i)),
			Value:   v,
		})
	}
	return votes
}

func TestStatistics(t *testing.T) {
	calculator := NewConsensusCalculator(NewSequenceCatalog())

	t.Run("unanimous numeric votes reach consensus", func(t *testing.T) {
		stats := calculator.Statistics(votesFor("5", "5", "5"))

		assert.Equal(t, 3, stats.TotalVotes)
		assert.Equal(t, 1, stats.UniqueValueCount)
		assert.True(t, stats.HasConsensus)
		assert.True(t, stats.HasAverage)
		assert.Equal(t, 5.0, stats.Average)
		assert.Equal(t, "5.0", stats.AverageDisplay())
	})

	t.Run("wildcard is excluded from the average", func(t *testing.T) {
		stats := calculator.Statistics(votesFor("1", "2", "3", "?"))

		assert.Equal(t, 4, stats.TotalVotes)
		assert.Equal(t, 4, stats.UniqueValueCount)
		assert.False(t, stats.HasConsensus)
		assert.True(t, stats.HasAverage)
		assert.Equal(t, 2.0, stats.Average)
		assert.Equal(t, map[string]int{"1": 1, "2": 1, "3": 1, "?": 1}, stats.Distribution)
	})

	t.Run("non-numeric round has no average", func(t *testing.T) {
		stats := calculator.Statistics(votesFor("M", "L", "?"))

		assert.False(t, stats.HasAverage)
		assert.Equal(t, "N/A", stats.AverageDisplay())
	})

	t.Run("single voter is consensus", func(t *testing.T) {
		stats := calculator.Statistics(votesFor("8"))

		assert.True(t, stats.HasConsensus)
		assert.Equal(t, 8.0, stats.Average)
	})

	t.Run("empty round", func(t *testing.T) {
		stats := calculator.Statistics(nil)

		assert.Equal(t, 0, stats.TotalVotes)
		assert.False(t, stats.HasConsensus)
		assert.False(t, stats.HasAverage)
		assert.Empty(t, stats.Distribution)
	})

	t.Run("average rounds to one decimal", func(t *testing.T) {
		stats := calculator.Statistics(votesFor("1", "2", "2"))

		assert.Equal(t, 1.7, stats.Average)
	})

	t.Run("tshirt consensus without average", func(t *testing.T) {
		stats := calculator.Statistics(votesFor("L", "L", "L"))

		assert.True(t, stats.HasConsensus)
		assert.False(t, stats.HasAverage)
	})
}

func TestSortedValues(t *testing.T) {
	calculator := NewConsensusCalculator(NewSequenceCatalog())

	t.Run("numerics ascend and wildcard sorts last", func(t *testing.T) {
		distribution := map[string]int{"13": 2, "?": 1, "3": 1, "5": 3}
		sequence := []string{"0", "1", "2", "3", "5", "8", "13", "21", "?"}

		got := calculator.SortedValues(distribution, sequence)
		assert.Equal(t, []string{"3", "5", "13", "?"}, got)
	})

	t.Run("textual values keep sequence order", func(t *testing.T) {
		distribution := map[string]int{"XL": 1, "S": 2, "M": 1, "?": 1}
		sequence := []string{"XS", "S", "M", "L", "XL", "XXL", "?"}

		got := calculator.SortedValues(distribution, sequence)
		assert.Equal(t, []string{"S", "M", "XL", "?"}, got)
	})

	t.Run("numerics come before textual values", func(t *testing.T) {
		distribution := map[string]int{"M": 1, "2": 1}
		sequence := []string{"2", "M", "?"}

		got := calculator.SortedValues(distribution, sequence)
		assert.Equal(t, []string{"2", "M"}, got)
	})
}
