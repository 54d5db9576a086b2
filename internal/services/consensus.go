package services

import (
	"math"
	"sort"

	"github.com/sprintdeck/estimation/internal/models"
)

// ConsensusCalculator computes round statistics from a set of votes. It is
// pure: it never touches the database and never mutates its input.
type ConsensusCalculator struct {
	catalog *SequenceCatalog
}

func NewConsensusCalculator(catalog *SequenceCatalog) *ConsensusCalculator {
	return &ConsensusCalculator{catalog: catalog}
}

// Statistics computes distribution, uniqueness, consensus and the numeric
// average for one round's votes. The wildcard and any non-numeric card drop
// out of the average; a single voter agreeing with itself is consensus.
func (cc *ConsensusCalculator) Statistics(votes []*models.Vote) models.RoundStatistics {
	stats := models.RoundStatistics{
		TotalVotes:   len(votes),
		Distribution: make(map[string]int),
	}

	var sum float64
	var count int
	for _, vote := range votes {
		stats.Distribution[vote.Value]++
		if num, ok := cc.catalog.ParseNumericValue(vote.Value); ok {
			sum += num
			count++
		}
	}

	stats.UniqueValueCount = len(stats.Distribution)
	stats.HasConsensus = stats.UniqueValueCount == 1

	if count > 0 {
		stats.HasAverage = true
		stats.Average = math.Round(sum/float64(count)*10) / 10
	}

	return stats
}

// SortedValues orders distribution keys for display: numeric values ascend by
// parsed value, non-numeric values keep their sequence position, and the
// wildcard always sorts last regardless of its textual form.
func (cc *ConsensusCalculator) SortedValues(distribution map[string]int, sequence []string) []string {
	values := make([]string, 0, len(distribution))
	for v := range distribution {
		values = append(values, v)
	}

	pos := make(map[string]int, len(sequence))
	for i, v := range sequence {
		pos[v] = i
	}

	sort.Slice(values, func(i, j int) bool {
		a, b := values[i], values[j]
		if cc.catalog.IsWildcard(a) != cc.catalog.IsWildcard(b) {
			return cc.catalog.IsWildcard(b)
		}
		na, aNum := cc.catalog.ParseNumericValue(a)
		nb, bNum := cc.catalog.ParseNumericValue(b)
		switch {
		case aNum && bNum:
			return na < nb
		case aNum != bNum:
			return aNum // numerics before textual cards
		default:
			return pos[a] < pos[b]
		}
	})

	return values
}
