package evolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPopulation(t *testing.T) {
	pop := newPopulation(5, 2)

	assert.Len(t, pop.members, 5)
	assert.Len(t, pop.scores, 5)
	for _, m := range pop.members {
		assert.Len(t, m, 2)
	}
}

func TestPopulationBestIndex(t *testing.T) {
	pop := testPopulation()
	assert.Equal(t, 1, pop.bestIndex(), "lowest score wins under minimization")

	// Ties resolve to the earliest member.
	pop.scores = []float64{-9, -9, -1}
	assert.Equal(t, 0, pop.bestIndex())
}

func TestPopulationMeanScore(t *testing.T) {
	pop := testPopulation()
	assert.InDelta(t, -14.0/3.0, pop.meanScore(), 1e-12)
}

func TestPopulationReplace(t *testing.T) {
	pop := testPopulation()
	trial := []float64{55, 11}

	pop.replace(2, trial, -20)

	assert.Equal(t, trial, pop.members[2])
	assert.Equal(t, -20.0, pop.scores[2])
	assert.Equal(t, 2, pop.bestIndex())
}
