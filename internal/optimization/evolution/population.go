package evolution

import (
	"gonum.org/v1/gonum/stat"
)

// population is the engine's working set of designs and their scores.
// It is owned exclusively by the engine; only summary statistics and
// copies of members ever cross the package boundary.
type population struct {
	members [][]float64
	scores  []float64
}

func newPopulation(size, nDims int) *population {
	members := make([][]float64, size)
	for i := range members {
		members[i] = make([]float64, nDims)
	}
	return &population{
		members: members,
		scores:  make([]float64, size),
	}
}

// bestIndex returns the index of the member with the lowest score.
func (p *population) bestIndex() int {
	best := 0
	for i, s := range p.scores {
		if s < p.scores[best] {
			best = i
		}
	}
	return best
}

// meanScore returns the arithmetic mean score across the population.
func (p *population) meanScore() float64 {
	return stat.Mean(p.scores, nil)
}

// replace installs trial i as the new member i. The trial slice is
// adopted, not copied; callers must not reuse it afterwards.
func (p *population) replace(i int, trial []float64, score float64) {
	p.members[i] = trial
	p.scores[i] = score
}
