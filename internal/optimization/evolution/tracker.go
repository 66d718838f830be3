package evolution

import (
	"github.com/copyleftdev/STRUT/internal/optimization"
)

// Tracker accumulates per-generation convergence records for a single
// optimization run. It lives exactly as long as the run that created
// it; the engine builds a fresh Tracker inside every Optimize call so
// that repeated or concurrent runs never share history.
type Tracker struct {
	records []optimization.GenerationRecord
}

// NewTracker creates a tracker with capacity for the configured number
// of generations.
func NewTracker(generations int) *Tracker {
	return &Tracker{
		records: make([]optimization.GenerationRecord, 0, generations),
	}
}

// Observe appends one record for the completed generation and returns
// it. Fitness values are reported in the positive convention, so the
// best of a generation is the negated minimum score and the average is
// the negated population mean.
func (t *Tracker) Observe(generation int, pop *population) optimization.GenerationRecord {
	best := pop.bestIndex()
	rec := optimization.GenerationRecord{
		Generation:     generation,
		BestFitness:    -pop.scores[best],
		AverageFitness: -pop.meanScore(),
		BestParameters: append([]float64(nil), pop.members[best]...),
	}
	t.records = append(t.records, rec)
	return rec
}

// Records returns a copy of the accumulated records in insertion order.
func (t *Tracker) Records() []optimization.GenerationRecord {
	out := make([]optimization.GenerationRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Len returns the number of recorded generations.
func (t *Tracker) Len() int {
	return len(t.records)
}
