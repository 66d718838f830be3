// Package frame scores candidate load-bearing frame designs.
//
// A design is a pair of genes: frame length in centimeters and strut
// angle in degrees. The score combines a load-reduction benefit with a
// bending-stress penalty, subject to a hard material yield limit. The
// formulas are closed-form approximations fitted to the project's beam
// stress data, so evaluation is cheap enough to run inside a population
// search.
package frame

import "math"

// Evaluator constants. These are fixed design decisions, not tunables.
const (
	// ReferenceLength is the length (cm) past which longer frames stop
	// paying off. The benefit term decays linearly with the absolute
	// deviation from it.
	ReferenceLength = 100.0

	// MaterialLimit is the yield strength proxy (MPa) for the PVC
	// struts. Any design whose stress exceeds it is disqualified.
	MaterialLimit = 90.0

	// PenaltyScore is the sentinel returned for disqualified designs.
	// It dominates every feasible score under the minimization
	// convention, so infeasible designs simply lose every replacement
	// comparison.
	PenaltyScore = 1000.0

	// BenefitWeight and StressWeight trade comfort against structural
	// margin. Comfort is the project's first priority, as long as the
	// frame holds.
	BenefitWeight = 0.6
	StressWeight  = 0.4
)

// Default search bounds for the two genes.
var (
	LengthBounds = [2]float64{50, 120}
	AngleBounds  = [2]float64{10, 30}
)

// Bounds returns the feasible search domain, one [min, max] interval
// per gene, ordered length then angle.
func Bounds() [][2]float64 {
	return [][2]float64{LengthBounds, AngleBounds}
}

// Benefit computes the load-reduction benefit of a design. Longer
// frames lever the load better up to ReferenceLength, and steeper strut
// angles improve stability.
func Benefit(length, angle float64) float64 {
	return 60 + 5*math.Sin(angle*math.Pi/180) - 0.1*math.Abs(length-ReferenceLength)
}

// Stress computes the approximate peak bending stress (MPa) of a
// design. Longer frames bend more and steeper angles load the struts
// harder.
func Stress(length, angle float64) float64 {
	return 30 + 0.5*length + 0.2*angle
}

// Evaluate scores a design vector [length, angle] under the
// minimization convention: lower is better, and the caller reports
// the negated value to humans.
//
// Designs whose stress exceeds MaterialLimit receive PenaltyScore
// outright. That is the constraint's only enforcement mechanism; there
// is no error path. Evaluate is total over all real inputs and never
// validates bounds, which belong to the search engine.
func Evaluate(genes []float64) float64 {
	length, angle := genes[0], genes[1]

	stress := Stress(length, angle)
	if stress > MaterialLimit {
		return PenaltyScore
	}

	score := BenefitWeight*Benefit(length, angle) - StressWeight*stress
	return -score
}
