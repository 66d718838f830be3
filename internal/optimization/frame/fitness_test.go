package frame

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounds(t *testing.T) {
	bounds := Bounds()
	require.Len(t, bounds, 2)

	assert.Equal(t, [2]float64{50, 120}, bounds[0], "length bounds")
	assert.Equal(t, [2]float64{10, 30}, bounds[1], "angle bounds")

	for i, b := range bounds {
		assert.LessOrEqual(t, b[0], b[1], "bounds[%d] must not be inverted", i)
	}
}

func TestStressClosedForm(t *testing.T) {
	tests := []struct {
		name   string
		length float64
		angle  float64
		want   float64
	}{
		{"reference design", 100, 20, 84},
		{"short flat frame", 50, 10, 57},
		{"extreme corner", 120, 30, 96},
		{"at material limit", 116, 10, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Stress(tt.length, tt.angle), 1e-12)
		})
	}
}

func TestEvaluateFeasible(t *testing.T) {
	length, angle := 100.0, 20.0
	require.LessOrEqual(t, Stress(length, angle), MaterialLimit)

	got := Evaluate([]float64{length, angle})

	// Weighted combination, negated for the minimizer.
	want := -(BenefitWeight*Benefit(length, angle) - StressWeight*Stress(length, angle))
	assert.InDelta(t, want, got, 1e-12)
	assert.Less(t, got, PenaltyScore, "feasible design must beat the sentinel")
}

func TestEvaluatePenaltyCliff(t *testing.T) {
	// Stress(116, 10) sits exactly on the material limit: the
	// constraint only fires strictly above it.
	atLimit := Evaluate([]float64{116, 10})
	assert.NotEqual(t, PenaltyScore, atLimit, "stress equal to the limit is still feasible")
	assert.Less(t, math.Abs(atLimit), 100.0, "near-boundary design scores normally, never 'almost' the penalty")

	// Walk the length up one float64 step at a time until the stress
	// rounds strictly above the limit. The cliff fires within a few
	// ulps of the boundary, with no transition region in between.
	overLimit := math.Nextafter(116, 117)
	for Stress(overLimit, 10) <= MaterialLimit {
		require.Less(t, overLimit, 116+1e-12, "the boundary must sit at float resolution")
		overLimit = math.Nextafter(overLimit, 117)
	}
	assert.Equal(t, PenaltyScore, Evaluate([]float64{overLimit, 10}), "stress above the limit gets exactly the sentinel")
}

func TestEvaluateExtremeCorner(t *testing.T) {
	// The corner of the declared bounds exceeds the material limit
	// (stress 96 > 90), so it must be disqualified, not erred on.
	got := Evaluate([]float64{120, 30})
	require.Greater(t, Stress(120, 30), MaterialLimit)
	assert.Equal(t, PenaltyScore, got)
}

func TestEvaluateIsTotal(t *testing.T) {
	// The evaluator never validates bounds; any real input must
	// produce a finite score without panicking.
	inputs := [][]float64{
		{0, 0},
		{-250, 45},
		{1e6, -1e3},
		{50, 10},
		{120, 30},
	}

	for _, genes := range inputs {
		got := Evaluate(genes)
		assert.False(t, math.IsNaN(got), "Evaluate(%v) returned NaN", genes)
		assert.False(t, math.IsInf(got, 0), "Evaluate(%v) returned Inf", genes)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	genes := []float64{83.25, 17.5}
	first := Evaluate(genes)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(genes))
	}
}
