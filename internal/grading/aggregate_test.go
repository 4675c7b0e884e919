package grading

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestWeightedAverageSingleCategory(t *testing.T) {
	// One perfect essay result with weights {mcq:50, tf:0, essay:50}: the
	// empty categories contribute nothing, so the blend is 50, not 100.
	results := []ScoredResult{{Type: TypeEssay, Score: 20, Total: 20}}
	w := CategoryWeights{MCQ: 50, TrueFalse: 0, Essay: 50}

	got := WeightedAverage(results, w)
	if !almostEqual(got, 50) {
		t.Fatalf("WeightedAverage = %v, want 50", got)
	}
}

func TestWeightedAverageBlend(t *testing.T) {
	results := []ScoredResult{
		{Type: TypeMCQ, Score: 8, Total: 10},  // 80%
		{Type: TypeMCQ, Score: 6, Total: 10},  // 60% -> mcq avg 70%
		{Type: TypeEssay, Score: 10, Total: 20}, // essay avg 50%
	}
	w := CategoryWeights{MCQ: 40, TrueFalse: 30, Essay: 30}

	// 70*0.40 + 50*0.30 = 28 + 15 = 43
	got := WeightedAverage(results, w)
	if !almostEqual(got, 43) {
		t.Fatalf("WeightedAverage = %v, want 43", got)
	}
}

func TestWeightedAverageUnnormalizedWeights(t *testing.T) {
	// Weights are independent multipliers; they do not have to sum to 100.
	results := []ScoredResult{
		{Type: TypeMCQ, Score: 10, Total: 10},
		{Type: TypeEssay, Score: 20, Total: 20},
	}
	w := CategoryWeights{MCQ: 100, TrueFalse: 0, Essay: 100}

	got := WeightedAverage(results, w)
	if !almostEqual(got, 200) {
		t.Fatalf("WeightedAverage = %v, want 200", got)
	}
}

func TestWeightedAverageSkipsZeroTotals(t *testing.T) {
	results := []ScoredResult{
		{Type: TypeMCQ, Score: 0, Total: 0},
		{Type: TypeMCQ, Score: 5, Total: 10},
	}
	w := CategoryWeights{MCQ: 100}

	got := WeightedAverage(results, w)
	if !almostEqual(got, 50) {
		t.Fatalf("WeightedAverage = %v, want 50", got)
	}
}

func TestWeightedAverageNoResults(t *testing.T) {
	if got := WeightedAverage(nil, CategoryWeights{MCQ: 100, TrueFalse: 100, Essay: 100}); got != 0 {
		t.Fatalf("WeightedAverage = %v, want 0", got)
	}
}
