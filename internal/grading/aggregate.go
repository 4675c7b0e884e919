package grading

// CategoryWeights are the class-configured per-type multipliers. They are
// independent integers; nothing requires them to sum to 100.
type CategoryWeights struct {
	MCQ       int
	TrueFalse int
	Essay     int
}

// ScoredResult is one eligible result (status completed or graded) viewed by
// the aggregator. Results still pending review must not be passed in.
type ScoredResult struct {
	Type  string // quiz type: mcq|true_false|essay
	Score int
	Total int
}

// WeightedAverage blends per-category average percentages by the class
// weights: sum over categories of mean(score/total*100) * weight / 100.
// A category with no eligible results contributes 0. Results with a zero
// total are skipped rather than divided.
func WeightedAverage(results []ScoredResult, w CategoryWeights) float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, r := range results {
		if r.Total <= 0 {
			continue
		}
		sums[r.Type] += float64(r.Score) / float64(r.Total) * 100
		counts[r.Type]++
	}

	weighted := 0.0
	for typ, weight := range map[string]int{
		TypeMCQ:       w.MCQ,
		TypeTrueFalse: w.TrueFalse,
		TypeEssay:     w.Essay,
	} {
		if counts[typ] == 0 {
			continue
		}
		avg := sums[typ] / float64(counts[typ])
		weighted += avg * float64(weight) / 100
	}
	return weighted
}
