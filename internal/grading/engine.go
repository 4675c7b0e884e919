package grading

// Q is a minimal view of a question needed for grading. The quiz store maps
// its own question rows into this shape before the auto-grade pass.
type Q struct {
	ID       string
	Type     string
	Answer   string
	MaxScore int
}

// Question types understood by the engine. Kept in sync with the quiz package.
const (
	TypeMCQ       = "mcq"
	TypeTrueFalse = "true_false"
	TypeEssay     = "essay"
)

// Outcome is the result of the synchronous auto-grade pass over one
// submitted attempt.
type Outcome struct {
	AutoPoints    int             // points from auto-gradable questions
	Total         int             // auto-gradable count + sum of essay max scores
	PendingEssays int             // essay questions awaiting a teacher score
	Verdicts      map[string]*bool // question id -> correct; nil for essays
}

// AutoGrade grades every auto-gradable question by exact string comparison.
// The match is case-sensitive with no trimming: "True" does not match
// "true". Essay questions contribute their max score to the total and are
// left for manual grading. A question with no recorded response is graded
// against the empty string.
func AutoGrade(questions []Q, responses map[string]string) Outcome {
	out := Outcome{Verdicts: make(map[string]*bool, len(questions))}
	for _, q := range questions {
		switch q.Type {
		case TypeMCQ, TypeTrueFalse:
			out.Total++
			correct := responses[q.ID] == q.Answer
			if correct {
				out.AutoPoints++
			}
			v := correct
			out.Verdicts[q.ID] = &v
		case TypeEssay:
			out.Total += q.MaxScore
			out.PendingEssays++
			out.Verdicts[q.ID] = nil
		}
	}
	return out
}

// Status returns the result status implied by the auto-grade pass.
func (o Outcome) Status() string {
	if o.PendingEssays > 0 {
		return "pending_review"
	}
	return "completed"
}
