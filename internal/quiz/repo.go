package quiz

import (
	"context"

	"github.com/studiva/studiva/internal/grading"
)

// Loader fetches quiz definitions. The SQL store implements it directly;
// the redis cache wraps it for hot read paths.
type Loader interface {
	GetQuiz(ctx context.Context, id string) (Quiz, error)
}

// StudentResults groups one student's eligible (completed/graded) results
// for class-level weighted aggregation.
type StudentResults struct {
	UserID   string
	Username string
	Results  []grading.ScoredResult
}

// Progress is the quiz-completion view for one student.
type Progress struct {
	UserID     string   `json:"user_id"`
	Completed  int      `json:"completed"`
	Total      int      `json:"total"`
	Percentage float64  `json:"percentage"`
	Results    []Result `json:"results"`
}

type Store interface {
	Loader
	PutQuiz(ctx context.Context, q Quiz) error
	UpdateSettings(ctx context.Context, quizID string, s Settings) error
	ListClassQuizzes(ctx context.Context, classID string) ([]Quiz, error)

	LatestAttemptNumber(ctx context.Context, quizID, userID string) (int, error)
	SubmitResult(ctx context.Context, sub Submission) (Result, error)

	GetResult(ctx context.Context, id string) (Result, error)
	ListResults(ctx context.Context, userID string) ([]Result, error)
	ListAnswers(ctx context.Context, resultID string) ([]QuizAnswer, error)

	ListEssaySubmissions(ctx context.Context, resultID string) ([]EssaySubmission, error)
	GradeEssay(ctx context.Context, submissionID string, score int, feedback string) (EssaySubmission, error)
	FinalizeGrading(ctx context.Context, resultID string) (Result, error)

	GetWeights(ctx context.Context, classID string) (Weights, error)
	SetWeights(ctx context.Context, classID string, w Weights) error
	EligibleClassResults(ctx context.Context, classID string) ([]StudentResults, error)

	QuizProgress(ctx context.Context, userID string) (Progress, error)
}
