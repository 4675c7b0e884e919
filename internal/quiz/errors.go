package quiz

import "errors"

var (
	// ErrQuizNotFound indicates the quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizInactive indicates the quiz is disabled by its teacher.
	ErrQuizInactive = errors.New("quiz is not active")
	// ErrQuizNotAvailable indicates the current time is outside the quiz's availability window.
	ErrQuizNotAvailable = errors.New("quiz is not available at this time")
	// ErrNotVisible indicates the quiz is restricted to other students.
	ErrNotVisible = errors.New("quiz is not visible to this student")
	// ErrAttemptLimitReached indicates the student has used all attempts.
	ErrAttemptLimitReached = errors.New("maximum attempts for this quiz reached")
	// ErrResultNotFound indicates the result does not exist (or belongs to someone else).
	ErrResultNotFound = errors.New("result not found")
	// ErrSubmissionNotFound indicates the essay submission does not exist.
	ErrSubmissionNotFound = errors.New("essay submission not found")
	// ErrScoreOutOfRange indicates a teacher score outside [0, max_score].
	ErrScoreOutOfRange = errors.New("teacher score out of range")
	// ErrNotLatestAttempt indicates grading was requested against a superseded attempt.
	ErrNotLatestAttempt = errors.New("only the latest quiz attempt can be graded for essay questions")
	// ErrUngradedEssays indicates finalize was called while essay scores are missing.
	ErrUngradedEssays = errors.New("all essay submissions must be graded before finalizing")
	// ErrAlreadyFinalized indicates the result is already graded.
	ErrAlreadyFinalized = errors.New("result is already finalized")
	// ErrWeightsNotSet indicates no quiz weights are configured for the class.
	ErrWeightsNotSet = errors.New("quiz weights not set for this class")
	// ErrUnknownQuestion indicates a submitted answer references a question outside the quiz.
	ErrUnknownQuestion = errors.New("question not part of this quiz")
)
