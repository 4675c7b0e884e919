package quiz

// Question types. A quiz is homogeneous: every question shares the quiz type.
const (
	TypeMCQ       = "mcq"
	TypeTrueFalse = "true_false"
	TypeEssay     = "essay"
)

// Result statuses.
const (
	StatusCompleted     = "completed"
	StatusPendingReview = "pending_review"
	StatusGraded        = "graded"
)

type Question struct {
	ID       string   `json:"id"`
	QuizID   string   `json:"quiz_id,omitempty"`
	Text     string   `json:"text"`
	Type     string   `json:"type"`
	Options  []string `json:"options,omitempty"`
	Answer   string   `json:"answer,omitempty"` // stripped before serving to students
	MaxScore int      `json:"max_score,omitempty"`
}

type Quiz struct {
	ID              string     `json:"id"`
	ClassID         string     `json:"class_id"`
	Topic           string     `json:"topic"`
	Type            string     `json:"type"`
	DurationMinutes int        `json:"duration_minutes"`
	MaxAttempts     int        `json:"max_attempts"`
	Active          bool       `json:"active"`
	AvailableFrom   *int64     `json:"available_from,omitempty"`  // unix seconds
	AvailableUntil  *int64     `json:"available_until,omitempty"` // unix seconds
	VisibleTo       []string   `json:"visible_to,omitempty"`      // empty = visible to all
	Questions       []Question `json:"questions"`
	CreatedAt       int64      `json:"created_at,omitempty"`
}

// Settings are the only quiz fields editable once attempts exist; changing
// them never invalidates in-flight sessions.
type Settings struct {
	Active         bool     `json:"active"`
	AvailableFrom  *int64   `json:"available_from,omitempty"`
	AvailableUntil *int64   `json:"available_until,omitempty"`
	VisibleTo      []string `json:"visible_to,omitempty"`
}

// AnswerRecord is one entry of the submission payload. Responses are always
// strings regardless of question type; the wire contract depends on it.
type AnswerRecord struct {
	QuestionID string `json:"question_id"`
	Response   string `json:"response"`
}

// Submission is a complete attempt handed to the grading pass.
type Submission struct {
	QuizID    string         `json:"quiz_id"`
	UserID    string         `json:"-"`
	Answers   []AnswerRecord `json:"answers"`
	StartedAt int64          `json:"started_at"`
	EndedAt   int64          `json:"ended_at"`
}

type Result struct {
	ID            string `json:"id"`
	QuizID        string `json:"quiz_id"`
	UserID        string `json:"user_id"`
	Score         int    `json:"score"`
	Total         int    `json:"total"`
	AttemptNumber int    `json:"attempt_number"`
	Status        string `json:"status"`
	StartedAt     int64  `json:"started_at"`
	EndedAt       int64  `json:"ended_at"`
	CreatedAt     int64  `json:"created_at"`
}

type QuizAnswer struct {
	ID         string `json:"id"`
	ResultID   string `json:"result_id"`
	QuestionID string `json:"question_id"`
	UserID     string `json:"user_id"`
	Answer     string `json:"answer"`
	IsCorrect  *bool  `json:"is_correct"` // nil for essays
	CreatedAt  int64  `json:"created_at"`
}

type EssaySubmission struct {
	ID              string  `json:"id"`
	ResultID        string  `json:"result_id"`
	QuestionID      string  `json:"question_id"`
	QuestionText    string  `json:"question_text,omitempty"`
	StudentAnswer   string  `json:"student_answer"`
	MaxScore        int     `json:"max_score"`
	TeacherScore    *int    `json:"teacher_score"`
	TeacherFeedback *string `json:"teacher_feedback"`
	UpdatedAt       int64   `json:"updated_at"`
}

// Weights are class-level per-type multipliers. They are independent
// integers and are intentionally not required to sum to 100.
type Weights struct {
	MCQ       int `json:"mcq_weight"`
	TrueFalse int `json:"true_false_weight"`
	Essay     int `json:"essay_weight"`
}

// Sanitized returns a copy safe to serve to students: answer keys removed,
// visibility list withheld.
func (q Quiz) Sanitized() Quiz {
	out := q
	out.VisibleTo = nil
	out.Questions = make([]Question, len(q.Questions))
	for i, qu := range q.Questions {
		qu.Answer = ""
		out.Questions[i] = qu
	}
	return out
}

// CheckAvailable reports whether a student may open this quiz at the given
// unix time.
func (q Quiz) CheckAvailable(userID string, now int64) error {
	if !q.Active {
		return ErrQuizInactive
	}
	if q.AvailableFrom != nil && now < *q.AvailableFrom {
		return ErrQuizNotAvailable
	}
	if q.AvailableUntil != nil && now > *q.AvailableUntil {
		return ErrQuizNotAvailable
	}
	if len(q.VisibleTo) > 0 {
		for _, id := range q.VisibleTo {
			if id == userID {
				return nil
			}
		}
		return ErrNotVisible
	}
	return nil
}
