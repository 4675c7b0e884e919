package proctor

import (
	"context"
	"database/sql"
	"time"
)

// Event types reported by quiz-taking clients. They are informational
// telemetry for teachers; none of them blocks or penalizes a submission.
const (
	EventTabSwitch  = "tab_switch"
	EventCopyPaste  = "copy_paste"
	EventSubmission = "submission"
)

type Event struct {
	Offset    int64  `json:"offset"`
	QuizID    string `json:"quiz_id"`
	UserID    string `json:"user_id"`
	ResultID  string `json:"result_id,omitempty"`
	Type      string `json:"event_type"`
	Details   string `json:"details,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

func ValidType(t string) bool {
	return t == EventTabSwitch || t == EventCopyPaste || t == EventSubmission
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	var resultID any
	if e.ResultID != "" {
		resultID = e.ResultID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO proctor_events (quiz_id, user_id, result_id, event_type, details, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		e.QuizID, e.UserID, resultID, e.Type, e.Details, time.Now().Unix())
	return err
}

// ListForQuiz returns a student's events for one quiz, oldest first, for
// teacher review alongside grading.
func (r *EventRepo) ListForQuiz(ctx context.Context, quizID, userID string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", quiz_id, user_id, COALESCE(result_id,''), event_type, details, created_at
		 FROM proctor_events WHERE quiz_id=$1 AND user_id=$2 ORDER BY "offset"`,
		quizID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.QuizID, &e.UserID, &e.ResultID, &e.Type, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
