package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/studiva/studiva/internal/grading"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	visJSON, err := json.Marshal(append([]string{}, q.VisibleTo...))
	if err != nil {
		return err
	}
	active := 0
	if q.Active {
		active = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO quizzes (id,class_id,topic,type,duration_minutes,max_attempts,active,available_from,available_until,visible_to,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		q.ID, q.ClassID, q.Topic, q.Type, q.DurationMinutes, q.MaxAttempts, active,
		q.AvailableFrom, q.AvailableUntil, string(visJSON), time.Now().Unix())
	if err != nil {
		return err
	}
	for i, qu := range q.Questions {
		optJSON, merr := json.Marshal(append([]string{}, qu.Options...))
		if merr != nil {
			err = merr
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (id,quiz_id,position,text,type,options_json,answer,max_score)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			qu.ID, q.ID, i, qu.Text, qu.Type, string(optJSON), qu.Answer, qu.MaxScore)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// GetQuiz returns the full quiz including answer keys. Callers serving
// students must sanitize via Quiz.Sanitized.
func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,class_id,topic,type,duration_minutes,max_attempts,active,available_from,available_until,visible_to,created_at
		 FROM quizzes WHERE id=$1`, id)
	q, err := scanQuiz(row)
	if err != nil {
		return Quiz{}, err
	}
	qs, err := s.loadQuestions(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	q.Questions = qs
	return q, nil
}

func (s *SQLStore) loadQuestions(ctx context.Context, quizID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,quiz_id,text,type,options_json,answer,max_score
		 FROM questions WHERE quiz_id=$1 ORDER BY position`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		var qu Question
		var optJSON string
		if err := rows.Scan(&qu.ID, &qu.QuizID, &qu.Text, &qu.Type, &optJSON, &qu.Answer, &qu.MaxScore); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(optJSON), &qu.Options); err != nil {
			qu.Options = nil
		}
		out = append(out, qu)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanQuiz(row rowScanner) (Quiz, error) {
	var q Quiz
	var active int
	var visJSON string
	err := row.Scan(&q.ID, &q.ClassID, &q.Topic, &q.Type, &q.DurationMinutes, &q.MaxAttempts,
		&active, &q.AvailableFrom, &q.AvailableUntil, &visJSON, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, ErrQuizNotFound
	}
	if err != nil {
		return Quiz{}, err
	}
	q.Active = active != 0
	if err := json.Unmarshal([]byte(visJSON), &q.VisibleTo); err != nil {
		q.VisibleTo = nil
	}
	return q, nil
}

func (s *SQLStore) UpdateSettings(ctx context.Context, quizID string, set Settings) error {
	visJSON, err := json.Marshal(append([]string{}, set.VisibleTo...))
	if err != nil {
		return err
	}
	active := 0
	if set.Active {
		active = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE quizzes SET active=$1, available_from=$2, available_until=$3, visible_to=$4 WHERE id=$5`,
		active, set.AvailableFrom, set.AvailableUntil, string(visJSON), quizID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuizNotFound
	}
	return nil
}

func (s *SQLStore) ListClassQuizzes(ctx context.Context, classID string) ([]Quiz, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,class_id,topic,type,duration_minutes,max_attempts,active,available_from,available_until,visible_to,created_at
		 FROM quizzes WHERE class_id=$1 ORDER BY created_at DESC`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) LatestAttemptNumber(ctx context.Context, quizID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attempt_number),0) FROM results WHERE quiz_id=$1 AND user_id=$2`,
		quizID, userID).Scan(&n)
	return n, err
}

// SubmitResult grades a submission and persists the result, its per-question
// answers and pending essay rows in one transaction. The attempt number is
// allocated inside the transaction; the UNIQUE(quiz_id,user_id,
// attempt_number) constraint closes the race between concurrent submissions
// for the same student.
func (s *SQLStore) SubmitResult(ctx context.Context, sub Submission) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var maxAttempts int
	err = tx.QueryRowContext(ctx, `SELECT max_attempts FROM quizzes WHERE id=$1`, sub.QuizID).Scan(&maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrQuizNotFound
		return Result{}, err
	}
	if err != nil {
		return Result{}, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id,type,answer,max_score FROM questions WHERE quiz_id=$1 ORDER BY position`, sub.QuizID)
	if err != nil {
		return Result{}, err
	}
	var questions []grading.Q
	known := map[string]bool{}
	for rows.Next() {
		var q grading.Q
		if err = rows.Scan(&q.ID, &q.Type, &q.Answer, &q.MaxScore); err != nil {
			rows.Close()
			return Result{}, err
		}
		questions = append(questions, q)
		known[q.ID] = true
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return Result{}, err
	}

	responses := make(map[string]string, len(sub.Answers))
	for _, a := range sub.Answers {
		if !known[a.QuestionID] {
			err = ErrUnknownQuestion
			return Result{}, err
		}
		responses[a.QuestionID] = a.Response
	}

	var last int
	if err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attempt_number),0) FROM results WHERE quiz_id=$1 AND user_id=$2`,
		sub.QuizID, sub.UserID).Scan(&last); err != nil {
		return Result{}, err
	}
	attempt := last + 1
	if attempt > maxAttempts {
		err = ErrAttemptLimitReached
		return Result{}, err
	}

	out := grading.AutoGrade(questions, responses)
	now := time.Now().Unix()
	res := Result{
		ID:            uuid.New().String(),
		QuizID:        sub.QuizID,
		UserID:        sub.UserID,
		Score:         out.AutoPoints,
		Total:         out.Total,
		AttemptNumber: attempt,
		Status:        out.Status(),
		StartedAt:     sub.StartedAt,
		EndedAt:       sub.EndedAt,
		CreatedAt:     now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO results (id,quiz_id,user_id,score,total,attempt_number,status,started_at,ended_at,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		res.ID, res.QuizID, res.UserID, res.Score, res.Total, res.AttemptNumber, res.Status,
		res.StartedAt, res.EndedAt, res.CreatedAt)
	if err != nil {
		return Result{}, err
	}

	for i, a := range sub.Answers {
		var isCorrect any // NULL for essays
		if v := out.Verdicts[a.QuestionID]; v != nil {
			ic := 0
			if *v {
				ic = 1
			}
			isCorrect = ic
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO quiz_answers (id,result_id,question_id,user_id,position,answer,is_correct,created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			uuid.New().String(), res.ID, a.QuestionID, sub.UserID, i, a.Response, isCorrect, now)
		if err != nil {
			return Result{}, err
		}
	}

	for _, q := range questions {
		if q.Type != TypeEssay {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO essay_submissions (id,result_id,question_id,student_answer,max_score,teacher_score,teacher_feedback,updated_at)
			 VALUES ($1,$2,$3,$4,$5,NULL,NULL,$6)`,
			uuid.New().String(), res.ID, q.ID, responses[q.ID], q.MaxScore, now)
		if err != nil {
			return Result{}, err
		}
	}

	err = tx.Commit()
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (s *SQLStore) GetResult(ctx context.Context, id string) (Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,quiz_id,user_id,score,total,attempt_number,status,started_at,ended_at,created_at
		 FROM results WHERE id=$1`, id)
	var r Result
	err := row.Scan(&r.ID, &r.QuizID, &r.UserID, &r.Score, &r.Total, &r.AttemptNumber, &r.Status,
		&r.StartedAt, &r.EndedAt, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrResultNotFound
	}
	if err != nil {
		return Result{}, err
	}
	return r, nil
}

func (s *SQLStore) ListResults(ctx context.Context, userID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,quiz_id,user_id,score,total,attempt_number,status,started_at,ended_at,created_at
		 FROM results WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Result{}
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.QuizID, &r.UserID, &r.Score, &r.Total, &r.AttemptNumber, &r.Status,
			&r.StartedAt, &r.EndedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListAnswers(ctx context.Context, resultID string) ([]QuizAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,result_id,question_id,user_id,answer,is_correct,created_at
		 FROM quiz_answers WHERE result_id=$1 ORDER BY position`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []QuizAnswer{}
	for rows.Next() {
		var a QuizAnswer
		var ic sql.NullInt64
		if err := rows.Scan(&a.ID, &a.ResultID, &a.QuestionID, &a.UserID, &a.Answer, &ic, &a.CreatedAt); err != nil {
			return nil, err
		}
		if ic.Valid {
			v := ic.Int64 != 0
			a.IsCorrect = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListEssaySubmissions(ctx context.Context, resultID string) ([]EssaySubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id,e.result_id,e.question_id,q.text,e.student_answer,e.max_score,e.teacher_score,e.teacher_feedback,e.updated_at
		 FROM essay_submissions e
		 JOIN questions q ON q.id = e.question_id
		 WHERE e.result_id=$1 ORDER BY q.position`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []EssaySubmission{}
	for rows.Next() {
		es, err := scanEssay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, es)
	}
	return out, rows.Err()
}

func scanEssay(row rowScanner) (EssaySubmission, error) {
	var es EssaySubmission
	var score sql.NullInt64
	var feedback sql.NullString
	err := row.Scan(&es.ID, &es.ResultID, &es.QuestionID, &es.QuestionText, &es.StudentAnswer,
		&es.MaxScore, &score, &feedback, &es.UpdatedAt)
	if err != nil {
		return EssaySubmission{}, err
	}
	if score.Valid {
		v := int(score.Int64)
		es.TeacherScore = &v
	}
	if feedback.Valid {
		v := feedback.String
		es.TeacherFeedback = &v
	}
	return es, nil
}

// GradeEssay records a teacher score for one essay submission. The score
// must be an integer in [0, max_score] and the parent result must be the
// student's latest attempt for that quiz.
func (s *SQLStore) GradeEssay(ctx context.Context, submissionID string, score int, feedback string) (EssaySubmission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return EssaySubmission{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT e.id,e.result_id,e.question_id,q.text,e.student_answer,e.max_score,e.teacher_score,e.teacher_feedback,e.updated_at
		 FROM essay_submissions e
		 JOIN questions q ON q.id = e.question_id
		 WHERE e.id=$1`, submissionID)
	es, err := scanEssay(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrSubmissionNotFound
		return EssaySubmission{}, err
	}
	if err != nil {
		return EssaySubmission{}, err
	}

	if score < 0 || score > es.MaxScore {
		err = ErrScoreOutOfRange
		return EssaySubmission{}, err
	}

	if err = s.checkGradable(ctx, tx, es.ResultID); err != nil {
		return EssaySubmission{}, err
	}

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx,
		`UPDATE essay_submissions SET teacher_score=$1, teacher_feedback=$2, updated_at=$3 WHERE id=$4`,
		score, feedback, now, submissionID)
	if err != nil {
		return EssaySubmission{}, err
	}
	if err = tx.Commit(); err != nil {
		return EssaySubmission{}, err
	}

	es.TeacherScore = &score
	es.TeacherFeedback = &feedback
	es.UpdatedAt = now
	return es, nil
}

// checkGradable rejects grading operations against finalized results and
// against any attempt that is not the student's latest for the quiz.
func (s *SQLStore) checkGradable(ctx context.Context, tx *sql.Tx, resultID string) error {
	var quizID, userID, status string
	var attempt int
	err := tx.QueryRowContext(ctx,
		`SELECT quiz_id,user_id,attempt_number,status FROM results WHERE id=$1`, resultID).
		Scan(&quizID, &userID, &attempt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrResultNotFound
	}
	if err != nil {
		return err
	}
	if status == StatusGraded {
		return ErrAlreadyFinalized
	}
	var latest int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attempt_number),0) FROM results WHERE quiz_id=$1 AND user_id=$2`,
		quizID, userID).Scan(&latest); err != nil {
		return err
	}
	if attempt != latest {
		return ErrNotLatestAttempt
	}
	return nil
}

// FinalizeGrading recomputes the result score from auto-graded answers plus
// teacher essay scores and moves the status to graded. The "all essays
// graded" condition is re-validated inside the transaction, not trusted from
// whatever the caller saw at page-load time.
func (s *SQLStore) FinalizeGrading(ctx context.Context, resultID string) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var r Result
	err = tx.QueryRowContext(ctx,
		`SELECT id,quiz_id,user_id,score,total,attempt_number,status,started_at,ended_at,created_at
		 FROM results WHERE id=$1`, resultID).
		Scan(&r.ID, &r.QuizID, &r.UserID, &r.Score, &r.Total, &r.AttemptNumber, &r.Status,
			&r.StartedAt, &r.EndedAt, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrResultNotFound
		return Result{}, err
	}
	if err != nil {
		return Result{}, err
	}
	if r.Status != StatusPendingReview {
		err = ErrAlreadyFinalized
		return Result{}, err
	}

	var latest int
	if err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attempt_number),0) FROM results WHERE quiz_id=$1 AND user_id=$2`,
		r.QuizID, r.UserID).Scan(&latest); err != nil {
		return Result{}, err
	}
	if r.AttemptNumber != latest {
		err = ErrNotLatestAttempt
		return Result{}, err
	}

	var ungraded int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM essay_submissions WHERE result_id=$1 AND teacher_score IS NULL`,
		resultID).Scan(&ungraded); err != nil {
		return Result{}, err
	}
	if ungraded > 0 {
		err = ErrUngradedEssays
		return Result{}, err
	}

	var autoPoints, essayPoints int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quiz_answers WHERE result_id=$1 AND is_correct=1`,
		resultID).Scan(&autoPoints); err != nil {
		return Result{}, err
	}
	if err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(teacher_score),0) FROM essay_submissions WHERE result_id=$1`,
		resultID).Scan(&essayPoints); err != nil {
		return Result{}, err
	}

	r.Score = autoPoints + essayPoints
	r.Status = StatusGraded
	_, err = tx.ExecContext(ctx,
		`UPDATE results SET score=$1, status=$2 WHERE id=$3`, r.Score, r.Status, resultID)
	if err != nil {
		return Result{}, err
	}
	if err = tx.Commit(); err != nil {
		return Result{}, err
	}
	return r, nil
}

func (s *SQLStore) GetWeights(ctx context.Context, classID string) (Weights, error) {
	var w Weights
	err := s.db.QueryRowContext(ctx,
		`SELECT mcq_weight,true_false_weight,essay_weight FROM quiz_weights WHERE class_id=$1`,
		classID).Scan(&w.MCQ, &w.TrueFalse, &w.Essay)
	if errors.Is(err, sql.ErrNoRows) {
		return Weights{}, ErrWeightsNotSet
	}
	if err != nil {
		return Weights{}, err
	}
	return w, nil
}

func (s *SQLStore) SetWeights(ctx context.Context, classID string, w Weights) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_weights (class_id,mcq_weight,true_false_weight,essay_weight)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (class_id) DO UPDATE SET mcq_weight=EXCLUDED.mcq_weight,
		   true_false_weight=EXCLUDED.true_false_weight, essay_weight=EXCLUDED.essay_weight`,
		classID, w.MCQ, w.TrueFalse, w.Essay)
	return err
}

// EligibleClassResults returns, per student, the completed/graded results of
// a class keyed by quiz type. Pending-review results are excluded until
// finalized.
func (s *SQLStore) EligibleClassResults(ctx context.Context, classID string) ([]StudentResults, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.user_id, COALESCE(u.username,''), q.type, r.score, r.total
		 FROM results r
		 JOIN quizzes q ON q.id = r.quiz_id
		 LEFT JOIN users u ON u.id = r.user_id
		 WHERE q.class_id=$1 AND r.status IN ('completed','graded')
		 ORDER BY r.user_id`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byUser := map[string]*StudentResults{}
	order := []string{}
	for rows.Next() {
		var userID, username string
		var sr grading.ScoredResult
		if err := rows.Scan(&userID, &username, &sr.Type, &sr.Score, &sr.Total); err != nil {
			return nil, err
		}
		st, ok := byUser[userID]
		if !ok {
			st = &StudentResults{UserID: userID, Username: username}
			byUser[userID] = st
			order = append(order, userID)
		}
		st.Results = append(st.Results, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]StudentResults, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	return out, nil
}

func (s *SQLStore) QuizProgress(ctx context.Context, userID string) (Progress, error) {
	results, err := s.ListResults(ctx, userID)
	if err != nil {
		return Progress{}, err
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quizzes`).Scan(&total); err != nil {
		return Progress{}, err
	}
	seen := map[string]bool{}
	for _, r := range results {
		seen[r.QuizID] = true
	}
	p := Progress{UserID: userID, Completed: len(seen), Total: total, Results: results}
	if total > 0 {
		p.Percentage = float64(p.Completed) / float64(total) * 100
	}
	return p, nil
}
