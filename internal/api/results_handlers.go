package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studiva/studiva/internal/proctor"
	"github.com/studiva/studiva/internal/quiz"
	"github.com/studiva/studiva/internal/rbac"
)

type submitResultReq struct {
	QuizID    string              `json:"quiz_id" validate:"required"`
	Answers   []quiz.AnswerRecord `json:"answers"`
	StartedAt int64               `json:"started_at" validate:"required"`
	EndedAt   int64               `json:"ended_at" validate:"required"`
}

// POST /results/submit
//
// Direct submission path for clients that manage their own attempt timing.
// It shares the grading transaction with the session path, so the attempt
// limit and answer validation apply identically.
func SubmitResultHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitResultReq
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := store.SubmitResult(r.Context(), quiz.Submission{
			QuizID:    req.QuizID,
			UserID:    subjectOf(r),
			Answers:   req.Answers,
			StartedAt: req.StartedAt,
			EndedAt:   req.EndedAt,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// GET /results/history
func ResultHistoryHandler(store quiz.Store, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Teachers may inspect another student's history via ?user_id=.
		userID := subjectOf(r)
		if v := r.URL.Query().Get("user_id"); v != "" {
			if !checker.Has(rbac.RoleFromContext(r.Context()), "result:view-all") {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			userID = v
		}
		results, err := store.ListResults(r.Context(), userID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

// loadVisibleResult fetches a result and enforces ownership: students may
// only read their own results, graders may read any.
func loadVisibleResult(r *http.Request, store quiz.Store, checker *rbac.Checker) (quiz.Result, error) {
	res, err := store.GetResult(r.Context(), chi.URLParam(r, "resultID"))
	if err != nil {
		return quiz.Result{}, err
	}
	if res.UserID != subjectOf(r) &&
		!checker.Has(rbac.RoleFromContext(r.Context()), "result:view-all") {
		return quiz.Result{}, quiz.ErrResultNotFound
	}
	return res, nil
}

// GET /results/{resultID}
func GetResultHandler(store quiz.Store, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := loadVisibleResult(r, store, checker)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /results/{resultID}/answers
func ListAnswersHandler(store quiz.Store, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := loadVisibleResult(r, store, checker)
		if err != nil {
			writeErr(w, err)
			return
		}
		answers, err := store.ListAnswers(r.Context(), res.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, answers)
	}
}

// GET /results/{resultID}/events
//
// Proctor telemetry recorded during the attempt, for teacher review.
func ProctorLogHandler(store quiz.Store, events *proctor.EventRepo, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := loadVisibleResult(r, store, checker)
		if err != nil {
			writeErr(w, err)
			return
		}
		log, err := events.ListForQuiz(r.Context(), res.QuizID, res.UserID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, log)
	}
}
