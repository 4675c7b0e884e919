package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studiva/studiva/internal/quiz"
)

// GET /results/{resultID}/essay-submissions
func ListEssaySubmissionsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resultID := chi.URLParam(r, "resultID")
		if _, err := store.GetResult(r.Context(), resultID); err != nil {
			writeErr(w, err)
			return
		}
		subs, err := store.ListEssaySubmissions(r.Context(), resultID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, subs)
	}
}

type gradeEssayReq struct {
	Score    *int   `json:"score" validate:"required"`
	Feedback string `json:"feedback"`
}

// PUT /results/essay-submissions/{submissionID}/grade
//
// The score must be an integer in [0, max_score]; the range check and the
// latest-attempt rule are enforced by the store inside its transaction.
func GradeEssayHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gradeEssayReq
		if !decodeJSON(w, r, &req) {
			return
		}
		es, err := store.GradeEssay(r.Context(), chi.URLParam(r, "submissionID"), *req.Score, req.Feedback)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, es)
	}
}

// POST /results/{resultID}/finalize-grading
func FinalizeGradingHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := store.FinalizeGrading(r.Context(), chi.URLParam(r, "resultID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
