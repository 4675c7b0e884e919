package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studiva/studiva/internal/grading"
	"github.com/studiva/studiva/internal/quiz"
	"github.com/studiva/studiva/internal/rbac"
)

// GET /progress/{userID}
//
// Students may only request their own progress; progress:view-all roles may
// request anyone's.
func ProgressHandler(store quiz.Store, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if userID != subjectOf(r) &&
			!checker.Has(rbac.RoleFromContext(r.Context()), "progress:view-all") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		p, err := store.QuizProgress(r.Context(), userID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

type classAverage struct {
	UserID          string  `json:"user_id"`
	Username        string  `json:"username"`
	WeightedAverage float64 `json:"weighted_average"`
}

// GET /classes/{classID}/averages
//
// Per-student weighted averages over completed and graded results. Requires
// the class weights to be configured.
func ClassAveragesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classID := chi.URLParam(r, "classID")
		weights, err := store.GetWeights(r.Context(), classID)
		if err != nil {
			writeErr(w, err)
			return
		}
		students, err := store.EligibleClassResults(r.Context(), classID)
		if err != nil {
			writeErr(w, err)
			return
		}
		cw := grading.CategoryWeights{MCQ: weights.MCQ, TrueFalse: weights.TrueFalse, Essay: weights.Essay}
		out := make([]classAverage, 0, len(students))
		for _, st := range students {
			out = append(out, classAverage{
				UserID:          st.UserID,
				Username:        st.Username,
				WeightedAverage: grading.WeightedAverage(st.Results, cw),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
