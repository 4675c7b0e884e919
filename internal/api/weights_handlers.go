package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studiva/studiva/internal/quiz"
)

// GET /classes/{classID}/quiz-weights
func GetWeightsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		weights, err := store.GetWeights(r.Context(), chi.URLParam(r, "classID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, weights)
	}
}

type setWeightsReq struct {
	MCQ       int `json:"mcq_weight" validate:"min=0"`
	TrueFalse int `json:"true_false_weight" validate:"min=0"`
	Essay     int `json:"essay_weight" validate:"min=0"`
}

// POST /classes/{classID}/quiz-weights
//
// Weights are stored as given. They are independent multipliers and are not
// normalized to sum to 100.
func SetWeightsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setWeightsReq
		if !decodeJSON(w, r, &req) {
			return
		}
		w2 := quiz.Weights{MCQ: req.MCQ, TrueFalse: req.TrueFalse, Essay: req.Essay}
		if err := store.SetWeights(r.Context(), chi.URLParam(r, "classID"), w2); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, w2)
	}
}
