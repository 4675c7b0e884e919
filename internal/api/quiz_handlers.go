package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studiva/studiva/internal/quiz"
	"github.com/studiva/studiva/internal/rbac"
)

type createQuizReq struct {
	ClassID         string              `json:"class_id" validate:"required"`
	Topic           string              `json:"topic" validate:"required"`
	Type            string              `json:"type" validate:"required,oneof=mcq true_false essay"`
	DurationMinutes int                 `json:"duration_minutes" validate:"min=0"`
	MaxAttempts     int                 `json:"max_attempts" validate:"min=1"`
	Active          bool                `json:"active"`
	AvailableFrom   *int64              `json:"available_from"`
	AvailableUntil  *int64              `json:"available_until"`
	VisibleTo       []string            `json:"visible_to"`
	Questions       []createQuestionReq `json:"questions" validate:"required,min=1,dive"`
}

type createQuestionReq struct {
	Text     string   `json:"text" validate:"required"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
	MaxScore int      `json:"max_score" validate:"min=0"`
}

// POST /quizzes
func CreateQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createQuizReq
		if !decodeJSON(w, r, &req) {
			return
		}
		// Quizzes are homogeneous; per-question constraints follow the quiz
		// type.
		for _, qr := range req.Questions {
			switch req.Type {
			case quiz.TypeMCQ:
				if len(qr.Options) < 2 {
					http.Error(w, "mcq questions need at least two options", http.StatusBadRequest)
					return
				}
				found := false
				for _, opt := range qr.Options {
					if opt == qr.Answer {
						found = true
						break
					}
				}
				if !found {
					http.Error(w, "mcq answer must be one of the options", http.StatusBadRequest)
					return
				}
			case quiz.TypeTrueFalse:
				if qr.Answer != "True" && qr.Answer != "False" {
					http.Error(w, `true/false answers must be "True" or "False"`, http.StatusBadRequest)
					return
				}
			case quiz.TypeEssay:
				if qr.MaxScore <= 0 {
					http.Error(w, "essay questions need a positive max_score", http.StatusBadRequest)
					return
				}
			}
		}

		q := quiz.Quiz{
			ID:              uuid.NewString(),
			ClassID:         req.ClassID,
			Topic:           req.Topic,
			Type:            req.Type,
			DurationMinutes: req.DurationMinutes,
			MaxAttempts:     req.MaxAttempts,
			Active:          req.Active,
			AvailableFrom:   req.AvailableFrom,
			AvailableUntil:  req.AvailableUntil,
			VisibleTo:       req.VisibleTo,
		}
		for _, qr := range req.Questions {
			maxScore := qr.MaxScore
			if req.Type != quiz.TypeEssay {
				maxScore = 1
			}
			q.Questions = append(q.Questions, quiz.Question{
				ID:       uuid.NewString(),
				QuizID:   q.ID,
				Text:     qr.Text,
				Type:     req.Type,
				Options:  qr.Options,
				Answer:   qr.Answer,
				MaxScore: maxScore,
			})
		}
		if err := store.PutQuiz(r.Context(), q); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// GET /quizzes/{quizID}
//
// Students get the sanitized view and only inside the availability window;
// graders see the full definition including answer keys.
func GetQuizHandler(loader quiz.Loader, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := loader.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		if checker.Has(role, "result:grade") {
			writeJSON(w, http.StatusOK, q)
			return
		}
		sub := subjectOf(r)
		if err := q.CheckAvailable(sub, nowUnix()); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q.Sanitized())
	}
}

// GET /classes/{classID}/quizzes
func ListClassQuizzesHandler(store quiz.Store, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizzes, err := store.ListClassQuizzes(r.Context(), chi.URLParam(r, "classID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		if checker.Has(role, "result:grade") {
			writeJSON(w, http.StatusOK, quizzes)
			return
		}
		// Students see only quizzes currently open to them, sanitized and
		// without question bodies (those are served per-quiz).
		sub := subjectOf(r)
		now := nowUnix()
		out := []quiz.Quiz{}
		for _, q := range quizzes {
			if q.CheckAvailable(sub, now) == nil {
				out = append(out, q.Sanitized())
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type updateSettingsReq struct {
	Active         bool     `json:"active"`
	AvailableFrom  *int64   `json:"available_from"`
	AvailableUntil *int64   `json:"available_until"`
	VisibleTo      []string `json:"visible_to"`
}

// PUT /quizzes/{quizID}/settings
func UpdateQuizSettingsHandler(store quiz.Store, cache Invalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		var req updateSettingsReq
		if !decodeJSON(w, r, &req) {
			return
		}
		err := store.UpdateSettings(r.Context(), quizID, quiz.Settings{
			Active:         req.Active,
			AvailableFrom:  req.AvailableFrom,
			AvailableUntil: req.AvailableUntil,
			VisibleTo:      req.VisibleTo,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		if cache != nil {
			cache.Invalidate(r.Context(), quizID)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}
