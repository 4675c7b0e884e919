package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studiva/studiva/internal/attempt"
	"github.com/studiva/studiva/internal/quiz"
)

type startAttemptReq struct {
	QuizID string `json:"quiz_id" validate:"required"`
}

// POST /attempts
//
// Opens a live session. If the quiz has no duration or no questions the
// session is already terminal by the time the snapshot is written.
func StartAttemptHandler(mgr *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startAttemptReq
		if !decodeJSON(w, r, &req) {
			return
		}
		s, err := mgr.Start(r.Context(), req.QuizID, subjectOf(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, startAttemptResp{
			Session: s.Snapshot(),
			Quiz:    s.QuizView(),
		})
	}
}

type startAttemptResp struct {
	Session attempt.Snapshot `json:"session"`
	Quiz    quiz.Quiz        `json:"quiz"`
}

type recordAnswerReq struct {
	QuestionID string `json:"question_id" validate:"required"`
	Response   string `json:"response"`
}

// POST /attempts/{sessionID}/answers
func RecordAnswerHandler(mgr *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := mgr.Get(chi.URLParam(r, "sessionID"), subjectOf(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		var req recordAnswerReq
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.RecordAnswer(req.QuestionID, req.Response); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
	}
}

type recordEventReq struct {
	EventType string `json:"event_type" validate:"required"`
	Details   string `json:"details"`
}

// POST /attempts/{sessionID}/events
func RecordEventHandler(mgr *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := mgr.Get(chi.URLParam(r, "sessionID"), subjectOf(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		var req recordEventReq
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.RecordEvent(r.Context(), req.EventType, req.Details); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
	}
}

// POST /attempts/{sessionID}/submit
func SubmitAttemptHandler(mgr *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := mgr.Get(chi.URLParam(r, "sessionID"), subjectOf(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		res, err := s.Submit(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /attempts/{sessionID}
func GetAttemptHandler(mgr *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := mgr.Get(chi.URLParam(r, "sessionID"), subjectOf(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}
