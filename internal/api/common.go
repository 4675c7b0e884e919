package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studiva/studiva/internal/attempt"
	auth "github.com/studiva/studiva/internal/auth/middleware"
	"github.com/studiva/studiva/internal/quiz"
)

var validate = validator.New()

func subjectOf(r *http.Request) string { return auth.SubjectFromContext(r.Context()) }

func nowUnix() int64 { return time.Now().Unix() }

// Invalidator drops a cached quiz definition after a write. Nil when the
// cache is disabled.
type Invalidator interface {
	Invalidate(ctx context.Context, id string)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeErr maps domain sentinels onto HTTP statuses; anything unmapped is a
// 500 with a generic body so store internals never leak to clients.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrQuizNotFound),
		errors.Is(err, quiz.ErrResultNotFound),
		errors.Is(err, quiz.ErrSubmissionNotFound),
		errors.Is(err, attempt.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, quiz.ErrQuizInactive),
		errors.Is(err, quiz.ErrQuizNotAvailable),
		errors.Is(err, quiz.ErrNotVisible):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, quiz.ErrAttemptLimitReached),
		errors.Is(err, quiz.ErrNotLatestAttempt),
		errors.Is(err, quiz.ErrUngradedEssays),
		errors.Is(err, quiz.ErrAlreadyFinalized),
		errors.Is(err, attempt.ErrSessionEnded):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, quiz.ErrScoreOutOfRange),
		errors.Is(err, quiz.ErrUnknownQuestion),
		errors.Is(err, quiz.ErrWeightsNotSet):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
