package attempt

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/studiva/studiva/internal/proctor"
	"github.com/studiva/studiva/internal/quiz"
)

var (
	// ErrSessionNotFound indicates an unknown or already torn-down session.
	ErrSessionNotFound = errors.New("attempt session not found")
	// ErrSessionEnded indicates the session has already produced its submission.
	ErrSessionEnded = errors.New("attempt session already ended")
)

type State string

const (
	StateActive      State = "active"
	StateSubmitting  State = "submitting"
	StateSubmitted   State = "submitted"
	StateSubmitError State = "submit_error"
)

// Submitter persists a finished attempt. Implemented by *quiz.SQLStore.
type Submitter interface {
	SubmitResult(ctx context.Context, sub quiz.Submission) (quiz.Result, error)
}

// Recorder appends proctor telemetry. Implemented by *proctor.EventRepo.
type Recorder interface {
	Append(ctx context.Context, e proctor.Event) error
}

// Session owns a single quiz attempt from load to submission: the countdown
// timer, the collected answers and the focus-loss latches all live here, and
// are torn down exactly once on any terminal transition. Submission happens
// at most once no matter how the manual-submit path and the timer-expiry
// path race.
type Session struct {
	ID     string
	QuizID string
	UserID string

	mu         sync.Mutex
	view       quiz.Quiz
	questions  []quiz.Question
	duration   time.Duration
	answers    map[string]string
	startedAt  time.Time
	state      State
	ended      bool
	tabBlurred bool
	copyPaste  bool
	timer      *time.Timer
	now        func() time.Time
	submitter  Submitter
	events     Recorder
	onTerminal func(*Session)
	result     quiz.Result
	submitErr  error
}

// Snapshot is the client-facing view of a session.
type Snapshot struct {
	ID                string       `json:"id"`
	QuizID            string       `json:"quiz_id"`
	State             State        `json:"state"`
	StartedAt         int64        `json:"started_at"`
	RemainingSeconds  int          `json:"remaining_seconds"`
	TabBlurred        bool         `json:"tab_blurred"`
	CopyPasteDetected bool         `json:"copy_paste_detected"`
	Answered          int          `json:"answered"`
	Result            *quiz.Result `json:"result,omitempty"`
	Error             string       `json:"error,omitempty"`
}

func newSession(id string, q quiz.Quiz, userID string, submitter Submitter, events Recorder, now func() time.Time) *Session {
	return &Session{
		ID:        id,
		QuizID:    q.ID,
		UserID:    userID,
		view:      q.Sanitized(),
		questions: q.Questions,
		duration:  time.Duration(q.DurationMinutes) * time.Minute,
		answers:   map[string]string{},
		startedAt: now(),
		state:     StateActive,
		now:       now,
		submitter: submitter,
		events:    events,
	}
}

// start arms the countdown, or auto-submits immediately for a zero-duration
// or empty quiz.
func (s *Session) start(d time.Duration) {
	if d <= 0 || len(s.questions) == 0 {
		_, _ = s.Submit(context.Background())
		return
	}
	s.mu.Lock()
	s.timer = time.AfterFunc(d, func() {
		_, _ = s.Submit(context.Background())
	})
	s.mu.Unlock()
}

// RecordAnswer overwrites the response for one question. Responses are raw
// strings; no type or format validation happens at this layer. Rejected once
// the session has ended so inputs effectively become read-only the instant
// submission is claimed.
func (s *Session) RecordAnswer(questionID, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	s.answers[questionID] = response
	return nil
}

// RecordEvent logs a proctor event and sets the corresponding latch. The
// blur latch is set permanently on first focus loss; it never pauses the
// timer and never blocks submission.
func (s *Session) RecordEvent(ctx context.Context, eventType, details string) error {
	if !proctor.ValidType(eventType) {
		return errors.New("unknown event type: " + eventType)
	}
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	switch eventType {
	case proctor.EventTabSwitch:
		s.tabBlurred = true
	case proctor.EventCopyPaste:
		s.copyPaste = true
	}
	s.mu.Unlock()

	if s.events != nil {
		if err := s.events.Append(ctx, proctor.Event{
			QuizID:  s.QuizID,
			UserID:  s.UserID,
			Type:    eventType,
			Details: details,
		}); err != nil {
			log.Printf("proctor event append failed: %v", err)
		}
	}
	return nil
}

// Submit claims the single submission slot and sends the payload. The ended
// latch is set synchronously under the lock before any store call, so a
// manual submit and the timer expiring in the same tick produce exactly one
// result; the loser gets ErrSessionEnded. Terminal either way: on store
// failure the session moves to StateSubmitError and stays there, no retry.
func (s *Session) Submit(ctx context.Context) (quiz.Result, error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return quiz.Result{}, ErrSessionEnded
	}
	s.ended = true
	s.state = StateSubmitting
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	endedAt := s.now()
	answers := make([]quiz.AnswerRecord, len(s.questions))
	for i, q := range s.questions {
		answers[i] = quiz.AnswerRecord{QuestionID: q.ID, Response: s.answers[q.ID]}
	}
	sub := quiz.Submission{
		QuizID:    s.QuizID,
		UserID:    s.UserID,
		Answers:   answers,
		StartedAt: s.startedAt.Unix(),
		EndedAt:   endedAt.Unix(),
	}
	s.mu.Unlock()

	res, err := s.submitter.SubmitResult(ctx, sub)

	s.mu.Lock()
	if err != nil {
		s.state = StateSubmitError
		s.submitErr = err
	} else {
		s.state = StateSubmitted
		s.result = res
	}
	blurred := s.tabBlurred || s.copyPaste
	onTerminal := s.onTerminal
	s.mu.Unlock()

	if err == nil && blurred && s.events != nil {
		if aerr := s.events.Append(ctx, proctor.Event{
			QuizID:   s.QuizID,
			UserID:   s.UserID,
			ResultID: res.ID,
			Type:     proctor.EventSubmission,
			Details:  "submitted with suspicious activity flags",
		}); aerr != nil {
			log.Printf("proctor event append failed: %v", aerr)
		}
	}
	if onTerminal != nil {
		onTerminal(s)
	}
	return res, err
}

// QuizView returns the student-safe quiz definition the session was opened
// with. It is immutable for the life of the session, so mid-attempt settings
// changes never reshape a quiz under a student.
func (s *Session) QuizView() quiz.Quiz { return s.view }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:                s.ID,
		QuizID:            s.QuizID,
		State:             s.state,
		StartedAt:         s.startedAt.Unix(),
		TabBlurred:        s.tabBlurred,
		CopyPasteDetected: s.copyPaste,
		Answered:          len(s.answers),
	}
	if s.state == StateActive {
		remaining := s.duration - s.now().Sub(s.startedAt)
		if remaining < 0 {
			remaining = 0
		}
		snap.RemainingSeconds = int(remaining / time.Second)
	}
	if s.state == StateSubmitted {
		r := s.result
		snap.Result = &r
	}
	if s.submitErr != nil {
		snap.Error = s.submitErr.Error()
	}
	return snap
}
