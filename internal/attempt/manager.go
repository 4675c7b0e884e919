package attempt

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studiva/studiva/internal/quiz"
)

// AttemptStore is the slice of the quiz store the manager needs.
type AttemptStore interface {
	Submitter
	LatestAttemptNumber(ctx context.Context, quizID, userID string) (int, error)
}

// Manager is the in-memory registry of live attempt sessions. Sessions are
// removed on any terminal transition; a lookup after that returns
// ErrSessionNotFound and clients fall back to the persisted result.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	quizzes quiz.Loader
	store   AttemptStore
	events  Recorder
	now     func() time.Time
}

func NewManager(quizzes quiz.Loader, store AttemptStore, events Recorder) *Manager {
	return &Manager{
		sessions: map[string]*Session{},
		quizzes:  quizzes,
		store:    store,
		events:   events,
		now:      time.Now,
	}
}

// Start loads the quiz, enforces availability and the attempt limit, and
// registers a live session. A zero-duration or empty quiz auto-submits
// before Start returns; the caller sees the terminal snapshot.
//
// The limit check here is advisory (it gives a clean error before the clock
// starts); the store re-checks inside the submission transaction, which is
// what actually closes the concurrent-start race.
func (m *Manager) Start(ctx context.Context, quizID, userID string) (*Session, error) {
	q, err := m.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := q.CheckAvailable(userID, m.now().Unix()); err != nil {
		return nil, err
	}
	n, err := m.store.LatestAttemptNumber(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}
	if q.MaxAttempts > 0 && n >= q.MaxAttempts {
		return nil, quiz.ErrAttemptLimitReached
	}

	s := newSession(uuid.NewString(), q, userID, m.store, m.events, m.now)
	s.onTerminal = m.remove
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.start(s.duration)
	return s, nil
}

// Get returns the caller's live session. Sessions are private to the student
// who started them; anyone else gets not-found.
func (m *Manager) Get(sessionID, userID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()
}
