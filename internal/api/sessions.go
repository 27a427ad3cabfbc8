package api

import (
	"math/rand"
	"sync"
	"time"

	"github.com/formwalk/formwalk/internal/engine"
	"github.com/formwalk/formwalk/internal/schema"
)

// managedSession serializes access to one engine session. Engine
// transitions are non-reentrant; the mutex enforces the single-writer
// discipline across HTTP handlers and the auto-advance timer.
type managedSession struct {
	mu    sync.Mutex
	s     *engine.Session
	timer *time.Timer
}

// SessionManager owns the live sessions of this process. Sessions are
// independent of each other; the only shared state is the read-only
// config.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*managedSession
	seed     func() int64
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: map[string]*managedSession{},
		seed:     rand.Int63,
	}
}

// Create builds a session with a fresh shuffle seed and optionally
// restores a prior answer record (resume).
func (m *SessionManager) Create(cfg *schema.Config, respondent string, prior schema.AnswerRecord) *engine.Session {
	s := engine.NewSession(cfg, m.seed(), respondent)
	if len(prior) > 0 {
		s.Restore(prior)
	}
	s.Start()
	m.mu.Lock()
	m.sessions[s.ID()] = &managedSession{s: s}
	m.mu.Unlock()
	return s
}

func (m *SessionManager) get(id string) (*managedSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[id]
	return ms, ok
}

// Do runs fn with exclusive access to the session, for mutating
// transitions. Any manual transition cancels a pending auto-advance; the
// engine's version counter catches a timer that already slipped past the
// Stop.
func (m *SessionManager) Do(id string, fn func(*engine.Session) error) error {
	ms, ok := m.get(id)
	if !ok {
		return errSessionNotFound
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.cancelAutoAdvance()
	return fn(ms.s)
}

// View runs fn with exclusive access without touching a pending
// auto-advance. Read paths (building a response view, polling session
// state) must go through here, only a real transition may cancel the
// deferred Next.
func (m *SessionManager) View(id string, fn func(*engine.Session) error) error {
	ms, ok := m.get(id)
	if !ok {
		return errSessionNotFound
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return fn(ms.s)
}

// RecordAnswer records a value and schedules the deferred auto-advance
// when the engine asks for one. Whichever of the timer and the next
// manual transition comes first wins; the loser no-ops.
func (m *SessionManager) RecordAnswer(id string, questionID int, ans engine.Answer) (bool, error) {
	ms, ok := m.get(id)
	if !ok {
		return false, errSessionNotFound
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.cancelAutoAdvance()
	hint, err := ms.s.RecordAnswer(questionID, ans)
	if err != nil {
		return false, err
	}
	if hint == nil {
		return false, nil
	}
	version := hint.Version
	ms.timer = time.AfterFunc(hint.Delay, func() {
		ms.mu.Lock()
		defer ms.mu.Unlock()
		ms.s.FireAutoAdvance(version)
	})
	return true, nil
}

func (ms *managedSession) cancelAutoAdvance() {
	if ms.timer != nil {
		ms.timer.Stop()
		ms.timer = nil
	}
}
