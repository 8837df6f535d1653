package handlers

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/constants"
	"github.com/facegate/facegate/internal/recognizer"
)

// ErrSessionActive is returned when a new session is started while another
// one holds the camera.
var ErrSessionActive = errors.New("another session is already running")

// SessionKind distinguishes enrollment from verification sessions.
type SessionKind string

// Session kinds.
const (
	SessionEnroll SessionKind = "enroll"
	SessionVerify SessionKind = "verify"
)

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

// SessionStatus constants define the lifecycle states of a session.
const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session represents one enrollment or verification run.
type Session struct {
	EventBroadcaster

	ID          string        `json:"id"`
	Kind        SessionKind   `json:"kind"`
	Name        string        `json:"name,omitempty"`
	Status      SessionStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// GetStatus returns the current session status (implements SSEJob).
func (s *Session) GetStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Cancel cancels the session.
func (s *Session) Cancel() {
	s.EventBroadcaster.Cancel()
	s.mu.Lock()
	if s.Status == SessionPending || s.Status == SessionRunning {
		s.Status = SessionCancelled
		now := time.Now()
		s.CompletedAt = &now
	}
	s.mu.Unlock()
}

func (s *Session) setStatus(status SessionStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status == SessionCancelled {
		return
	}
	s.Status = status
	s.Error = errMsg
	if status == SessionCompleted || status == SessionFailed {
		now := time.Now()
		s.CompletedAt = &now
	}
}

// snapshot returns a copy safe to serialize while the run mutates status.
func (s *Session) snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{
		ID:          s.ID,
		Kind:        s.Kind,
		Name:        s.Name,
		Status:      s.Status,
		Error:       s.Error,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
	}
}

// JobEvent represents an event from a session.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for
// sessions. Embed this in session structs to get AddListener,
// RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the session via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	if b.cancel != nil {
		b.cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Session cancelled by user"})
}

// SessionManager runs enrollment and verification sessions against the
// recognizer. The camera is exclusive, so at most one session runs at a
// time; finished sessions stay queryable until replaced.
type SessionManager struct {
	recognizer *recognizer.Recognizer

	mu       sync.RWMutex
	sessions map[string]*Session
	active   string
}

// NewSessionManager creates a session manager.
func NewSessionManager(r *recognizer.Recognizer) *SessionManager {
	return &SessionManager{
		recognizer: r,
		sessions:   make(map[string]*Session),
	}
}

// Recognizer returns the managed recognizer.
func (m *SessionManager) Recognizer() *recognizer.Recognizer { return m.recognizer }

// GetSession retrieves a session by ID.
func (m *SessionManager) GetSession(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// StartEnroll starts an asynchronous enrollment session for the named
// person. Returns ErrSessionActive while another session runs.
func (m *SessionManager) StartEnroll(name string) (*Session, error) {
	return m.start(SessionEnroll, name, func(ctx context.Context, session *Session) error {
		obs := recognizer.EnrollObserverFunc(func(p recognizer.EnrollProgress) {
			session.SendEvent(JobEvent{Type: "progress", Data: p})
		})
		return m.recognizer.Enroll(ctx, name, obs)
	})
}

// StartVerify starts an asynchronous verification session.
func (m *SessionManager) StartVerify() (*Session, error) {
	return m.start(SessionVerify, "", func(ctx context.Context, session *Session) error {
		obs := recognizer.VerifyObserverFunc(func(res recognizer.VerifyResult) {
			session.SendEvent(JobEvent{Type: "result", Data: res})
		})
		return m.recognizer.Verify(ctx, obs)
	})
}

func (m *SessionManager) start(kind SessionKind, name string, run func(context.Context, *Session) error) (*Session, error) {
	m.mu.Lock()
	if m.active != "" {
		if active := m.sessions[m.active]; active != nil && !isSessionTerminal(active.GetStatus()) {
			m.mu.Unlock()
			return nil, ErrSessionActive
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		Name:      name,
		Status:    SessionPending,
		StartedAt: time.Now(),
	}
	session.EventBroadcaster.cancel = cancel
	m.sessions[session.ID] = session
	m.active = session.ID
	m.mu.Unlock()

	go func() {
		defer cancel()
		session.setStatus(SessionRunning, "")
		session.SendEvent(JobEvent{Type: "started", Data: session.snapshot()})

		err := run(ctx, session)

		m.mu.Lock()
		if m.active == session.ID {
			m.active = ""
		}
		m.mu.Unlock()

		switch {
		case err == nil:
			session.setStatus(SessionCompleted, "")
			session.SendEvent(JobEvent{Type: "completed", Data: session.snapshot()})
		case errors.Is(err, context.Canceled):
			session.setStatus(SessionCancelled, "")
		default:
			log.Printf("Session %s failed: %v", session.ID, err)
			session.setStatus(SessionFailed, err.Error())
			session.SendEvent(JobEvent{Type: "failed", Message: err.Error(), Data: session.snapshot()})
		}
	}()

	return session, nil
}

func isSessionTerminal(status SessionStatus) bool {
	return status == SessionCompleted || status == SessionFailed || status == SessionCancelled
}
