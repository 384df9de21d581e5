package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrSessionLimit is returned when the maximum number of concurrent sessions is reached.
	ErrSessionLimit = errors.New("maximum concurrent browser sessions reached")

	// ErrManagerClosed is returned by Acquire after CloseAll.
	ErrManagerClosed = errors.New("session manager is closed")
)

// LaunchFunc starts a fresh Driver for a new session.
type LaunchFunc func(ctx context.Context) (Driver, error)

// Session is one browser tab owned by exactly one scenario at a time.
type Session struct {
	ID           string
	Label        string
	Driver       Driver
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// SessionManager hands out independent browser sessions so that scenarios
// can run in parallel without sharing a driver.
type SessionManager struct {
	launch      LaunchFunc
	logger      zerolog.Logger
	maxSessions int
	maxIdle     time.Duration

	sessions map[string]*Session
	pending  int
	closed   bool
	mu       sync.Mutex
}

// NewSessionManager creates a SessionManager. maxSessions <= 0 means 1.
func NewSessionManager(launch LaunchFunc, maxSessions int, maxIdle time.Duration, logger zerolog.Logger) *SessionManager {
	if maxSessions <= 0 {
		maxSessions = 1
	}
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	return &SessionManager{
		launch:      launch,
		logger:      logger,
		maxSessions: maxSessions,
		maxIdle:     maxIdle,
		sessions:    make(map[string]*Session),
	}
}

// Acquire launches a new browser and registers it under a fresh session id.
func (sm *SessionManager) Acquire(ctx context.Context, label string) (*Session, error) {
	sm.mu.Lock()
	if sm.closed {
		sm.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if len(sm.sessions)+sm.pending >= sm.maxSessions {
		sm.mu.Unlock()
		return nil, fmt.Errorf("%w (%d)", ErrSessionLimit, sm.maxSessions)
	}
	sm.pending++
	sm.mu.Unlock()

	// Launch outside the lock; starting a browser is slow I/O.
	driver, err := sm.launch(ctx)

	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.pending--

	if err != nil {
		return nil, fmt.Errorf("failed to launch browser for %s: %w", label, err)
	}
	if sm.closed {
		_ = driver.Close()
		return nil, ErrManagerClosed
	}

	now := time.Now()
	s := &Session{
		ID:           uuid.NewString(),
		Label:        label,
		Driver:       driver,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	sm.sessions[s.ID] = s
	sm.logger.Debug().Str("session_id", s.ID).Str("label", label).Msg("session acquired")
	return s, nil
}

// Get returns the session with the given id, if it exists.
func (sm *SessionManager) Get(id string) (*Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s, ok := sm.sessions[id]
	return s, ok
}

// Touch resets the idle timer for the given session.
func (sm *SessionManager) Touch(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[id]; ok {
		s.LastActiveAt = time.Now()
	}
}

// Release closes the session's browser and forgets it.
func (sm *SessionManager) Release(id string) error {
	sm.mu.Lock()
	s, ok := sm.sessions[id]
	if !ok {
		sm.mu.Unlock()
		return fmt.Errorf("session %s not found", id)
	}
	delete(sm.sessions, id)
	sm.mu.Unlock()

	if err := s.Driver.Close(); err != nil {
		sm.logger.Warn().Err(err).Str("session_id", id).Msg("failed to close browser")
		return err
	}
	sm.logger.Debug().Str("session_id", id).Msg("session released")
	return nil
}

// ActiveCount returns the number of live sessions.
func (sm *SessionManager) ActiveCount() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// StartCleanupLoop periodically closes sessions idle for longer than maxIdle.
// It closes every session and returns when ctx is cancelled.
func (sm *SessionManager) StartCleanupLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sm.CloseAll()
			return
		case <-ticker.C:
			sm.cleanupIdle(time.Now())
		}
	}
}

func (sm *SessionManager) cleanupIdle(now time.Time) {
	sm.mu.Lock()
	var expired []*Session
	for id, s := range sm.sessions {
		if now.Sub(s.LastActiveAt) > sm.maxIdle {
			expired = append(expired, s)
			delete(sm.sessions, id)
		}
	}
	sm.mu.Unlock()

	for _, s := range expired {
		sm.logger.Info().Str("session_id", s.ID).Str("label", s.Label).Msg("closing idle session")
		if err := s.Driver.Close(); err != nil {
			sm.logger.Warn().Err(err).Str("session_id", s.ID).Msg("failed to close browser")
		}
	}
}

// CloseAll closes every session and rejects further Acquire calls.
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	sm.closed = true
	all := make([]*Session, 0, len(sm.sessions))
	for id, s := range sm.sessions {
		all = append(all, s)
		delete(sm.sessions, id)
	}
	sm.mu.Unlock()

	for _, s := range all {
		sm.logger.Info().Str("session_id", s.ID).Msg("shutting down session")
		if err := s.Driver.Close(); err != nil {
			sm.logger.Warn().Err(err).Str("session_id", s.ID).Msg("failed to close browser")
		}
	}
}
