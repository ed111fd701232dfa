package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"popcorn/internal/metrics"
	"popcorn/services/search"
)

// Manager owns the live sessions, keyed by a random UUID.
type Manager struct {
	searcher search.Searcher
	details  DetailFetcher
	watched  WatchedList
	cfg      Config
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(searcher search.Searcher, details DetailFetcher, list WatchedList, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		searcher: searcher,
		details:  details,
		watched:  list,
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "sessions"),
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Create() *Session {
	id := uuid.NewString()
	s := New(id, m.searcher, m.details, m.watched, m.cfg)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	metrics.ActiveSessions.Inc()
	m.logger.Debug("session created", "session", id)
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete tears the session down and forgets it.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.Teardown()
	metrics.ActiveSessions.Dec()
	m.logger.Debug("session deleted", "session", id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// PruneIdle deletes sessions with no activity for longer than maxIdle and
// returns how many were removed.
func (m *Manager) PruneIdle(maxIdle time.Duration) int {
	cutoff := m.cfg.Clock().Add(-maxIdle)

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if m.Delete(id) == nil {
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("pruned idle sessions", "count", removed)
	}
	return removed
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Teardown()
		metrics.ActiveSessions.Dec()
	}
}
