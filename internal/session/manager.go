// Package session keeps one fetch controller per open client view.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"popcorn-grinder-service/internal/discovery"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned for unknown or expired session ids
var ErrNotFound = errors.New("session not found")

// Manager creates, finds and expires sessions
type Manager struct {
	fetcher  discovery.PageFetcher
	recorder discovery.Recorder
	debounce time.Duration
	idleTTL  time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager. Sessions idle for longer than idleTTL are
// dropped by Run.
func NewManager(fetcher discovery.PageFetcher, recorder discovery.Recorder, debounce, idleTTL time.Duration) *Manager {
	return &Manager{
		fetcher:  fetcher,
		recorder: recorder,
		debounce: debounce,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session and issues its first page request
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.fetcher, m.recorder, m.debounce)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.start()
	log.Debug().Str("session", s.ID).Msg("Session created")
	return s
}

// Get finds a session and marks it as active
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch()
	return s, nil
}

// Delete closes a session
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expire closes sessions idle since before now-idleTTL
func (m *Manager) Expire(now time.Time) int {
	cutoff := now.Add(-m.idleTTL)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// Run expires idle sessions periodically until ctx ends, then closes all
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case now := <-ticker.C:
			if n := m.Expire(now); n > 0 {
				log.Info().Int("expired", n).Int("open", m.Count()).Msg("🧹 Idle sessions expired")
			}
		}
	}
}

// CloseAll closes every session
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
