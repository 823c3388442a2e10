package session

import (
	"log/slog"
	"time"

	"github.com/evidenceledger/docgen/internal/cache"
	"github.com/google/uuid"
)

const sessionPrefix = "session:"

// Manager creates sessions and finds them again. Sessions live in the shared
// cache and expire after a period of inactivity.
type Manager struct {
	cache    *cache.Cache
	ttl      time.Duration
	debounce time.Duration
}

// NewManager returns a manager keeping sessions for ttl after their last use.
func NewManager(c *cache.Cache, ttl time.Duration) *Manager {
	return &Manager{cache: c, ttl: ttl, debounce: DefaultDebounce}
}

// SetDebounce changes the quiet period of the lookups of new sessions.
func (m *Manager) SetDebounce(d time.Duration) {
	m.debounce = d
}

// Create starts a new session with a fresh document id.
func (m *Manager) Create() *Store {
	s := New(uuid.NewString(), uuid.NewString())
	s.debounceDelay = m.debounce
	m.cache.Set(sessionPrefix+s.ID, s, m.ttl)
	slog.Debug("Session created", "session", s.ID, "document", s.DocumentID)
	return s
}

// Get returns a live session and extends its expiration.
func (m *Manager) Get(id string) (*Store, bool) {
	v, found := m.cache.Get(sessionPrefix + id)
	if !found {
		return nil, false
	}
	m.cache.Touch(sessionPrefix+id, m.ttl)
	return v.(*Store), true
}

// Drop ends a session.
func (m *Manager) Drop(id string) {
	if s, ok := m.Get(id); ok {
		s.Close()
	}
	m.cache.Delete(sessionPrefix + id)
}
