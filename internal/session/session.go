// Package session owns the per-viewer playback sessions: one engine, presence
// guard, deep-link adapter and event bus per page load.
package session

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/stwalsh4118/evercast/internal/deeplink"
	"github.com/stwalsh4118/evercast/internal/events"
	"github.com/stwalsh4118/evercast/internal/playback"
	"github.com/stwalsh4118/evercast/internal/presence"
)

// Session is one independent playback engine and its collaborators.
// It is kept in memory only.
type Session struct {
	ID        string
	CreatedAt time.Time

	Engine    *playback.Engine
	Guard     *presence.Guard
	DeepLinks *deeplink.Adapter
	Events    *events.Bus

	limiter     *rate.Limiter
	unsubscribe func()

	mu         sync.RWMutex
	lastAccess time.Time
	closed     bool
}

// Info is the JSON view of a session
type Info struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	LastAccess time.Time         `json:"last_access"`
	PoolSize   int               `json:"pool_size"`
	State      playback.Snapshot `json:"state"`
}

// Touch records client activity
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = now
}

// LastAccess returns when a client last used the session
func (s *Session) LastAccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}

// IdleFor returns how long the session has gone without client activity
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastAccess())
}

// AllowTrigger reports whether a rate-limited trigger may run now
func (s *Session) AllowTrigger() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// Info returns a JSON-friendly view of the session
func (s *Session) Info() Info {
	return Info{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		LastAccess: s.LastAccess(),
		PoolSize:   s.Engine.PoolSize(),
		State:      s.Engine.Snapshot(),
	}
}

// close tears the session down. It is safe to call more than once.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.DeepLinks.Close()
	s.Engine.Close()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.Guard.Close()
	s.Events.Close()
}
