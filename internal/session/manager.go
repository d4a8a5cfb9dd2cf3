package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/stwalsh4118/evercast/internal/bumper"
	"github.com/stwalsh4118/evercast/internal/clock"
	"github.com/stwalsh4118/evercast/internal/deeplink"
	"github.com/stwalsh4118/evercast/internal/events"
	"github.com/stwalsh4118/evercast/internal/logger"
	"github.com/stwalsh4118/evercast/internal/models"
	"github.com/stwalsh4118/evercast/internal/playback"
	"github.com/stwalsh4118/evercast/internal/pool"
	"github.com/stwalsh4118/evercast/internal/presence"
)

const defaultInhibitReason = "Evercast is playing"

// Config holds everything needed to build a session
type Config struct {
	Playback      playback.Config
	Bumpers       []string
	SlideBumper   string
	Policy        pool.Policy
	DeepLinkDelay time.Duration

	// IdleTimeout closes sessions without client activity. Zero disables cleanup.
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	// MaxSessions caps concurrent sessions. Zero means unlimited.
	MaxSessions int

	// TriggerRate limits play, deeplink, content-ended and error reports per session. Zero disables it.
	TriggerRate  rate.Limit
	TriggerBurst int

	BreakerThreshold int
	BreakerReset     time.Duration
	InhibitReason    string
}

// ContentLoader supplies the catalogue a new session plays from
type ContentLoader interface {
	Load(ctx context.Context) ([]models.ContentItem, error)
}

// Option customises a Manager
type Option func(*Manager)

// WithClock replaces the clock used by engines, deep links and idle tracking
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithRandSource makes every new engine draw from the source returned by fn
func WithRandSource(fn func() playback.Rand) Option {
	return func(m *Manager) { m.newRand = fn }
}

// Manager creates, tracks and expires sessions
type Manager struct {
	cfg       Config
	loader    ContentLoader
	inhibitor presence.Inhibitor
	clock     clock.Clock
	newRand   func() playback.Rand

	sessions map[string]*Session
	mu       sync.RWMutex
	stopped  bool

	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	cleanupDone   chan struct{}
}

// NewManager creates a session manager
func NewManager(cfg Config, loader ContentLoader, inhibitor presence.Inhibitor, opts ...Option) *Manager {
	if cfg.InhibitReason == "" {
		cfg.InhibitReason = defaultInhibitReason
	}
	if cfg.TriggerBurst <= 0 {
		cfg.TriggerBurst = 1
	}
	if inhibitor == nil {
		inhibitor = presence.NoopInhibitor{}
	}

	m := &Manager{
		cfg:         cfg,
		loader:      loader,
		inhibitor:   inhibitor,
		clock:       clock.Real(),
		sessions:    make(map[string]*Session),
		stopChan:    make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the idle cleanup loop
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}
	if m.cleanupTicker != nil || m.cfg.IdleTimeout <= 0 || m.cfg.CleanupInterval <= 0 {
		return nil
	}

	m.cleanupTicker = time.NewTicker(m.cfg.CleanupInterval)
	go m.runCleanupLoop()

	logger.Log.Info().
		Dur("cleanup_interval", m.cfg.CleanupInterval).
		Dur("idle_timeout", m.cfg.IdleTimeout).
		Msg("Session manager started")
	return nil
}

// Stop ends the cleanup loop and closes every session
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	ticker := m.cleanupTicker
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	close(m.stopChan)
	if ticker != nil {
		<-m.cleanupDone
		ticker.Stop()
	}

	for _, s := range sessions {
		s.close()
	}

	logger.Log.Info().
		Int("closed_sessions", len(sessions)).
		Msg("Session manager stopped")
}

// Create builds a session over the current catalogue and starts it. A
// resolvable deep link (an item id or a shared URL) replaces the initial
// random pick; otherwise the engine boots straight away.
func (m *Manager) Create(ctx context.Context, deepLink string) (*Session, error) {
	m.mu.RLock()
	stopped, count := m.stopped, len(m.sessions)
	m.mu.RUnlock()

	if stopped {
		return nil, ErrManagerStopped
	}
	if m.cfg.MaxSessions > 0 && count >= m.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()

	items, err := m.loader.Load(ctx)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("session_id", id).
			Msg("Failed to load catalogue, session starts with an empty pool")
		items = nil
	}

	s := m.build(id, items)
	m.begin(s, deepLink)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		s.close()
		return nil, ErrManagerStopped
	}
	m.sessions[id] = s
	m.mu.Unlock()

	logger.Log.Info().
		Str("session_id", id).
		Int("pool_size", len(items)).
		Bool("deep_link", deepLink != "").
		Msg("Session created")
	return s, nil
}

// Get returns the session with id and records client activity on it
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	s.Touch(m.clock.Now())
	return s, nil
}

// Delete closes and forgets the session with id
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.close()

	logger.Log.Info().Str("session_id", id).Msg("Session closed")
	return nil
}

// List returns every live session
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RefreshPool hands a reloaded catalogue to every live session. Sessions that
// have not started yet make their first pick from it; the rest keep playing.
func (m *Manager) RefreshPool(items []models.ContentItem) {
	p := pool.New(items, m.cfg.Policy)

	started := 0
	sessions := m.List()
	for _, s := range sessions {
		if s.Engine.ReplacePool(p) {
			started++
		}
	}

	logger.Log.Info().
		Int("sessions", len(sessions)).
		Int("pool_size", p.Len()).
		Int("started", started).
		Msg("Content pool refreshed")
}

func (m *Manager) build(id string, items []models.ContentItem) *Session {
	opts := []playback.Option{
		playback.WithClock(m.clock),
		playback.WithLogger(logger.Component("playback").With().Str("session_id", id).Logger()),
	}
	if m.newRand != nil {
		opts = append(opts, playback.WithRand(m.newRand()))
	}

	engine := playback.NewEngine(
		pool.New(items, m.cfg.Policy),
		bumper.NewRotation(m.cfg.Bumpers, m.cfg.SlideBumper),
		m.cfg.Playback,
		opts...,
	)

	var breaker *presence.Breaker
	if m.cfg.BreakerThreshold > 0 {
		breaker = presence.NewBreaker(m.cfg.BreakerThreshold, m.cfg.BreakerReset, m.clock)
	}

	now := m.clock.Now()
	s := &Session{
		ID:         id,
		CreatedAt:  now,
		Engine:     engine,
		Guard:      presence.NewGuard(m.inhibitor, breaker, m.cfg.InhibitReason),
		DeepLinks:  deeplink.NewAdapter(engine, m.clock, m.cfg.DeepLinkDelay),
		Events:     events.NewBus(),
		lastAccess: now,
	}
	if m.cfg.TriggerRate > 0 {
		s.limiter = rate.NewLimiter(m.cfg.TriggerRate, m.cfg.TriggerBurst)
	}

	guard, bus := s.Guard, s.Events
	s.unsubscribe = engine.Subscribe(func(snap playback.Snapshot) {
		guard.SetPlayIntent(snap.PlayIntent)
		bus.Publish(snap)
	})
	return s
}

func (m *Manager) begin(s *Session, deepLink string) {
	if deepLink != "" {
		id := deepLink
		if fromURL, ok := deeplink.FromURL(deepLink); ok {
			id = fromURL
		}
		_, err := s.DeepLinks.Trigger(id)
		if err == nil {
			return
		}
		logger.Log.Warn().
			Err(err).
			Str("session_id", s.ID).
			Str("deep_link", deepLink).
			Msg("Ignoring deep link, falling back to a random pick")
	}

	if _, err := s.Engine.Boot(); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("session_id", s.ID).
			Msg("Session has nothing to play yet")
	}
}

func (m *Manager) runCleanupLoop() {
	defer close(m.cleanupDone)

	for {
		select {
		case <-m.stopChan:
			return
		case <-m.cleanupTicker.C:
			m.performCleanup(m.clock.Now())
		}
	}
}

// performCleanup closes sessions idle for longer than the configured timeout
func (m *Manager) performCleanup(now time.Time) int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}

	closed := 0
	for _, s := range m.List() {
		idle := s.IdleFor(now)
		if idle <= m.cfg.IdleTimeout {
			continue
		}
		if err := m.Delete(s.ID); err != nil {
			continue
		}
		closed++
		logger.Log.Info().
			Str("session_id", s.ID).
			Dur("idle_duration", idle).
			Msg("Closed idle session")
	}
	return closed
}
