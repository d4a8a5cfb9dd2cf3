// Package presence keeps the display awake while the channel is meant to be playing.
package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/evercast/internal/logger"
)

const defaultAcquireTimeout = 2 * time.Second

// Guard holds a wake lock while play intent is set and the surface is visible.
// Acquisition failures are logged and swallowed; playback never depends on the lock.
type Guard struct {
	mu             sync.Mutex
	inhibitor      Inhibitor
	breaker        *Breaker
	reason         string
	acquireTimeout time.Duration
	log            zerolog.Logger

	lock       Lock
	playIntent bool
	visible    bool
	closed     bool
}

// NewGuard creates a guard for a visible surface with no play intent yet.
// A nil breaker never trips.
func NewGuard(inhibitor Inhibitor, breaker *Breaker, reason string) *Guard {
	if inhibitor == nil {
		inhibitor = NoopInhibitor{}
	}
	return &Guard{
		inhibitor:      inhibitor,
		breaker:        breaker,
		reason:         reason,
		acquireTimeout: defaultAcquireTimeout,
		log:            logger.Component("presence"),
		visible:        true,
	}
}

// SetPlayIntent acquires the lock when playback is wanted and releases it otherwise
func (g *Guard) SetPlayIntent(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.playIntent = on
	g.reconcileLocked()
}

// SetVisible tracks the surface visibility. Hiding drops the handle, since the
// platform invalidates it; showing again re-acquires while play intent holds.
func (g *Guard) SetVisible(visible bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.visible = visible
	g.reconcileLocked()
}

// Held reports whether a lock is currently held
func (g *Guard) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lock != nil
}

// Close releases any held lock. The guard ignores later updates.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.releaseLocked()
}

func (g *Guard) reconcileLocked() {
	want := g.playIntent && g.visible && !g.closed
	switch {
	case want && g.lock == nil:
		g.acquireLocked()
	case !want && g.lock != nil:
		g.releaseLocked()
	}
}

func (g *Guard) acquireLocked() {
	attempt := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), g.acquireTimeout)
		defer cancel()

		lock, err := g.inhibitor.Acquire(ctx, g.reason)
		if err != nil {
			return err
		}
		g.lock = lock
		return nil
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Call(attempt)
	} else {
		err = attempt()
	}

	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			g.log.Debug().Msg("Wake lock provider is failing, skipping acquisition")
			return
		}
		g.log.Warn().Err(err).Msg("Failed to acquire wake lock")
		return
	}
	g.log.Debug().Str("reason", g.reason).Msg("Wake lock acquired")
}

func (g *Guard) releaseLocked() {
	if g.lock == nil {
		return
	}
	if err := g.lock.Release(); err != nil {
		g.log.Warn().Err(err).Msg("Failed to release wake lock")
	}
	g.lock = nil
	g.log.Debug().Msg("Wake lock released")
}
