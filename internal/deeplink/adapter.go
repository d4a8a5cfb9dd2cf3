// Package deeplink starts a specific item when a session is opened from a shared link.
package deeplink

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/evercast/internal/clock"
	"github.com/stwalsh4118/evercast/internal/logger"
	"github.com/stwalsh4118/evercast/internal/models"
)

const (
	// DefaultDelay lets the renderer finish mounting before the override lands
	DefaultDelay = 250 * time.Millisecond
	// MaxDelay bounds the configured delay
	MaxDelay = 2 * time.Second
)

// Target is the part of the playback engine a deep link drives
type Target interface {
	Lookup(id string) (models.ContentItem, bool)
	StartImmediate(item models.ContentItem) error
}

// Adapter applies each deep-link identifier at most once per session
type Adapter struct {
	mu      sync.Mutex
	target  Target
	clock   clock.Clock
	delay   time.Duration
	log     zerolog.Logger
	handled map[string]struct{}
	pending map[string]clock.Timer
	closed  bool
}

// NewAdapter creates an adapter for target. The delay is clamped to [0, MaxDelay].
// A nil clock uses wall time.
func NewAdapter(target Target, c clock.Clock, delay time.Duration) *Adapter {
	if c == nil {
		c = clock.Real()
	}
	if delay < 0 {
		delay = 0
	}
	if delay > MaxDelay {
		delay = MaxDelay
	}
	return &Adapter{
		target:  target,
		clock:   c,
		delay:   delay,
		log:     logger.Component("deeplink"),
		handled: make(map[string]struct{}),
		pending: make(map[string]clock.Timer),
	}
}

// Delay returns the effective defer applied before starting an item
func (a *Adapter) Delay() time.Duration {
	return a.delay
}

// Trigger resolves id and schedules it to start after the adapter delay.
// Unknown identifiers are not remembered, so a later pool refresh can satisfy them.
func (a *Adapter) Trigger(id string) (models.ContentItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptyID
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrClosed
	}
	if _, done := a.handled[id]; done {
		return nil, ErrAlreadyHandled
	}

	item, ok := a.target.Lookup(id)
	if !ok {
		a.log.Warn().Str("item_id", id).Msg("Deep link names an unknown item")
		return nil, ErrUnknownItem
	}
	a.handled[id] = struct{}{}

	a.pending[id] = a.clock.AfterFunc(a.delay, func() { a.fire(id, item) })

	a.log.Info().
		Str("item_id", id).
		Dur("delay", a.delay).
		Msg("Deep link accepted")
	return item, nil
}

// Handled reports whether id has already been accepted
func (a *Adapter) Handled(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.handled[strings.TrimSpace(id)]
	return ok
}

// Close cancels every deferred start
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	for id, t := range a.pending {
		t.Stop()
		delete(a.pending, id)
	}
}

func (a *Adapter) fire(id string, item models.ContentItem) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if _, ok := a.pending[id]; !ok {
		a.mu.Unlock()
		return
	}
	delete(a.pending, id)
	a.mu.Unlock()

	if err := a.target.StartImmediate(item); err != nil {
		a.log.Error().Err(err).Str("item_id", id).Msg("Failed to start deep-linked item")
	}
}
