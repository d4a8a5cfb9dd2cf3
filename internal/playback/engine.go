// Package playback implements the transition state machine that sequences
// content and bumpers for an always-on channel.
//
// The engine hides loading and seeking latency behind an overlay: every switch
// raises a bumper first, binds the new item underneath it and only reveals the
// content once the bumper finishes or a fallback timer expires. All state lives
// behind a single mutex and every operation runs to completion under it, so the
// engine behaves like a single-threaded event loop even though timers fire on
// their own goroutines.
package playback

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/evercast/internal/bumper"
	"github.com/stwalsh4118/evercast/internal/clock"
	"github.com/stwalsh4118/evercast/internal/logger"
	"github.com/stwalsh4118/evercast/internal/models"
	"github.com/stwalsh4118/evercast/internal/pool"
)

const (
	// DefaultFallbackTimeout is how long the overlay may stay up without an explicit dismissal
	DefaultFallbackTimeout = 10 * time.Second
	// DefaultAdvanceFloor is the minimum time the cover is shown before a scheduled swap
	DefaultAdvanceFloor = 1500 * time.Millisecond
)

// Config holds the engine timing parameters
type Config struct {
	FallbackTimeout      time.Duration
	AdvanceFloor         time.Duration
	DefaultSlideDuration time.Duration
	// AutoSlideAdvance arms the timed cover for slides as soon as their overlay is dismissed
	AutoSlideAdvance bool
}

// DefaultConfig returns the stock timings
func DefaultConfig() Config {
	return Config{
		FallbackTimeout:      DefaultFallbackTimeout,
		AdvanceFloor:         DefaultAdvanceFloor,
		DefaultSlideDuration: models.DefaultSlideDuration,
		AutoSlideAdvance:     true,
	}
}

// Rand is the random source shared by selection and bumper rotation
type Rand interface {
	pool.Rand
	bumper.Shuffler
}

// Option customises an Engine
type Option func(*Engine)

// WithClock replaces the timer source
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRand replaces the random source, e.g. with a fixed seed
func WithRand(r Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithLogger replaces the engine logger
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// advanceMode says what the advance timer does when it fires
type advanceMode int

const (
	advanceNone advanceMode = iota
	// advanceCover raises the cover ahead of a timed slide ending
	advanceCover
	// advanceSwap binds next under an already raised cover
	advanceSwap
)

type timerSlot struct {
	timer clock.Timer
	gen   uint64
}

type listener struct {
	id uint64
	fn func(Snapshot)
}

// Engine owns the playback state and every timer that mutates it
type Engine struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	cfg      Config
	clock    clock.Clock
	rng      Rand
	log      zerolog.Logger
	pool     *pool.Pool
	rotation *bumper.Rotation

	st       state
	booted   bool
	closed   bool
	revision uint64

	timerGen        uint64
	fallback        timerSlot
	advance         timerSlot
	advanceMode     advanceMode
	dismissDeferred bool

	listenerSeq uint64
	listeners   []listener
}

// NewEngine creates an engine over p. Zero config fields take their defaults.
func NewEngine(p *pool.Pool, rotation *bumper.Rotation, cfg Config, opts ...Option) *Engine {
	defaults := DefaultConfig()
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = defaults.FallbackTimeout
	}
	if cfg.AdvanceFloor <= 0 {
		cfg.AdvanceFloor = defaults.AdvanceFloor
	}
	if cfg.DefaultSlideDuration <= 0 {
		cfg.DefaultSlideDuration = defaults.DefaultSlideDuration
	}
	if p == nil {
		p = pool.Empty(pool.Policy{})
	}
	if rotation == nil {
		rotation = bumper.NewRotation(nil, "")
	}

	e := &Engine{
		cfg:      cfg,
		clock:    clock.Real(),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:      logger.Component("playback"),
		pool:     p,
		rotation: rotation,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Subscribe registers fn to receive a snapshot after every state change.
// Listeners run outside the engine lock, in mutation order, and must not call
// back into the engine synchronously. The returned func removes the listener.
func (e *Engine) Subscribe(fn func(Snapshot)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listenerSeq++
	id := e.listenerSeq
	e.listeners = append(e.listeners, listener{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// Snapshot returns a copy of the current playback state
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Lookup resolves an item identifier against the current pool
func (e *Engine) Lookup(id string) (models.ContentItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Lookup(id)
}

// PoolSize returns the number of items in the current pool
func (e *Engine) PoolSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Len()
}

// Boot makes the first random selection. It runs at most once per engine:
// after any item has started, by boot or by override, it reports false.
func (e *Engine) Boot() (bool, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false, ErrEngineClosed
	}
	if e.booted {
		e.mu.Unlock()
		return false, nil
	}

	started := e.bootLocked()
	e.unlockAndPublish(started)

	if !started {
		return false, ErrNoContent
	}
	return true, nil
}

// ReplacePool swaps in a refreshed pool. Playback is left alone, except that an
// engine that has not started yet makes its first selection from the new pool.
func (e *Engine) ReplacePool(p *pool.Pool) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	if p == nil {
		p = pool.Empty(e.pool.Policy())
	}
	e.pool = p

	started := false
	if !e.booted {
		started = e.bootLocked()
	}

	e.log.Debug().
		Int("pool_size", p.Len()).
		Bool("initial_selection", started).
		Msg("Content pool replaced")

	e.unlockAndPublish(started)
	return started
}

// StartImmediate binds item as current behind a fresh bumper and cancels any
// pending automatic transition. Manual taps and deep links arrive here.
func (e *Engine) StartImmediate(item models.ContentItem) error {
	if item == nil {
		return ErrNilItem
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	e.startLocked(item, "override")
	e.unlockAndPublish(true)
	return nil
}

// StartByID looks id up in the pool and starts it immediately
func (e *Engine) StartByID(id string) (models.ContentItem, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	item, ok := e.pool.Lookup(id)
	if !ok {
		e.mu.Unlock()
		return nil, ErrItemNotFound
	}
	e.startLocked(item, "override")
	e.unlockAndPublish(true)
	return item, nil
}

// PrepareNext selects the successor of the current item ahead of time, avoiding
// the current category. It keeps an existing prepared item.
func (e *Engine) PrepareNext() (models.ContentItem, bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, false
	}

	hadNext := e.st.next != nil
	item := e.prepareLocked()
	e.unlockAndPublish(!hadNext && item != nil)
	return item, item != nil
}

// ScheduleAdvance raises the cover over the still-playing current item and swaps
// in the prepared item once max(delay, floor) has elapsed. It does nothing when
// nothing is prepared or the overlay is already up.
func (e *Engine) ScheduleAdvance(delay time.Duration) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}

	scheduled := e.scheduleAdvanceLocked(delay)
	e.unlockAndPublish(scheduled)
	return scheduled
}

// ScheduleSlideAdvance arms the timed cover for the current slide so the swap
// lands when the slide's display duration ends. Streams are ignored.
func (e *Engine) ScheduleSlideAdvance() bool {
	e.mu.Lock()
	if e.closed || e.st.overlayVisible {
		e.mu.Unlock()
		return false
	}

	armed := e.armSlideCoverLocked()
	e.unlockAndPublish(armed)
	return armed
}

// DismissOverlay reveals the current item. It is called when the bumper ends and
// by the fallback timer; repeated calls have no further effect.
func (e *Engine) DismissOverlay() bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}

	changed := e.dismissLocked()
	e.unlockAndPublish(changed)
	return changed
}

// OnContentEnded advances after the current item finished playing. A prepared
// item starts with no added delay; otherwise a fresh selection is made. It
// returns ErrNoContent and leaves the state untouched when the pool is exhausted.
func (e *Engine) OnContentEnded() error {
	return e.contentEnded("")
}

// OnItemEnded is OnContentEnded for a specific item. Reports naming an item that
// is no longer current are stale and ignored.
func (e *Engine) OnItemEnded(itemID string) error {
	return e.contentEnded(itemID)
}

// ReportPlaybackError recovers from a player failure. A failed bumper counts as
// a finished bumper and a failed item counts as a finished item.
func (e *Engine) ReportPlaybackError(f *PlaybackFailure) error {
	if f == nil {
		return nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}

	e.log.WithLevel(severityLevel(f.Kind)).
		Str("source", string(f.Source)).
		Str("kind", f.Kind.String()).
		Str("item_id", f.ItemID).
		Str("bumper", f.BumperURL).
		AnErr("cause", f.Cause).
		Msg("Player reported a playback failure")

	if f.Source == SourceBumper {
		if f.BumperURL != "" && f.BumperURL != e.st.bumperURL {
			e.mu.Unlock()
			return nil
		}
		changed := e.dismissLocked()
		e.unlockAndPublish(changed)
		return nil
	}

	if e.isStaleItemLocked(f.ItemID) {
		e.mu.Unlock()
		return nil
	}
	err := e.advanceNowLocked()
	e.unlockAndPublish(err == nil)
	return err
}

// Close cancels every timer and clears the play intent. Later operations are no-ops.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.cancelTimersLocked()
	e.st.playIntent = false
	e.unlockAndPublish(true)

	e.mu.Lock()
	e.listeners = nil
	e.mu.Unlock()
}

func (e *Engine) contentEnded(itemID string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.isStaleItemLocked(itemID) {
		e.log.Debug().
			Str("item_id", itemID).
			Msg("Ignoring end event for an item that is no longer current")
		e.mu.Unlock()
		return nil
	}

	err := e.advanceNowLocked()
	e.unlockAndPublish(err == nil)
	return err
}

func (e *Engine) isStaleItemLocked(itemID string) bool {
	return itemID != "" && e.st.current != nil && itemID != e.st.current.ItemID()
}

func (e *Engine) bootLocked() bool {
	item, ok := e.pool.Select(e.rng, "")
	if !ok {
		e.log.Warn().Msg("Initial selection found no content")
		return false
	}
	e.startLocked(item, "boot")
	return true
}

func (e *Engine) startLocked(item models.ContentItem, reason string) {
	e.cancelTimersLocked()
	e.booted = true

	previous := e.st.bumperURL
	e.st.current = item
	e.st.next = nil
	e.st.bumperURL, e.st.bumperQueue = e.rotation.ForItem(e.rng, item, previous, e.st.bumperQueue)
	e.st.overlayVisible = true
	e.st.playIntent = true
	e.st.contentActive = false

	e.armFallbackLocked(e.cfg.FallbackTimeout)

	e.log.Info().
		Str("item_id", item.ItemID()).
		Str("kind", string(item.Kind())).
		Str("bumper", e.st.bumperURL).
		Str("reason", reason).
		Msg("Started item")
}

func (e *Engine) advanceNowLocked() error {
	if next := e.st.next; next != nil {
		e.startLocked(next, "prepared")
		return nil
	}

	item, ok := e.pool.Select(e.rng, e.currentCategoryLocked())
	if !ok {
		e.log.Warn().Msg("Content ended with an exhausted pool, staying on current item")
		return ErrNoContent
	}
	e.startLocked(item, "selected")
	return nil
}

func (e *Engine) prepareLocked() models.ContentItem {
	if e.st.next != nil {
		return e.st.next
	}
	item, ok := e.pool.Select(e.rng, e.currentCategoryLocked())
	if !ok {
		return nil
	}
	e.st.next = item

	e.log.Debug().
		Str("item_id", item.ItemID()).
		Msg("Prepared next item")
	return item
}

func (e *Engine) currentCategoryLocked() string {
	if e.st.current == nil {
		return ""
	}
	return e.st.current.ItemCategory()
}

func (e *Engine) scheduleAdvanceLocked(delay time.Duration) bool {
	if e.st.next == nil || e.st.overlayVisible {
		return false
	}

	e.cancelTimersLocked()

	previous := e.st.bumperURL
	e.st.bumperURL, e.st.bumperQueue = e.rotation.ForItem(e.rng, e.st.next, previous, e.st.bumperQueue)
	e.st.overlayVisible = true
	e.st.contentActive = false

	if delay < e.cfg.AdvanceFloor {
		delay = e.cfg.AdvanceFloor
	}
	e.armAdvanceLocked(delay, advanceSwap)

	e.log.Debug().
		Str("next_id", e.st.next.ItemID()).
		Str("bumper", e.st.bumperURL).
		Dur("delay", delay).
		Msg("Cover raised for scheduled advance")
	return true
}

func (e *Engine) swapLocked() bool {
	if e.st.next == nil {
		return false
	}

	e.st.current = e.st.next
	e.st.next = nil
	e.st.overlayVisible = true
	e.st.contentActive = false

	// a bumper that already finished under the cover only needs to mask the load
	hold := e.cfg.FallbackTimeout
	if e.dismissDeferred {
		hold = e.cfg.AdvanceFloor
		e.dismissDeferred = false
	}
	e.armFallbackLocked(hold)

	e.log.Info().
		Str("item_id", e.st.current.ItemID()).
		Str("kind", string(e.st.current.Kind())).
		Str("bumper", e.st.bumperURL).
		Str("reason", "scheduled").
		Msg("Started item")
	return true
}

func (e *Engine) dismissLocked() bool {
	if e.advanceMode == advanceSwap {
		// the cover stays up until the swap has happened
		e.dismissDeferred = true
		return false
	}

	e.stopSlot(&e.fallback)
	if !e.st.overlayVisible {
		return false
	}

	e.st.overlayVisible = false
	e.st.contentActive = true

	if e.cfg.AutoSlideAdvance {
		e.armSlideCoverLocked()
	}
	return true
}

func (e *Engine) armSlideCoverLocked() bool {
	slide, ok := e.st.current.(*models.SlideItem)
	if !ok {
		return false
	}

	e.prepareLocked()

	lead := slide.Duration(e.cfg.DefaultSlideDuration) - e.cfg.AdvanceFloor
	if lead < 0 {
		lead = 0
	}
	e.armAdvanceLocked(lead, advanceCover)
	return true
}

func (e *Engine) cancelTimersLocked() {
	e.stopSlot(&e.fallback)
	e.stopSlot(&e.advance)
	e.advanceMode = advanceNone
	e.dismissDeferred = false
}

func (e *Engine) stopSlot(slot *timerSlot) {
	if slot.timer != nil {
		slot.timer.Stop()
		slot.timer = nil
	}
}

func (e *Engine) armFallbackLocked(d time.Duration) {
	e.stopSlot(&e.fallback)
	e.timerGen++
	gen := e.timerGen
	e.fallback.gen = gen
	e.fallback.timer = e.clock.AfterFunc(d, func() { e.fireFallback(gen) })
}

func (e *Engine) armAdvanceLocked(d time.Duration, mode advanceMode) {
	e.stopSlot(&e.advance)
	e.timerGen++
	gen := e.timerGen
	e.advance.gen = gen
	e.advanceMode = mode
	e.advance.timer = e.clock.AfterFunc(d, func() { e.fireAdvance(gen) })
}

func (e *Engine) fireFallback(gen uint64) {
	e.mu.Lock()
	if e.closed || e.fallback.timer == nil || e.fallback.gen != gen {
		e.mu.Unlock()
		return
	}
	e.fallback.timer = nil

	e.log.Warn().
		Str("item_id", e.currentIDLocked()).
		Str("bumper", e.st.bumperURL).
		Msg("Overlay not dismissed in time, forcing dismissal")

	e.dismissLocked()
	e.unlockAndPublish(true)
}

func (e *Engine) fireAdvance(gen uint64) {
	e.mu.Lock()
	if e.closed || e.advance.timer == nil || e.advance.gen != gen {
		e.mu.Unlock()
		return
	}
	e.advance.timer = nil
	mode := e.advanceMode
	e.advanceMode = advanceNone

	switch mode {
	case advanceCover:
		e.prepareLocked()
		if !e.scheduleAdvanceLocked(e.cfg.AdvanceFloor) {
			e.log.Warn().
				Str("item_id", e.currentIDLocked()).
				Msg("Slide finished with nothing to advance to")
		}
	case advanceSwap:
		e.swapLocked()
	}

	e.unlockAndPublish(true)
}

func (e *Engine) currentIDLocked() string {
	if e.st.current == nil {
		return ""
	}
	return e.st.current.ItemID()
}

func (e *Engine) snapshotLocked() Snapshot {
	queue := make([]string, len(e.st.bumperQueue))
	copy(queue, e.st.bumperQueue)

	return Snapshot{
		Revision:       e.revision,
		Phase:          e.st.phase(),
		Current:        e.st.current,
		Next:           e.st.next,
		BumperURL:      e.st.bumperURL,
		BumperQueue:    queue,
		OverlayVisible: e.st.overlayVisible,
		PlayIntent:     e.st.playIntent,
		ContentActive:  e.st.contentActive,
		AdvancePending: e.advance.timer != nil,
		FallbackArmed:  e.fallback.timer != nil,
	}
}

// unlockAndPublish releases the engine lock and, if the state changed, hands the
// new snapshot to every listener. notifyMu is taken before the engine lock is
// released so listeners observe snapshots in mutation order.
func (e *Engine) unlockAndPublish(changed bool) {
	if !changed {
		e.mu.Unlock()
		return
	}

	e.revision++
	snap := e.snapshotLocked()
	fns := make([]func(Snapshot), len(e.listeners))
	for i, l := range e.listeners {
		fns[i] = l.fn
	}

	e.notifyMu.Lock()
	e.mu.Unlock()
	defer e.notifyMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func severityLevel(k FailureKind) zerolog.Level {
	switch k.Severity() {
	case "info":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
