package playback

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/evercast/internal/bumper"
	"github.com/stwalsh4118/evercast/internal/clock"
	"github.com/stwalsh4118/evercast/internal/models"
	"github.com/stwalsh4118/evercast/internal/pool"
)

const testNewsBumper = "news.mp4"

var testBumpers = []string{"i1.mp4", "i2.mp4", "i3.mp4"}

func stream(id, category string) *models.StreamItem {
	return &models.StreamItem{ID: id, Name: id, SourceURL: "https://cdn/" + id, Category: category}
}

func slide(id, category string, seconds int) *models.SlideItem {
	return &models.SlideItem{ID: id, Title: id, Category: category, DurationSeconds: seconds}
}

type fixture struct {
	engine *Engine
	clock  *clock.Fake
}

func newFixture(t *testing.T, items []models.ContentItem, policy pool.Policy, tweak func(*Config)) *fixture {
	t.Helper()

	cfg := DefaultConfig()
	cfg.AutoSlideAdvance = false
	if tweak != nil {
		tweak(&cfg)
	}

	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	engine := NewEngine(
		pool.New(items, policy),
		bumper.NewRotation(testBumpers, testNewsBumper),
		cfg,
		WithClock(clk),
		WithRand(rand.New(rand.NewPCG(42, 1))),
	)
	t.Cleanup(engine.Close)

	return &fixture{engine: engine, clock: clk}
}

func mixedPool() []models.ContentItem {
	return []models.ContentItem{
		stream("a", "music"),
		stream("b", "music"),
		stream("c", "sport"),
		slide("n", "news", 30),
	}
}

func TestNewEngine_StartsEmpty(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)

	snap := f.engine.Snapshot()
	assert.Equal(t, PhaseEmpty, snap.Phase)
	assert.Nil(t, snap.Current)
	assert.False(t, snap.OverlayVisible)
	assert.False(t, snap.PlayIntent)
	assert.Zero(t, f.clock.Pending())
}

func TestNewEngine_DefaultsZeroConfig(t *testing.T) {
	e := NewEngine(nil, nil, Config{})
	defer e.Close()

	cfg := e.Config()
	assert.Equal(t, DefaultFallbackTimeout, cfg.FallbackTimeout)
	assert.Equal(t, DefaultAdvanceFloor, cfg.AdvanceFloor)
	assert.Equal(t, models.DefaultSlideDuration, cfg.DefaultSlideDuration)
	assert.Zero(t, e.PoolSize())
}

func TestBoot_SelectsOnceAndLatches(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)

	started, err := f.engine.Boot()
	require.NoError(t, err)
	assert.True(t, started)

	snap := f.engine.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, PhaseOverlayShowing, snap.Phase)
	assert.True(t, snap.OverlayVisible)
	assert.True(t, snap.PlayIntent)
	assert.False(t, snap.ContentActive)
	assert.True(t, snap.FallbackArmed)
	first := snap.CurrentID()

	started, err = f.engine.Boot()
	require.NoError(t, err)
	assert.False(t, started)

	refreshed := append(mixedPool(), stream("late", "music"))
	assert.False(t, f.engine.ReplacePool(pool.New(refreshed, pool.Policy{})), "refresh after first pick never re-selects")
	assert.Equal(t, first, f.engine.Snapshot().CurrentID())
	assert.Equal(t, 5, f.engine.PoolSize())
}

func TestBoot_EmptyPoolLeavesLatchOpen(t *testing.T) {
	f := newFixture(t, nil, pool.Policy{}, nil)

	started, err := f.engine.Boot()
	assert.False(t, started)
	assert.True(t, IsNoContent(err))
	assert.Equal(t, PhaseEmpty, f.engine.Snapshot().Phase)

	assert.True(t, f.engine.ReplacePool(pool.New(mixedPool(), pool.Policy{})))
	assert.NotNil(t, f.engine.Snapshot().Current)

	started, err = f.engine.Boot()
	require.NoError(t, err)
	assert.False(t, started)
}

func TestBoot_OverrideWinsLatch(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)

	_, err := f.engine.StartByID("c")
	require.NoError(t, err)

	started, err := f.engine.Boot()
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, "c", f.engine.Snapshot().CurrentID())
}

func TestBoot_RespectsPolicy(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t, mixedPool(), pool.Policy{ForbiddenCategory: "music", ExcludedID: "c"}, nil)
		_, err := f.engine.Boot()
		require.NoError(t, err)
		assert.Equal(t, "n", f.engine.Snapshot().CurrentID())
	}
}

func TestStartImmediate_AppliesSynchronously(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)
	item := stream("c", "sport")

	require.NoError(t, f.engine.StartImmediate(item))

	snap := f.engine.Snapshot()
	assert.Same(t, item, snap.Current)
	assert.Nil(t, snap.Next)
	assert.True(t, snap.OverlayVisible)
	assert.True(t, snap.PlayIntent)
	assert.False(t, snap.ContentActive)
	assert.Contains(t, testBumpers, snap.BumperURL)
	assert.True(t, snap.FallbackArmed)
	assert.False(t, snap.AdvancePending)
	assert.Equal(t, 1, f.clock.Pending())
}

func TestStartImmediate_NilItem(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)
	assert.ErrorIs(t, f.engine.StartImmediate(nil), ErrNilItem)
}

func TestStartByID_Unknown(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{ExcludedID: "b"}, nil)

	_, err := f.engine.StartByID("missing")
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = f.engine.StartByID("b")
	assert.ErrorIs(t, err, ErrItemNotFound, "excluded item cannot be started by id")
}

func TestStartImmediate_CancelsPendingAdvance(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)
	require.NoError(t, f.engine.StartImmediate(stream("a", "music")))
	f.engine.DismissOverlay()
	_, ok := f.engine.PrepareNext()
	require.True(t, ok)
	require.True(t, f.engine.ScheduleAdvance(5*time.Second))

	override := stream("c", "sport")
	require.NoError(t, f.engine.StartImmediate(override))

	snap := f.engine.Snapshot()
	assert.False(t, snap.AdvancePending)
	assert.Nil(t, snap.Next)
	assert.Equal(t, 1, f.clock.Pending(), "only the new fallback timer remains")

	f.clock.Advance(30 * time.Second)
	snap = f.engine.Snapshot()
	assert.Same(t, override, snap.Current, "stale advance timer must not swap after an override")
	assert.False(t, snap.OverlayVisible)
}

func TestFallbackTimerDismissesOverlay(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)
	require.NoError(t, f.engine.StartImmediate(stream("a", "music")))

	f.clock.Advance(DefaultFallbackTimeout - time.Millisecond)
	assert.True(t, f.engine.Snapshot().OverlayVisible)

	f.clock.Advance(time.Millisecond)
	snap := f.engine.Snapshot()
	assert.False(t, snap.OverlayVisible)
	assert.True(t, snap.ContentActive)
	assert.False(t, snap.FallbackArmed)
	assert.Equal(t, PhaseContentActive, snap.Phase)
}

func TestFallbackTimeoutIsConfigurable(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, func(c *Config) { c.FallbackTimeout = 2 * time.Second })
	require.NoError(t, f.engine.StartImmediate(stream("a", "music")))

	f.clock.Advance(2 * time.Second)
	assert.False(t, f.engine.Snapshot().OverlayVisible)
}

func TestDismissOverlay_Idempotent(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)
	require.NoError(t, f.engine.StartImmediate(stream("a", "music")))

	assert.True(t, f.engine.DismissOverlay())
	once := f.engine.Snapshot()

	assert.False(t, f.engine.DismissOverlay())
	twice := f.engine.Snapshot()

	assert.Equal(t, once, twice)
	assert.Zero(t, f.clock.Pending(), "dismissal cancels the fallback timer")

	f.clock.Advance(time.Minute)
	assert.Equal(t, once, f.engine.Snapshot())
}

func TestScheduleAdvance_EnforcesSafetyFloor(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)
	current := stream("a", "music")
	require.NoError(t, f.engine.StartImmediate(current))
	f.engine.DismissOverlay()
	next, ok := f.engine.PrepareNext()
	require.True(t, ok)

	require.True(t, f.engine.ScheduleAdvance(300*time.Millisecond))

	snap := f.engine.Snapshot()
	assert.True(t, snap.OverlayVisible, "cover is raised immediately")
	assert.False(t, snap.ContentActive)
	assert.Same(t, current, snap.Current)
	assert.True(t, snap.AdvancePending)
	assert.False(t, snap.FallbackArmed)

	f.clock.Advance(300 * time.Millisecond)
	assert.Same(t, current, f.engine.Snapshot().Current)

	f.clock.Advance(DefaultAdvanceFloor - 300*time.Millisecond - time.Millisecond)
	assert.Same(t, current, f.engine.Snapshot().Current, "swap must not happen before the floor")

	f.clock.Advance(time.Millisecond)
	snap = f.engine.Snapshot()
	assert.Same(t, next, snap.Current)
	assert.Nil(t, snap.Next)
	assert.True(t, snap.OverlayVisible, "overlay stays up across the swap")
	assert.True(t, snap.FallbackArmed)
	assert.False(t, snap.AdvancePending)

	f.clock.Advance(DefaultFallbackTimeout)
	assert.False(t, f.engine.Snapshot().OverlayVisible)
}

func TestScheduleAdvance_HonoursLongerDelay(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)
	require.NoError(t, f.engine.StartImmediate(stream("a", "music")))
	f.engine.DismissOverlay()
	next, _ := f.engine.PrepareNext()

	require.True(t, f.engine.ScheduleAdvance(4*time.Second))
	f.clock.Advance(4*time.Second - time.Millisecond)
	assert.NotSame(t, next, f.engine.Snapshot().Current)

	f.clock.Advance(time.Millisecond)
	assert.Same(t, next, f.engine.Snapshot().Current)
}

func TestScheduleAdvance_Noops(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)
	require.NoError(t, f.engine.StartImmediate(stream("a", "music")))

	assert.False(t, f.engine.ScheduleAdvance(time.Second), "nothing prepared")

	_, ok := f.engine.PrepareNext()
	require.True(t, ok)
	assert.False(t, f.engine.ScheduleAdvance(time.Second), "overlay already visible")

	f.engine.DismissOverlay()
	assert.True(t, f.engine.ScheduleAdvance(time.Second))
	assert.False(t, f.engine.ScheduleAdvance(time.Second), "no overlapping transitions")
}

func TestDismissDuringScheduledSwapIsDeferred(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)
	require.NoError(t, f.engine.StartImmediate(stream("a", "music")))
	f.engine.DismissOverlay()
	next, _ := f.engine.PrepareNext()
	require.True(t, f.engine.ScheduleAdvance(0))

	assert.False(t, f.engine.DismissOverlay(), "cover cannot drop before the swap")
	assert.True(t, f.engine.Snapshot().OverlayVisible)

	f.clock.Advance(DefaultAdvanceFloor)
	snap := f.engine.Snapshot()
	assert.Same(t, next, snap.Current)
	assert.True(t, snap.OverlayVisible)

	// the finished bumper only holds the cover for the floor, not the full fallback
	f.clock.Advance(DefaultAdvanceFloor)
	snap = f.engine.Snapshot()
	assert.False(t, snap.OverlayVisible)
	assert.True(t, snap.ContentActive)
}

func TestPrepareNext(t *testing.T) {
	items := []models.ContentItem{stream("A", "X"), stream("B", "X"), stream("C", "Y")}
	f := newFixture(t, items, pool.Policy{}, nil)
	require.NoError(t, f.engine.StartImmediate(items[0]))

	next, ok := f.engine.PrepareNext()
	require.True(t, ok)
	assert.Equal(t, "C", next.ItemID(), "successor avoids the current category")

	again, ok := f.engine.PrepareNext()
	require.True(t, ok)
	assert.Same(t, next, again, "existing prepared item is kept")

	snap := f.engine.Snapshot()
	assert.Same(t, items[0], snap.Current, "preparing never changes what is rendered")
	assert.Equal(t, "C", snap.NextID())
	assert.True(t, snap.OverlayVisible)
}

func TestPrepareNext_EmptyPool(t *testing.T) {
	f := newFixture(t, nil, pool.Policy{}, nil)
	require.NoError(t, f.engine.StartImmediate(stream("x", "music")))
	rev := f.engine.Snapshot().Revision

	_, ok := f.engine.PrepareNext()
	assert.False(t, ok)
	assert.Equal(t, rev, f.engine.Snapshot().Revision)
}

func TestOnContentEnded_FastPathSkipsAdvanceTimer(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)
	require.NoError(t, f.engine.StartImmediate(stream("a", "music")))
	f.engine.DismissOverlay()
	next, ok := f.engine.PrepareNext()
	require.True(t, ok)

	require.NoError(t, f.engine.OnContentEnded())

	snap := f.engine.Snapshot()
	assert.Same(t, next, snap.Current, "prepared item starts with no added delay")
	assert.Nil(t, snap.Next)
	assert.True(t, snap.OverlayVisible)
	assert.False(t, snap.AdvancePending)
	assert.True(t, snap.FallbackArmed)
	assert.Equal(t, 1, f.clock.Pending(), "only the fallback timer is armed")
}

func TestOnContentEnded_SelectsFreshAvoidingCategory(t *testing.T) {
	items := []models.ContentItem{stream("A", "X"), stream("B", "X"), stream("C", "Y")}
	f := newFixture(t, items, pool.Policy{}, nil)

	for i := 0; i < 20; i++ {
		require.NoError(t, f.engine.StartImmediate(items[0]))
		f.engine.DismissOverlay()
		require.NoError(t, f.engine.OnContentEnded())
		assert.Equal(t, "C", f.engine.Snapshot().CurrentID())
	}
}

func TestOnContentEnded_ExhaustedPoolStalls(t *testing.T) {
	f := newFixture(t, nil, pool.Policy{}, nil)
	item := stream("orphan", "music")
	require.NoError(t, f.engine.StartImmediate(item))
	f.engine.DismissOverlay()
	before := f.engine.Snapshot()

	err := f.engine.OnContentEnded()
	assert.ErrorIs(t, err, ErrNoContent)

	after := f.engine.Snapshot()
	assert.Equal(t, before, after)
	assert.Equal(t, PhaseContentActive, after.Phase)
	assert.Same(t, item, after.Current, "current is never cleared")
}

func TestOnItemEnded_IgnoresStaleReports(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)
	require.NoError(t, f.engine.StartImmediate(stream("a", "music")))
	f.engine.DismissOverlay()
	before := f.engine.Snapshot()

	require.NoError(t, f.engine.OnItemEnded("someone-else"))
	assert.Equal(t, before, f.engine.Snapshot())

	require.NoError(t, f.engine.OnItemEnded("a"))
	assert.NotEqual(t, "a", f.engine.Snapshot().CurrentID())
}

func TestReportPlaybackError(t *testing.T) {
	t.Run("bumper failure dismisses overlay", func(t *testing.T) {
		f := newFixture(t, mixedPool(), pool.Policy{}, nil)
		require.NoError(t, f.engine.StartImmediate(stream("a", "music")))

		err := f.engine.ReportPlaybackError(&PlaybackFailure{
			Source: SourceBumper,
			Kind:   FailureAutoplayRejected,
			Cause:  errors.New("play() rejected"),
		})
		require.NoError(t, err)

		snap := f.engine.Snapshot()
		assert.False(t, snap.OverlayVisible)
		assert.True(t, snap.ContentActive)
		assert.Zero(t, f.clock.Pending())
	})

	t.Run("stale bumper failure ignored", func(t *testing.T) {
		f := newFixture(t, mixedPool(), pool.Policy{}, nil)
		require.NoError(t, f.engine.StartImmediate(stream("a", "music")))

		require.NoError(t, f.engine.ReportPlaybackError(&PlaybackFailure{
			Source:    SourceBumper,
			BumperURL: "an-old-bumper.mp4",
		}))
		assert.True(t, f.engine.Snapshot().OverlayVisible)
	})

	t.Run("content failure advances", func(t *testing.T) {
		f := newFixture(t, mixedPool(), pool.Policy{}, nil)
		require.NoError(t, f.engine.StartImmediate(stream("a", "music")))
		f.engine.DismissOverlay()

		require.NoError(t, f.engine.ReportPlaybackError(&PlaybackFailure{
			Source: SourceContent,
			Kind:   FailureSourceUnavailable,
			ItemID: "a",
		}))

		snap := f.engine.Snapshot()
		assert.NotEqual(t, "a", snap.CurrentID())
		assert.True(t, snap.OverlayVisible)
	})

	t.Run("content failure on exhausted pool", func(t *testing.T) {
		f := newFixture(t, nil, pool.Policy{}, nil)
		require.NoError(t, f.engine.StartImmediate(stream("a", "music")))

		err := f.engine.ReportPlaybackError(&PlaybackFailure{Source: SourceContent, Kind: FailureDecode})
		assert.ErrorIs(t, err, ErrNoContent)
	})

	t.Run("nil failure", func(t *testing.T) {
		f := newFixture(t, mixedPool(), pool.Policy{}, nil)
		assert.NoError(t, f.engine.ReportPlaybackError(nil))
	})
}

func TestSlideUsesNewsBumper(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)

	require.NoError(t, f.engine.StartImmediate(slide("n", "news", 30)))
	assert.Equal(t, testNewsBumper, f.engine.Snapshot().BumperURL)

	require.NoError(t, f.engine.StartImmediate(stream("a", "music")))
	assert.Contains(t, testBumpers, f.engine.Snapshot().BumperURL)
}

func TestBumpersNeverRepeatBackToBack(t *testing.T) {
	items := []models.ContentItem{stream("a", "1"), stream("b", "2"), stream("c", "3")}
	f := newFixture(t, items, pool.Policy{}, nil)
	_, err := f.engine.Boot()
	require.NoError(t, err)

	previous := f.engine.Snapshot().BumperURL
	for i := 0; i < 300; i++ {
		f.engine.DismissOverlay()
		require.NoError(t, f.engine.OnContentEnded())
		current := f.engine.Snapshot().BumperURL
		require.NotEqual(t, previous, current, "transition %d", i)
		previous = current
	}
}

func TestSlideAutoAdvance(t *testing.T) {
	items := []models.ContentItem{slide("n", "news", 10), stream("v", "music")}
	f := newFixture(t, items, pool.Policy{}, func(c *Config) { c.AutoSlideAdvance = true })

	require.NoError(t, f.engine.StartImmediate(items[0]))
	require.True(t, f.engine.DismissOverlay())

	snap := f.engine.Snapshot()
	assert.True(t, snap.AdvancePending)
	assert.Equal(t, "v", snap.NextID(), "successor is prepared as soon as the slide is visible")

	lead := 10*time.Second - DefaultAdvanceFloor
	f.clock.Advance(lead - time.Millisecond)
	assert.False(t, f.engine.Snapshot().OverlayVisible)

	f.clock.Advance(time.Millisecond)
	snap = f.engine.Snapshot()
	assert.True(t, snap.OverlayVisible, "cover rises over the last moments of the slide")
	assert.Equal(t, "n", snap.CurrentID())
	assert.Contains(t, testBumpers, snap.BumperURL)

	f.clock.Advance(DefaultAdvanceFloor)
	snap = f.engine.Snapshot()
	assert.Equal(t, "v", snap.CurrentID(), "swap lands when the slide duration ends")
	assert.True(t, snap.OverlayVisible)
	assert.True(t, snap.FallbackArmed)
}

func TestScheduleSlideAdvance(t *testing.T) {
	items := []models.ContentItem{slide("n", "news", 4), stream("v", "music")}
	f := newFixture(t, items, pool.Policy{}, nil)

	require.NoError(t, f.engine.StartImmediate(items[0]))
	assert.False(t, f.engine.ScheduleSlideAdvance(), "overlay still up")

	f.engine.DismissOverlay()
	assert.False(t, f.engine.Snapshot().AdvancePending, "auto advance disabled")
	require.True(t, f.engine.ScheduleSlideAdvance())

	f.clock.Advance(4 * time.Second)
	assert.Equal(t, "v", f.engine.Snapshot().CurrentID())

	f.engine.DismissOverlay()
	assert.False(t, f.engine.ScheduleSlideAdvance(), "streams end on their own")
}

func TestSlideShorterThanFloorCoversImmediately(t *testing.T) {
	items := []models.ContentItem{slide("n", "news", 1), stream("v", "music")}
	f := newFixture(t, items, pool.Policy{}, func(c *Config) { c.AutoSlideAdvance = true })

	require.NoError(t, f.engine.StartImmediate(items[0]))
	f.engine.DismissOverlay()

	f.clock.Advance(0)
	assert.True(t, f.engine.Snapshot().OverlayVisible)
	f.clock.Advance(DefaultAdvanceFloor)
	assert.Equal(t, "v", f.engine.Snapshot().CurrentID())
}

func TestAtMostOneTimerPerRole(t *testing.T) {
	items := []models.ContentItem{slide("n", "news", 5), stream("a", "1"), stream("b", "2"), stream("c", "3")}
	f := newFixture(t, items, pool.Policy{}, func(c *Config) { c.AutoSlideAdvance = true })
	_, err := f.engine.Boot()
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(9, 9))
	for i := 0; i < 500; i++ {
		switch rng.IntN(7) {
		case 0:
			f.engine.DismissOverlay()
		case 1:
			f.engine.PrepareNext()
		case 2:
			f.engine.ScheduleAdvance(time.Duration(rng.IntN(3000)) * time.Millisecond)
		case 3:
			_ = f.engine.OnContentEnded()
		case 4:
			_, _ = f.engine.StartByID(items[rng.IntN(len(items))].ItemID())
		case 5:
			f.engine.ScheduleSlideAdvance()
		case 6:
			f.clock.Advance(time.Duration(rng.IntN(4000)) * time.Millisecond)
		}

		require.LessOrEqual(t, f.clock.Pending(), 2)
		snap := f.engine.Snapshot()
		require.NotNil(t, snap.Current, "current is never cleared once set")
		if snap.FallbackArmed {
			require.True(t, snap.OverlayVisible, "fallback only guards a visible overlay")
		}
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)

	var got []Snapshot
	unsubscribe := f.engine.Subscribe(func(s Snapshot) { got = append(got, s) })

	require.NoError(t, f.engine.StartImmediate(stream("a", "music")))
	f.engine.DismissOverlay()
	f.engine.DismissOverlay()

	require.Len(t, got, 2, "no-op calls publish nothing")
	assert.True(t, got[0].OverlayVisible)
	assert.False(t, got[1].OverlayVisible)
	assert.Less(t, got[0].Revision, got[1].Revision)

	unsubscribe()
	require.NoError(t, f.engine.OnContentEnded())
	assert.Len(t, got, 2)
}

func TestClose(t *testing.T) {
	f := newFixture(t, mixedPool(), pool.Policy{}, nil)

	var last Snapshot
	f.engine.Subscribe(func(s Snapshot) { last = s })
	_, err := f.engine.Boot()
	require.NoError(t, err)
	require.True(t, last.PlayIntent)

	f.engine.Close()
	assert.False(t, last.PlayIntent, "listeners see the play intent drop")
	assert.Zero(t, f.clock.Pending())

	assert.ErrorIs(t, f.engine.StartImmediate(stream("a", "music")), ErrEngineClosed)
	assert.ErrorIs(t, f.engine.OnContentEnded(), ErrEngineClosed)
	_, err = f.engine.Boot()
	assert.True(t, IsClosed(err))
	assert.False(t, f.engine.DismissOverlay())
	assert.False(t, f.engine.ScheduleAdvance(time.Second))

	f.engine.Close()
}
