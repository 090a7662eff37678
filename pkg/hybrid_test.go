package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newHybrid builds a hybrid with a disk tier, a fake clock, and a long
// maintenance period so tests drive maintain by hand.
func newHybrid(t *testing.T, memLimit int64, opts ...Option) (*HybridCache, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	opts = append([]Option{
		WithDisk(t.TempDir()),
		WithClock(clk.Now),
		WithMaintenanceInterval(time.Hour),
	}, opts...)
	h, err := New(memLimit, opts...)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h, clk
}

func TestHybridWriteThroughPopulatesBothTiers(t *testing.T) {
	ctx := context.Background()
	h, _ := newHybrid(t, 1024)

	require.NoError(t, h.Set(ctx, "k", blob(16)))

	assert.True(t, h.mem.contains("k"))
	assert.True(t, h.disk.contains("k"))

	v, ok := h.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, blob(16), v)
}

func TestHybridMemoryOnlyWithoutDisk(t *testing.T) {
	ctx := context.Background()
	h, err := New(1024, WithMaintenanceInterval(time.Hour))
	require.NoError(t, err)
	defer h.Close()

	require.Nil(t, h.Disk())
	require.NoError(t, h.Set(ctx, "k", blob(8)))
	v, ok := h.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, blob(8), v)
}

func TestHybridDiskHitPromotesWhenHot(t *testing.T) {
	ctx := context.Background()
	// Threshold 0: any disk hit qualifies for promotion.
	h, _ := newHybrid(t, 1024, WithPromotionThreshold(0))

	require.NoError(t, h.Set(ctx, "k", blob(16)))
	require.NoError(t, h.mem.Remove(ctx, "k")) // force the copy out of L1

	v, ok := h.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, blob(16), v)
	assert.True(t, h.mem.contains("k"), "hot disk hit must promote into memory")
	assert.True(t, h.disk.contains("k"), "the disk copy remains after promotion")
}

func TestHybridDiskHitStaysColdBelowThreshold(t *testing.T) {
	ctx := context.Background()
	h, clk := newHybrid(t, 1024,
		WithPromotionThreshold(10), // 10 Hz: nothing in this test is that hot
		WithSmoothing(1.0))

	require.NoError(t, h.Set(ctx, "k", blob(16)))
	require.NoError(t, h.mem.Remove(ctx, "k"))

	clk.Advance(time.Second) // 1 Hz on touch, well under threshold
	_, ok := h.Get(ctx, "k")
	require.True(t, ok)
	assert.False(t, h.mem.contains("k"), "cold disk hit must not promote")
}

func TestHybridDemotionAfterIdle(t *testing.T) {
	ctx := context.Background()
	h, clk := newHybrid(t, 1024, WithDemotionThreshold(time.Minute))

	require.NoError(t, h.Set(ctx, "k", blob(16)))
	require.True(t, h.mem.contains("k"))

	clk.Advance(2 * time.Minute)
	h.maintain(ctx)

	assert.False(t, h.mem.contains("k"), "idle key must be demoted out of memory")
	assert.True(t, h.disk.contains("k"), "the disk copy remains after demotion")

	// Still readable — now a disk hit.
	v, ok := h.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, blob(16), v)
}

func TestHybridMaintenancePromotesHotDiskKeys(t *testing.T) {
	ctx := context.Background()
	h, clk := newHybrid(t, 1024,
		WithPromotionThreshold(0.5),
		WithDemotionThreshold(time.Hour),
		WithSmoothing(1.0))

	require.NoError(t, h.Set(ctx, "k", blob(16)))
	require.NoError(t, h.mem.Remove(ctx, "k"))

	// Build a 1 Hz history (hot, given the 0.5 Hz threshold).
	clk.Advance(time.Second)
	_, ok := h.Get(ctx, "k")
	require.True(t, ok)

	// Simulate LRU pressure evicting the hot key from memory; the next
	// maintenance pass must ride it back in from disk.
	require.NoError(t, h.mem.Remove(ctx, "k"))
	h.maintain(ctx)

	assert.True(t, h.mem.contains("k"), "maintenance must promote hot disk residents")
	assert.True(t, h.disk.contains("k"))
}

func TestHybridTrackerCapped(t *testing.T) {
	ctx := context.Background()
	h, clk := newHybrid(t, 1024, WithDemotionThreshold(time.Minute))

	require.NoError(t, h.Set(ctx, "k", blob(16)))
	require.NoError(t, h.Remove(ctx, "k")) // gone from both tiers, record dropped

	require.NoError(t, h.Set(ctx, "stale", blob(16)))
	require.NoError(t, h.mem.Remove(ctx, "stale"))
	require.NoError(t, h.disk.Remove(ctx, "stale"))
	// "stale" is in neither tier but still tracked until the cap fires.

	clk.Advance(2 * time.Minute)
	h.maintain(ctx)

	assert.Zero(t, h.track.Len(), "records for keys in neither tier must be dropped")
}

func TestHybridValueTooBigForMemoryStillCachedOnDisk(t *testing.T) {
	ctx := context.Background()
	h, _ := newHybrid(t, 100)

	require.NoError(t, h.Set(ctx, "big", blob(200)),
		"a value exceeding only the memory limit is still admitted to disk")
	assert.False(t, h.mem.contains("big"))
	assert.True(t, h.disk.contains("big"))

	v, ok := h.Get(ctx, "big")
	require.True(t, ok)
	assert.Len(t, v, 200)
}

func TestHybridOversizeEverywhere(t *testing.T) {
	ctx := context.Background()
	h, _ := newHybrid(t, 100, WithDiskLimit(100))

	err := h.Set(ctx, "big", blob(200))
	assert.ErrorIs(t, err, ErrCacheFull)
}

func TestHybridRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	h, _ := newHybrid(t, 1024)

	require.NoError(t, h.Set(ctx, "a", blob(8)))
	require.NoError(t, h.Set(ctx, "b", blob(8)))

	require.NoError(t, h.Remove(ctx, "a"))
	require.NoError(t, h.Remove(ctx, "a")) // idempotent
	_, ok := h.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, h.Clear(ctx))
	_, ok = h.Get(ctx, "b")
	assert.False(t, ok)
	assert.Equal(t, int64(0), h.Size())
	assert.Zero(t, h.track.Len())
}

func TestHybridStatsCounters(t *testing.T) {
	ctx := context.Background()
	h, _ := newHybrid(t, 1024)

	require.NoError(t, h.Set(ctx, "k", blob(10)))
	_, _ = h.Get(ctx, "k")      // memory hit
	_, _ = h.Get(ctx, "absent") // miss

	require.NoError(t, h.mem.Remove(ctx, "k"))
	_, _ = h.Get(ctx, "k") // disk hit

	s := h.Stats()
	assert.Equal(t, uint64(2), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.Equal(t, uint64(3), s.Hits+s.Misses,
		"hits+misses must equal the number of Get calls")
}

func TestHybridCloseIdempotent(t *testing.T) {
	h, _ := newHybrid(t, 1024)
	h.Close()
	h.Close()
}
