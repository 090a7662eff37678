package cache

// hybrid.go implements the hybrid controller: the memory tier (L1) layered
// over the disk tier (L2) plus a per-key access tracker.
//
// Read path: memory hit is authoritative; a disk hit feeds the tracker and,
// when the key's decayed access frequency clears the promotion threshold,
// the value is inserted into memory (the disk copy remains).  The
// controller never fetches from a backend — that is the caching store
// wrapper's job (store.go).
//
// Write path: memory always, disk when configured.  The access record is
// reset: a fresh value starts with a clean history.
//
// Maintenance: a background goroutine periodically (1) sweeps the disk tier
// (TTL expiry, size bound), (2) demotes memory residents idle beyond the
// demotion threshold — the disk copy, if any, was already written by the
// write path, so demotion is just dropping the memory copy — (3)
// re-promotes hot disk keys while memory has headroom, and (4) caps the
// tracker by forgetting keys resident in neither tier and idle beyond the
// demotion threshold.  The loop holds no tier lock across iterations
// beyond each operation's own mutex window; Close stops it.
//
// Per-key state machine:
//
//	             set / promote
//	  ABSENT ─────────────────▶ IN_MEMORY ◀─┐
//	     ▲                        │         │ promote
//	     │   write-through +      ▼ demote  │  (on disk hit while hot)
//	     │   disk admission    ON_DISK ─────┘
//	     │                        │
//	     └── clear / remove ◀─────┘
//	                  expiry
//
// © 2025 tier-cache authors. MIT License.

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Voskan/tier-cache/internal/tracker"
)

// HybridCache composes a memory tier over an optional disk tier.
type HybridCache struct {
	mem  *MemoryCache
	disk *DiskCache // nil when no disk root configured

	track *tracker.Tracker

	promotionHz  float64
	demotionIdle time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64

	metrics metricsSink
	logger  *zap.Logger
	now     func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ Cache = (*HybridCache)(nil)

// New constructs a hybrid cache with the given memory limit.  WithDisk
// enables the L2 tier; WithTTL, WithDiskLimit, the promotion/demotion
// thresholds and WithMaintenanceInterval tune policy.  Stop the background
// maintenance with Close.
func New(memoryLimitBytes int64, opts ...Option) (*HybridCache, error) {
	if memoryLimitBytes <= 0 {
		return nil, errInvalidMemoryLimit
	}
	cfg := defaultConfig()
	cfg.memoryLimit = memoryLimitBytes
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	h := &HybridCache{
		mem:          newMemory(cfg),
		track:        tracker.New(cfg.alpha, cfg.now),
		promotionHz:  cfg.promotionHz,
		demotionIdle: cfg.demotionIdle,
		metrics:      cfg.metricsSink(),
		logger:       cfg.logger.Named("hybrid"),
		now:          cfg.now,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	if cfg.diskRoot != "" {
		// The hybrid drives the disk sweep from its own loop.
		disk, err := newDisk(cfg, false)
		if err != nil {
			return nil, err
		}
		h.disk = disk
	}

	go h.loop(cfg.sweepEvery)
	return h, nil
}

// Close stops the maintenance loop.  Safe to call more than once.
func (h *HybridCache) Close() {
	h.closeOnce.Do(func() {
		close(h.stop)
		<-h.done
	})
}

/*
   ---------------- Cache contract ----------------
*/

// Get consults memory first, then disk.  A disk hit is promoted into
// memory when the key's decayed access frequency clears the promotion
// threshold.
func (h *HybridCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := h.mem.Get(ctx, key); ok {
		h.track.Touch(key)
		h.hits.Add(1)
		h.metrics.incHit(tierHybrid)
		return v, true
	}

	if h.disk != nil {
		if v, ok := h.disk.Get(ctx, key); ok {
			rec := h.track.Touch(key)
			if rec.Frequency >= h.promotionHz {
				h.promote(ctx, key, v)
			}
			h.hits.Add(1)
			h.metrics.incHit(tierHybrid)
			return v, true
		}
	}

	h.misses.Add(1)
	h.metrics.incMiss(tierHybrid)
	return nil, false
}

// Set writes through both tiers.  The value counts as admitted when at
// least one tier accepted it; a memory-only rejection (value larger than
// the memory limit but within the disk bound) is not an error.
func (h *HybridCache) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	memErr := h.mem.Set(ctx, key, value)
	var diskErr error
	if h.disk != nil {
		diskErr = h.disk.Set(ctx, key, value)
	}
	h.track.Observe(key)

	switch {
	case memErr == nil || (h.disk != nil && diskErr == nil):
		if memErr != nil {
			h.logger.Debug("memory admission refused, disk copy kept",
				zap.String("key", key), zap.Error(memErr))
		}
		if diskErr != nil {
			h.logger.Warn("disk admission failed, memory copy kept",
				zap.String("key", key), zap.Error(diskErr))
		}
		return nil
	case memErr != nil:
		return memErr
	default:
		return diskErr
	}
}

// Remove deletes key from both tiers and drops its access record.
func (h *HybridCache) Remove(ctx context.Context, key string) error {
	memErr := h.mem.Remove(ctx, key)
	var diskErr error
	if h.disk != nil {
		diskErr = h.disk.Remove(ctx, key)
	}
	h.track.Forget(key)
	return errors.Join(memErr, diskErr)
}

// Clear empties both tiers and the tracker.
func (h *HybridCache) Clear(ctx context.Context) error {
	memErr := h.mem.Clear(ctx)
	var diskErr error
	if h.disk != nil {
		diskErr = h.disk.Clear(ctx)
	}
	h.track.Clear()
	return errors.Join(memErr, diskErr)
}

// Size returns the bytes resident across both tiers.
func (h *HybridCache) Size() int64 {
	total := h.mem.Size()
	if h.disk != nil {
		total += h.disk.Size()
	}
	return total
}

// Stats returns the hybrid's own hit/miss counters plus tier-summed bytes
// and entry counts (a key resident in both tiers counts twice).
func (h *HybridCache) Stats() Stats {
	s := Stats{
		Hits:    h.hits.Load(),
		Misses:  h.misses.Load(),
		Bytes:   h.mem.Size(),
		Entries: h.mem.entries.Load(),
	}
	if h.disk != nil {
		s.Bytes += h.disk.Size()
		s.Entries += h.disk.entries.Load()
	}
	return s
}

// Memory exposes the L1 tier for direct inspection.
func (h *HybridCache) Memory() *MemoryCache { return h.mem }

// Disk exposes the L2 tier, or nil when not configured.
func (h *HybridCache) Disk() *DiskCache { return h.disk }

/*
   ---------------- Maintenance ----------------
*/

func (h *HybridCache) loop(every time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.maintain(context.Background())
		}
	}
}

// maintain runs one maintenance pass.  Foreground operations are never
// blocked beyond their own per-operation mutex windows.
func (h *HybridCache) maintain(ctx context.Context) {
	if h.disk != nil {
		if err := h.disk.Sweep(ctx); err != nil {
			h.logger.Warn("disk sweep failed", zap.Error(err))
		}
	}

	now := h.now()
	demoted, promoted, forgotten := 0, 0, 0

	for key, rec := range h.track.Snapshot() {
		idle := now.Sub(rec.LastAccess)

		if idle > h.demotionIdle {
			// Cold: drop the memory copy.  The write path already placed
			// the disk copy, so demotion never writes.
			if h.mem.contains(key) {
				_ = h.mem.Remove(ctx, key)
				h.metrics.incDemotion()
				demoted++
			}
			// Cap the tracker: a cold key resident in neither tier has no
			// state left worth remembering.
			if h.disk == nil || !h.disk.contains(key) {
				h.track.Forget(key)
				forgotten++
			}
			continue
		}

		// Hot disk residents ride back into memory while it has headroom.
		if rec.Frequency >= h.promotionHz &&
			h.disk != nil && !h.mem.contains(key) && h.disk.contains(key) {
			if v, ok := h.disk.Get(ctx, key); ok && h.mem.Size()+int64(len(v)) <= h.mem.limit {
				h.promote(ctx, key, v)
				promoted++
			}
		}
	}

	if demoted > 0 || promoted > 0 || forgotten > 0 {
		h.logger.Debug("maintenance pass",
			zap.Int("demoted", demoted),
			zap.Int("promoted", promoted),
			zap.Int("tracker_forgotten", forgotten))
	}
}

// promote inserts a disk-resident value into memory, best-effort.
func (h *HybridCache) promote(ctx context.Context, key string, value []byte) {
	if err := h.mem.Set(ctx, key, value); err != nil {
		h.logger.Debug("promotion refused", zap.String("key", key), zap.Error(err))
		return
	}
	h.metrics.incPromotion()
}
