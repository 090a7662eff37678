package cache

// memory.go implements the in-memory LRU tier (L1).
//
// The recency structure is a linked hash map (internal/lru) behind a single
// exclusive lock.  A shared lock buys nothing here: even lookups write (the
// recency bump), and the critical section is O(1) per operation excluding
// eviction.  The dominating cost in any real deployment is the disk tier or
// the backend, not this mutex.
//
// Counters (hits, misses, bytes, entries) are atomics mirrored out of the
// locked structure so Size() and Stats() are wait-free and never suspend.
//
// © 2025 tier-cache authors. MIT License.

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Voskan/tier-cache/internal/lru"
)

// MemoryCache is the byte-bounded, recency-ordered memory tier.
type MemoryCache struct {
	mu sync.Mutex
	ll *lru.List

	limit int64

	hits      atomic.Uint64
	misses    atomic.Uint64
	bytes     atomic.Int64
	entries   atomic.Int64
	evictions atomic.Uint64

	metrics metricsSink
	logger  *zap.Logger
	now     func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemory constructs a memory tier bounded by limitBytes (> 0).
func NewMemory(limitBytes int64, opts ...Option) (*MemoryCache, error) {
	if limitBytes <= 0 {
		return nil, errInvalidMemoryLimit
	}
	cfg := defaultConfig()
	cfg.memoryLimit = limitBytes
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}
	return newMemory(cfg), nil
}

// newMemory builds the tier from an already validated config.  The hybrid
// constructor calls this directly so one option slice configures both
// tiers.
func newMemory(cfg *config) *MemoryCache {
	return &MemoryCache{
		ll:      lru.New(cfg.memoryLimit),
		limit:   cfg.memoryLimit,
		metrics: cfg.metricsSink(),
		logger:  cfg.logger.Named("memory"),
		now:     cfg.now,
	}
}

// Get returns the cached value, bumping the entry to most-recently-used.
// The returned slice is the stored one — callers must not mutate it.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	ent, ok := m.ll.Get(key)
	m.mu.Unlock()

	if !ok {
		m.misses.Add(1)
		m.metrics.incMiss(tierMemory)
		return nil, false
	}
	m.hits.Add(1)
	m.metrics.incHit(tierMemory)
	return ent.Value, true
}

// Set admits value, evicting least-recently-used entries until it fits.
// A value larger than the tier limit fails with ErrCacheFull and leaves
// the tier untouched.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	evicted, ok := m.ll.Put(&lru.Entry{Key: key, Value: value, Added: m.now()})
	if ok {
		m.syncGaugesLocked()
	}
	m.mu.Unlock()

	if !ok {
		return ErrCacheFull
	}
	for range evicted {
		m.evictions.Add(1)
		m.metrics.incEvict(tierMemory)
	}
	return nil
}

// Remove deletes key; removing an absent key succeeds.
func (m *MemoryCache) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	if _, removed := m.ll.Remove(key); removed {
		m.syncGaugesLocked()
	}
	m.mu.Unlock()
	return nil
}

// Clear drops every entry.  Hit/miss counters are preserved.
func (m *MemoryCache) Clear(_ context.Context) error {
	m.mu.Lock()
	m.ll.Clear()
	m.syncGaugesLocked()
	m.mu.Unlock()
	return nil
}

// Size returns resident bytes without taking the tier lock.
func (m *MemoryCache) Size() int64 { return m.bytes.Load() }

// Stats returns the counter snapshot without taking the tier lock.
func (m *MemoryCache) Stats() Stats {
	return Stats{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Bytes:   m.bytes.Load(),
		Entries: m.entries.Load(),
	}
}

// contains reports residency without touching recency order or counters.
// Used by the hybrid's maintenance pass.
func (m *MemoryCache) contains(key string) bool {
	m.mu.Lock()
	_, ok := m.ll.Peek(key)
	m.mu.Unlock()
	return ok
}

// syncGaugesLocked mirrors the list's accounting into the atomics.  Caller
// holds m.mu, so mirror updates publish in mutation order and the mirrors
// never drift from the list.
func (m *MemoryCache) syncGaugesLocked() {
	bytes, count := m.ll.Bytes(), int64(m.ll.Len())
	m.bytes.Store(bytes)
	m.entries.Store(count)
	m.metrics.setBytes(tierMemory, bytes)
	m.metrics.setEntries(tierMemory, count)
}
