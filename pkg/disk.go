package cache

// disk.go implements the on-disk tier (L2).
//
// Layout: each entry occupies two files under the configured root, named by
// the 16-hex-digit xxhash of the key:
//
//	<root>/data/<h>.bin   raw value bytes
//	<root>/meta/<h>.json  metadata record (original key, size, creation
//	                      time, optional expiry, format version)
//
// Writers always write to a sibling .tmp file and rename atomically, so a
// process dying mid-write can never leave a torn file observable.  The
// metadata records the original key so a lookup hit is verified against
// hash collisions.
//
// Clean slate: construction removes everything under the root and recreates
// it.  This is load-bearing — an interrupted previous run must never serve
// stale or truncated files, and the backend stays authoritative.
//
// Concurrency model
// -----------------
// File-level operations are serialised per key by striped locks
// (internal/keylock).  The in-memory metadata index and its byte accounting
// sit behind one mutex; Size()/Stats() read atomic mirrors.  Capacity
// eviction removes victim files while holding only the index mutex: unlink
// is atomic, so a concurrent reader of the victim either sees the whole
// value or a clean miss.
//
// © 2025 tier-cache authors. MIT License.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Voskan/tier-cache/internal/keyhash"
	"github.com/Voskan/tier-cache/internal/keylock"
)

// metaVersion tags the on-disk metadata format.
const metaVersion = 1

// lockStripes bounds per-key lock memory; distinct keys sharing a stripe
// merely contend.
const lockStripes = 256

// diskMeta is the JSON metadata record written next to every value file.
type diskMeta struct {
	Version int        `json:"version"`
	Key     string     `json:"key"`
	Size    int64      `json:"size"`
	Created time.Time  `json:"created"`
	Expires *time.Time `json:"expires,omitempty"`
}

func (m *diskMeta) expired(now time.Time) bool {
	return m.Expires != nil && now.After(*m.Expires)
}

// DiskCache is the persistent, size-bounded, TTL-aware disk tier.
type DiskCache struct {
	root    string
	dataDir string
	metaDir string
	limit   int64         // 0 = unlimited
	ttl     time.Duration // 0 = no expiry

	mu       sync.Mutex
	index    map[string]*diskMeta // file stem -> metadata mirror
	curBytes int64

	locks *keylock.Striped

	hits      atomic.Uint64
	misses    atomic.Uint64
	bytes     atomic.Int64
	entries   atomic.Int64
	evictions atomic.Uint64

	metrics metricsSink
	logger  *zap.Logger
	now     func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ Cache = (*DiskCache)(nil)

// NewDisk constructs a disk tier rooted at dir, wipes the root (clean
// slate), and starts the periodic maintenance sweep.  Stop it with Close.
func NewDisk(dir string, opts ...Option) (*DiskCache, error) {
	cfg := defaultConfig()
	cfg.diskRoot = dir
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}
	return newDisk(cfg, true)
}

// newDisk builds the tier from a validated config.  The hybrid passes
// runLoop=false and drives Sweep from its own maintenance loop.
func newDisk(cfg *config, runLoop bool) (*DiskCache, error) {
	if cfg.diskRoot == "" {
		return nil, errors.New("disk root must not be empty")
	}

	d := &DiskCache{
		root:    cfg.diskRoot,
		dataDir: filepath.Join(cfg.diskRoot, "data"),
		metaDir: filepath.Join(cfg.diskRoot, "meta"),
		limit:   cfg.diskLimit,
		ttl:     cfg.ttl,
		index:   make(map[string]*diskMeta),
		locks:   keylock.New(lockStripes),
		metrics: cfg.metricsSink(),
		logger:  cfg.logger.Named("disk"),
		now:     cfg.now,
	}

	if err := d.cleanSlate(); err != nil {
		return nil, err
	}
	d.logger.Info("disk tier initialised",
		zap.String("root", d.root),
		zap.Int64("limit_bytes", d.limit),
		zap.Duration("ttl", d.ttl))

	if runLoop {
		d.stop = make(chan struct{})
		d.done = make(chan struct{})
		go d.loop(cfg.sweepEvery)
	}
	return d, nil
}

// cleanSlate wipes the root and recreates the data/meta directories.
func (d *DiskCache) cleanSlate() error {
	if err := os.RemoveAll(d.root); err != nil {
		return fmt.Errorf("%w: clean slate %s: %v", ErrIO, d.root, err)
	}
	for _, dir := range []string{d.dataDir, d.metaDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", ErrIO, dir, err)
		}
	}
	return nil
}

// Close stops the maintenance loop.  Safe to call more than once; a tier
// owned by a hybrid has no loop of its own and Close is a no-op.
func (d *DiskCache) Close() {
	d.closeOnce.Do(func() {
		if d.stop != nil {
			close(d.stop)
			<-d.done
		}
	})
}

func (d *DiskCache) loop(every time.Duration) {
	defer close(d.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			if err := d.Sweep(context.Background()); err != nil {
				d.logger.Warn("maintenance sweep failed", zap.Error(err))
			}
		}
	}
}

/*
   ---------------- Cache contract ----------------
*/

// Get reads the metadata file, validates expiry and the original key
// (hash-collision guard), then reads the value file.  Any failure along
// the way is a miss; expired entries are reclaimed on the spot.
func (d *DiskCache) Get(_ context.Context, key string) ([]byte, bool) {
	if !keyhash.Valid(key) {
		return d.miss()
	}
	h := keyhash.Sum(key)
	name := keyhash.Name(key)

	d.locks.Lock(h)
	defer d.locks.Unlock(h)

	meta, err := d.readMeta(name)
	if err != nil {
		return d.miss()
	}
	if meta.expired(d.now()) {
		d.dropEntry(name)
		return d.miss()
	}
	if meta.Key != key {
		return d.miss()
	}

	data, err := os.ReadFile(d.dataPath(name))
	if err != nil {
		// Metadata without data: half an entry, reclaim it.
		d.dropEntry(name)
		return d.miss()
	}

	d.hits.Add(1)
	d.metrics.incHit(tierDisk)
	return data, true
}

// Set admits a value, evicting expired-first then oldest-created entries
// until the new total fits, and writes both files atomically.
func (d *DiskCache) Set(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	size := int64(len(value))
	if d.limit > 0 && size > d.limit {
		return ErrCacheFull
	}

	h := keyhash.Sum(key)
	name := keyhash.Name(key)

	meta := &diskMeta{
		Version: metaVersion,
		Key:     key,
		Size:    size,
		Created: d.now(),
	}
	if d.ttl > 0 {
		exp := meta.Created.Add(d.ttl)
		meta.Expires = &exp
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: encode meta for %q: %v", ErrSerialization, key, err)
	}

	d.evictFor(name, size)

	d.locks.Lock(h)
	defer d.locks.Unlock(h)

	if err := writeFileAtomic(d.dataPath(name), value); err != nil {
		return err
	}
	if err := writeFileAtomic(d.metaPath(name), encoded); err != nil {
		// Data without metadata is unreachable; do not leave it behind.
		_ = os.Remove(d.dataPath(name))
		return err
	}

	d.mu.Lock()
	if old, ok := d.index[name]; ok {
		d.curBytes -= old.Size
	}
	d.index[name] = meta
	d.curBytes += size
	d.syncGaugesLocked()
	d.mu.Unlock()
	return nil
}

// Remove deletes key's files.  Removing an absent key succeeds.
func (d *DiskCache) Remove(_ context.Context, key string) error {
	if !keyhash.Valid(key) {
		return nil
	}
	h := keyhash.Sum(key)
	name := keyhash.Name(key)

	d.locks.Lock(h)
	defer d.locks.Unlock(h)
	return d.dropEntry(name)
}

// Clear removes every entry.  Partial failure is reported; surviving
// entries stay indexed and the tier stays usable.
func (d *DiskCache) Clear(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for name, meta := range d.index {
		if err := d.unlinkPair(name); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		d.curBytes -= meta.Size
		delete(d.index, name)
	}
	d.syncGaugesLocked()
	return firstErr
}

// Size returns resident value bytes without taking the index lock.
func (d *DiskCache) Size() int64 { return d.bytes.Load() }

// Stats returns the counter snapshot without taking the index lock.
func (d *DiskCache) Stats() Stats {
	return Stats{
		Hits:    d.hits.Load(),
		Misses:  d.misses.Load(),
		Bytes:   d.bytes.Load(),
		Entries: d.entries.Load(),
	}
}

// contains reports unexpired residency from the index alone.  Used by the
// hybrid's maintenance pass; does not touch counters or files.
func (d *DiskCache) contains(key string) bool {
	name := keyhash.Name(key)
	d.mu.Lock()
	meta, ok := d.index[name]
	expired := ok && meta.expired(d.now())
	d.mu.Unlock()
	return ok && !expired
}

/*
   ---------------- Maintenance ----------------
*/

// Sweep enumerates the metadata, removes expired entries, and if the total
// still exceeds the configured limit evicts oldest-created entries until
// within bound.  Errors on individual entries are logged and the entries
// dropped best-effort.
func (d *DiskCache) Sweep(_ context.Context) error {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for name, meta := range d.index {
		if meta.expired(now) {
			if err := d.unlinkPair(name); err != nil {
				d.logger.Warn("failed to reclaim expired entry",
					zap.String("key", meta.Key), zap.Error(err))
			}
			d.curBytes -= meta.Size
			delete(d.index, name)
			d.evictions.Add(1)
			d.metrics.incEvict(tierDisk)
			removed++
		}
	}

	for d.limit > 0 && d.curBytes > d.limit {
		name, meta := d.oldestLocked("")
		if meta == nil {
			break
		}
		if err := d.unlinkPair(name); err != nil {
			d.logger.Warn("failed to evict entry",
				zap.String("key", meta.Key), zap.Error(err))
		}
		d.curBytes -= meta.Size
		delete(d.index, name)
		d.evictions.Add(1)
		d.metrics.incEvict(tierDisk)
		removed++
	}

	d.syncGaugesLocked()
	if removed > 0 {
		d.logger.Debug("sweep reclaimed entries",
			zap.Int("removed", removed),
			zap.Int64("resident_bytes", d.curBytes))
	}
	return nil
}

/*
   ---------------- Internals ----------------
*/

func (d *DiskCache) dataPath(name string) string {
	return filepath.Join(d.dataDir, name+".bin")
}

func (d *DiskCache) metaPath(name string) string {
	return filepath.Join(d.metaDir, name+".json")
}

func (d *DiskCache) miss() ([]byte, bool) {
	d.misses.Add(1)
	d.metrics.incMiss(tierDisk)
	return nil, false
}

func (d *DiskCache) readMeta(name string) (*diskMeta, error) {
	raw, err := os.ReadFile(d.metaPath(name))
	if err != nil {
		return nil, fmt.Errorf("%w: read meta %s: %v", ErrIO, name, err)
	}
	var meta diskMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode meta %s: %v", ErrSerialization, name, err)
	}
	return &meta, nil
}

// dropEntry removes the entry's files and index record.  Caller holds the
// key's stripe.
func (d *DiskCache) dropEntry(name string) error {
	err := d.unlinkPair(name)

	d.mu.Lock()
	if meta, ok := d.index[name]; ok {
		d.curBytes -= meta.Size
		delete(d.index, name)
		d.syncGaugesLocked()
	}
	d.mu.Unlock()
	return err
}

// unlinkPair removes both files, tolerating absence.
func (d *DiskCache) unlinkPair(name string) error {
	var firstErr error
	for _, p := range []string{d.dataPath(name), d.metaPath(name)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: remove %s: %v", ErrIO, p, err)
			}
		}
	}
	return firstErr
}

// evictFor frees room for an incoming value of the given size, treating a
// replacement of excludeName as reclaiming its old bytes.  Expired entries
// go first, then oldest-created (approximate LRU; precise order is not
// required on disk).
func (d *DiskCache) evictFor(excludeName string, size int64) {
	if d.limit <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	projected := d.curBytes + size
	if old, ok := d.index[excludeName]; ok {
		projected -= old.Size
	}

	now := d.now()
	for projected > d.limit {
		name, meta := d.victimLocked(excludeName, now)
		if meta == nil {
			break
		}
		if err := d.unlinkPair(name); err != nil {
			d.logger.Warn("failed to evict entry",
				zap.String("key", meta.Key), zap.Error(err))
		}
		d.curBytes -= meta.Size
		projected -= meta.Size
		delete(d.index, name)
		d.evictions.Add(1)
		d.metrics.incEvict(tierDisk)
	}
	d.syncGaugesLocked()
}

// victimLocked picks the next eviction victim: any expired entry wins,
// otherwise the oldest by creation time.  Caller holds d.mu.
func (d *DiskCache) victimLocked(exclude string, now time.Time) (string, *diskMeta) {
	for name, meta := range d.index {
		if name != exclude && meta.expired(now) {
			return name, meta
		}
	}
	return d.oldestLocked(exclude)
}

// oldestLocked returns the entry with the earliest creation time.  Caller
// holds d.mu.
func (d *DiskCache) oldestLocked(exclude string) (string, *diskMeta) {
	var (
		oldestName string
		oldest     *diskMeta
	)
	for name, meta := range d.index {
		if name == exclude {
			continue
		}
		if oldest == nil || meta.Created.Before(oldest.Created) {
			oldestName, oldest = name, meta
		}
	}
	return oldestName, oldest
}

func (d *DiskCache) syncGaugesLocked() {
	d.bytes.Store(d.curBytes)
	d.entries.Store(int64(len(d.index)))
	d.metrics.setBytes(tierDisk, d.curBytes)
	d.metrics.setEntries(tierDisk, int64(len(d.index)))
}

// writeFileAtomic writes data to a sibling .tmp file and renames it into
// place, so readers never observe a torn file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", ErrIO, path, err)
	}
	return nil
}
