package cache

// config.go defines the internal configuration object and the functional
// options accepted by the tier constructors (NewMemory, NewDisk, New) and
// by NewCachedStore.
//
// Design notes
// ------------
// • All fields are initialised with sensible defaults in defaultConfig().
// • Options never allocate unless strictly necessary — they just capture
//   pointers to external objects (registry, logger, clock, predicate).
// • The struct is hidden from the public API: callers influence behaviour
//   only via Option, which keeps the surface forward-compatible.
// • Each constructor reads the slice of knobs that concerns it; an option
//   that is irrelevant to a given constructor is simply ignored (e.g.
//   WithDiskLimit on NewMemory).
//
// © 2025 tier-cache authors. MIT License.

import (
	"errors"
	"path"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Worthiness classifies keys for the caching store wrapper: true means the
// wrapper interacts with the cache for this key, false bypasses the cache
// entirely.
type Worthiness func(key string) bool

// DefaultWorthiness tracks the data model of zarr-like chunked arrays:
// chunk data, array descriptors (".zarray") and attribute descriptors
// (".zattrs") are cached; group descriptors (".zgroup") are not — they are
// read once during tree discovery and rarely again.
func DefaultWorthiness(key string) bool {
	return path.Base(strings.TrimSuffix(key, "/")) != ".zgroup"
}

// Option is a functional option passed to the constructors.
type Option func(*config)

// config bundles every knob.  Fields are immutable once a tier is
// constructed; live mutation would complicate the correctness story for no
// demonstrated need.
type config struct {
	memoryLimit int64

	// disk tier
	diskRoot  string
	diskLimit int64 // 0 = unlimited
	ttl       time.Duration

	// hybrid policy
	promotionHz  float64       // decayed Hz at or above which a disk hit is promoted
	demotionIdle time.Duration // idle span after which a memory resident is demoted
	sweepEvery   time.Duration // maintenance period
	alpha        float64       // frequency smoothing constant

	// wrapper
	worthy Worthiness

	// ambient
	registry *prometheus.Registry
	logger   *zap.Logger
	now      func() time.Time

	// sink is built lazily and shared by every tier constructed from this
	// config: Prometheus rejects registering the same collectors twice.
	sink metricsSink
}

func (c *config) metricsSink() metricsSink {
	if c.sink == nil {
		c.sink = newMetricsSink(c.registry)
	}
	return c.sink
}

func defaultConfig() *config {
	return &config{
		diskLimit:    0,
		promotionHz:  0.5,
		demotionIdle: 5 * time.Minute,
		sweepEvery:   time.Minute,
		alpha:        0.3,
		worthy:       DefaultWorthiness,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
}

/*
   ---------------- Functional options ----------------
*/

// WithDisk enables the disk tier rooted at dir.  The directory is wiped on
// construction (clean slate) and recreated.
func WithDisk(dir string) Option {
	return func(c *config) { c.diskRoot = dir }
}

// WithDiskLimit bounds the disk tier's total value bytes.  Zero (the
// default) means unlimited.
func WithDiskLimit(n int64) Option {
	return func(c *config) { c.diskLimit = n }
}

// WithTTL applies a per-entry expiry to disk admissions.  Zero disables
// expiry.
func WithTTL(d time.Duration) Option {
	return func(c *config) { c.ttl = d }
}

// WithPromotionThreshold sets the minimum decayed access frequency (Hz)
// at which a disk hit is promoted into memory.
func WithPromotionThreshold(hz float64) Option {
	return func(c *config) { c.promotionHz = hz }
}

// WithDemotionThreshold sets the idle duration after which a memory
// resident becomes a demotion candidate.
func WithDemotionThreshold(d time.Duration) Option {
	return func(c *config) { c.demotionIdle = d }
}

// WithMaintenanceInterval sets the period of the background sweep.
func WithMaintenanceInterval(d time.Duration) Option {
	return func(c *config) { c.sweepEvery = d }
}

// WithSmoothing overrides the frequency smoothing constant α ∈ (0, 1].
// Larger values weight recent accesses more heavily.
func WithSmoothing(alpha float64) Option {
	return func(c *config) { c.alpha = alpha }
}

// WithWorthiness injects the cache-worthiness classifier used by the
// caching store wrapper.
func WithWorthiness(fn Worthiness) Option {
	return func(c *config) {
		if fn != nil {
			c.worthy = fn
		}
	}
}

// WithMetrics enables Prometheus metrics on the given registry.  Passing
// nil disables metrics (default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithLogger plugs an external zap.Logger.  The cache never logs on the
// hot path; only slow events (sweeps, non-fatal wrapper errors, clean
// slate) are emitted.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock injects the time source.  Tests use it to drive TTL expiry and
// frequency decay deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

/*
   ---------------- Apply & validate ----------------
*/

func applyOptions(cfg *config, opts []Option) error {
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.memoryLimit < 0 {
		return errInvalidMemoryLimit
	}
	if cfg.diskLimit < 0 {
		return errInvalidDiskLimit
	}
	if cfg.ttl < 0 {
		return errInvalidTTL
	}
	if cfg.alpha <= 0 || cfg.alpha > 1 {
		return errInvalidSmoothing
	}
	if cfg.sweepEvery <= 0 {
		return errInvalidInterval
	}
	if cfg.promotionHz < 0 {
		return errInvalidThreshold
	}
	if cfg.demotionIdle <= 0 {
		return errInvalidThreshold
	}
	return nil
}

var (
	errInvalidMemoryLimit = errors.New("memory limit bytes must be > 0")
	errInvalidDiskLimit   = errors.New("disk limit bytes must be >= 0")
	errInvalidTTL         = errors.New("ttl must be >= 0")
	errInvalidSmoothing   = errors.New("smoothing constant must be in (0, 1]")
	errInvalidInterval    = errors.New("maintenance interval must be > 0")
	errInvalidThreshold   = errors.New("promotion threshold must be >= 0 and demotion threshold > 0")
)
