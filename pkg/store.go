package cache

// store.go implements the caching store wrapper: a read-through /
// write-through front end over a pluggable storage backend (the
// authoritative source of truth), parametric over any Cache
// implementation.
//
// The read-through path is deduplicated with x/sync/singleflight: when many
// goroutines miss on the same key simultaneously, only one backend fetch
// executes and every waiter shares its result.  The thundering-herd risk
// lives here — the backend is the expensive hop — so this is where the
// suppression belongs.
//
// Cache errors on either path are non-fatal: the wrapper logs and proceeds,
// degrading to unaccelerated backend access.  Backend errors are propagated
// verbatim.
//
// © 2025 tier-cache authors. MIT License.

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Backend is the minimal contract of the authoritative store.  Get
// distinguishes absence (found=false, err=nil) from failure.  Implement
// Lister and PrefixEraser for the optional listing and prefix-erase
// surfaces.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Erase(ctx context.Context, key string) error
}

// Lister is the optional listing surface, passed through unmodified.
type Lister interface {
	List(ctx context.Context) ([]string, error)
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
	ListDir(ctx context.Context, prefix string) ([]string, error)
}

// PrefixEraser is the optional bulk-erase surface.
type PrefixEraser interface {
	ErasePrefix(ctx context.Context, prefix string) error
}

// ErrNotSupported reports that the wrapped backend lacks an optional
// surface (listing, prefix erase).
var ErrNotSupported = errors.New("tier-cache: operation not supported by backend")

// CachedStore fronts a Backend with a Cache.
type CachedStore struct {
	backend Backend
	cache   Cache
	worthy  Worthiness
	logger  *zap.Logger
	flight  singleflight.Group
}

// NewCachedStore wraps backend with the given cache.  WithWorthiness
// overrides the key classifier (DefaultWorthiness by default), WithLogger
// the logger.
func NewCachedStore(backend Backend, c Cache, opts ...Option) (*CachedStore, error) {
	if backend == nil {
		return nil, errors.New("backend must not be nil")
	}
	if c == nil {
		return nil, errors.New("cache must not be nil")
	}
	cfg := defaultConfig()
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}
	return &CachedStore{
		backend: backend,
		cache:   c,
		worthy:  cfg.worthy,
		logger:  cfg.logger.Named("store"),
	}, nil
}

// fetchResult carries a backend response through singleflight.
type fetchResult struct {
	value []byte
	found bool
}

// Get is the read-through path: cache hit, else a deduplicated backend
// fetch whose result populates the cache best-effort.  Keys classified as
// not cache-worthy bypass the cache entirely.
func (s *CachedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !s.worthy(key) {
		return s.backend.Get(ctx, key)
	}

	if v, ok := s.cache.Get(ctx, key); ok {
		return v, true, nil
	}

	res, err, _ := s.flight.Do(key, func() (any, error) {
		v, found, err := s.backend.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			if cerr := s.cache.Set(ctx, key, v); cerr != nil {
				s.logger.Warn("cache populate failed",
					zap.String("key", key), zap.Error(cerr))
			}
		}
		return fetchResult{value: v, found: found}, nil
	})
	if err != nil {
		return nil, false, err
	}
	fr := res.(fetchResult)
	return fr.value, fr.found, nil
}

// Set is the write-through path: the backend first (authoritative), then
// the cache when the key is cache-worthy.  A cache admission failure never
// fails a write the backend accepted.
func (s *CachedStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.backend.Set(ctx, key, value); err != nil {
		return err
	}
	if s.worthy(key) {
		if cerr := s.cache.Set(ctx, key, value); cerr != nil {
			s.logger.Warn("write-through cache update failed",
				zap.String("key", key), zap.Error(cerr))
		}
	}
	return nil
}

// Erase removes key from the backend and then from the cache.  The cache
// removal must succeed before Erase reports success — otherwise a stale
// cached value could outlive the authoritative delete.
func (s *CachedStore) Erase(ctx context.Context, key string) error {
	if err := s.backend.Erase(ctx, key); err != nil {
		return err
	}
	return s.cache.Remove(ctx, key)
}

// ErasePrefix removes every backend key under prefix, then conservatively
// clears the whole cache: the tiers cannot enumerate matching keys, so
// clearing everything is the only way to guarantee no survivor.
func (s *CachedStore) ErasePrefix(ctx context.Context, prefix string) error {
	switch be := s.backend.(type) {
	case PrefixEraser:
		if err := be.ErasePrefix(ctx, prefix); err != nil {
			return err
		}
	case Lister:
		keys, err := be.ListPrefix(ctx, prefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := s.backend.Erase(ctx, k); err != nil {
				return err
			}
		}
	default:
		return ErrNotSupported
	}
	return s.cache.Clear(ctx)
}

/*
   ---------------- Listing passthrough ----------------
*/

// List passes through to the backend's listing surface.
func (s *CachedStore) List(ctx context.Context) ([]string, error) {
	if l, ok := s.backend.(Lister); ok {
		return l.List(ctx)
	}
	return nil, ErrNotSupported
}

// ListPrefix passes through to the backend's listing surface.
func (s *CachedStore) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	if l, ok := s.backend.(Lister); ok {
		return l.ListPrefix(ctx, prefix)
	}
	return nil, ErrNotSupported
}

// ListDir passes through to the backend's listing surface.
func (s *CachedStore) ListDir(ctx context.Context, prefix string) ([]string, error) {
	if l, ok := s.backend.(Lister); ok {
		return l.ListDir(ctx, prefix)
	}
	return nil, ErrNotSupported
}

// CacheStats exposes the wrapped cache's statistics feed for the analytics
// layer.
func (s *CachedStore) CacheStats() Stats { return s.cache.Stats() }
