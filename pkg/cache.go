package cache

// cache.go declares the public cache contract shared by every tier of
// tier-cache: the in-memory LRU tier, the on-disk tier, and the hybrid
// controller composing the two.  The caching store wrapper (store.go) is
// parametric over any implementation of this contract.
//
// Semantics in brief:
//   • Get never fails — absence is reported by the boolean, and a present
//     zero-length value is distinguishable from a missing key.
//   • Set reports *why* a value was not admitted (ErrCacheFull, ErrIO,
//     ErrInvalidKey) instead of silently dropping it.
//   • Remove and Clear are idempotent.
//   • Size and Stats are wait-free snapshots of atomic counters; they never
//     take the tier lock and never suspend.
//
// All operations are safe for concurrent use from any number of
// goroutines.
//
// © 2025 tier-cache authors. MIT License.

import (
	"context"
	"errors"

	"github.com/Voskan/tier-cache/internal/keyhash"
)

// Stats is a point-in-time counter snapshot, returned by value.
//
// Hits+Misses equals the number of Get calls on the contract instance
// since construction; Clear resets Bytes and Entries but not the
// cumulative hit/miss counters.  For the hybrid cache, Bytes and Entries
// sum over both tiers, so a key resident in memory *and* on disk counts
// twice in Entries.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Bytes   int64
	Entries int64
}

// Cache is the uniform contract implemented by every tier.
//
// Values are immutable byte blobs.  Get returns a handle on the stored
// slice, not a copy; callers must not mutate it.  Symmetrically, Set takes
// ownership of the provided slice and the caller must not write to it
// afterwards.
type Cache interface {
	// Get returns the value for key, or ok=false when absent.  It never
	// fails: any internal error is accounted as a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool)

	// Set admits a value.  A single value larger than the tier's capacity
	// fails with ErrCacheFull; structural key problems fail with
	// ErrInvalidKey; disk tiers may fail with an error wrapping ErrIO.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key.  Removing an absent key succeeds.
	Remove(ctx context.Context, key string) error

	// Clear removes every entry and resets byte accounting.  Cumulative
	// hit/miss counters are preserved.  On partial failure the tier stays
	// usable, possibly non-empty.
	Clear(ctx context.Context) error

	// Size returns the resident bytes.
	Size() int64

	// Stats returns the counter snapshot.
	Stats() Stats
}

/*
   ---------------- Error taxonomy ----------------
*/

var (
	// ErrCacheFull reports that a single value exceeds the tier's
	// capacity.  A normal condition, not a fault: callers on the
	// write-through path log and move on.
	ErrCacheFull = errors.New("tier-cache: value exceeds cache capacity")

	// ErrIO wraps filesystem failures in the disk tier.  Inspect with
	// errors.Is; the underlying detail stays in the message.
	ErrIO = errors.New("tier-cache: i/o failure")

	// ErrSerialization reports that an entry metadata record could not be
	// encoded or decoded.
	ErrSerialization = errors.New("tier-cache: metadata serialization")

	// ErrInvalidKey reports a key failing structural validation (empty,
	// or containing a NUL byte).
	ErrInvalidKey = errors.New("tier-cache: invalid key")
)

// validateKey applies the structural rule shared by all tiers.
func validateKey(key string) error {
	if !keyhash.Valid(key) {
		return ErrInvalidKey
	}
	return nil
}
