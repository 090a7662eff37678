// Package keyhash derives stable on-disk names from cache keys.
//
// The disk tier stores each entry under a fixed-width hex name computed
// from the key.  xxhash-64 is used: deterministic within and across
// processes, fast, and collision-resistant enough in practice.  The tier's
// metadata records the original key, so the rare collision is detected at
// lookup rather than papered over here; cryptographic strength buys
// nothing.
//
// © 2025 tier-cache authors. MIT License.
package keyhash

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Sum returns the 64-bit hash of key.
func Sum(key string) uint64 { return xxhash.Sum64String(key) }

// Name returns the fixed-width (16 hex digit) file stem for key.
func Name(key string) string { return fmt.Sprintf("%016x", Sum(key)) }

// Valid reports whether key passes structural validation: non-empty and
// free of NUL bytes.  Path separators are fine; keys never reach the
// filesystem verbatim.
func Valid(key string) bool {
	return key != "" && !strings.ContainsRune(key, 0)
}
