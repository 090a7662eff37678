// Package badgerstore adapts an embedded BadgerDB to the tier-cache
// Backend contract.  It stands in for a network object store in tests and
// single-node deployments: same byte-key/byte-value surface,
// same authoritative-source semantics, no network.
//
// All optional wrapper surfaces are implemented: prefix listing via a
// Badger prefix iterator and bulk erase via DropPrefix.
//
// © 2025 tier-cache authors. MIT License.
package badgerstore

import (
	"context"
	"errors"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	cache "github.com/Voskan/tier-cache/pkg"
)

// Store is a Badger-backed Backend.
type Store struct {
	db *badger.DB
}

var (
	_ cache.Backend      = (*Store)(nil)
	_ cache.Lister       = (*Store)(nil)
	_ cache.PrefixEraser = (*Store)(nil)
)

// Open opens (or creates) a Badger database under dir.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the value for key, or found=false when absent.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Erase deletes key.  Deleting an absent key succeeds.
func (s *Store) Erase(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// ErasePrefix drops every key under prefix in one pass.
func (s *Store) ErasePrefix(_ context.Context, prefix string) error {
	return s.db.DropPrefix([]byte(prefix))
}

/*
   ---------------- Listing ----------------
*/

// List returns every key in the store.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.ListPrefix(ctx, "")
}

// ListPrefix returns every key starting with prefix.
func (s *Store) ListPrefix(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// ListDir returns the immediate children of prefix: keys directly under
// it, plus first-level "directories" (collapsed at the next separator,
// reported with a trailing slash), each at most once.
func (s *Store) ListDir(ctx context.Context, prefix string) ([]string, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	keys, err := s.ListPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []string
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i+1]
		}
		child := prefix + rest
		if _, dup := seen[child]; dup {
			continue
		}
		seen[child] = struct{}{}
		out = append(out, child)
	}
	return out, nil
}
