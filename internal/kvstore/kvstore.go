// Package kvstore implements the opaque storage boundary spec.md's
// ambient stack requires: a crash-safe key-value store used only for
// session sequence-number checkpoints and the order-index snapshot, never
// for fills, ledgers, or strategy state.
package kvstore

import (
	"bytes"

	"github.com/cockroachdb/pebble"
)

// Store is the narrow persistence surface the Core depends on. A prefix
// scan returns its entries as a map keyed by the full key (prefix
// included), so the result carries no key order.
type Store interface {
	Get(key []byte) ([]byte, bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Scan(prefix []byte) (map[string][]byte, error)
	Close() error
}

// PebbleStore is a Store backed by cockroachdb/pebble, synced on every
// write so a crash never loses an acknowledged checkpoint.
type PebbleStore struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database rooted at path.
func Open(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) Get(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (s *PebbleStore) Set(key, value []byte) error {
	return s.db.Set(key, value, pebble.Sync)
}

func (s *PebbleStore) Delete(key []byte) error {
	return s.db.Delete(key, pebble.Sync)
}

// Scan returns every key/value pair whose key has prefix, keyed by the
// full key (prefix included) as a string.
func (s *PebbleStore) Scan(prefix []byte) (map[string][]byte, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[string][]byte)
	for iter.First(); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		val := append([]byte(nil), iter.Value()...)
		out[string(key)] = val
	}
	return out, iter.Error()
}

// keyUpperBound returns the exclusive upper bound of a prefix scan: the
// prefix with its final byte incremented, trailing 0xff bytes carrying into
// the byte before them. A prefix made only of 0xff bytes (or an empty one)
// yields nil, meaning no upper bound.
func keyUpperBound(prefix []byte) []byte {
	bound := bytes.Clone(prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		bound[i]++
		if bound[i] != 0 {
			return bound
		}
	}
	return nil
}
