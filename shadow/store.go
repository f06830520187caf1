// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package shadow keeps the clear-text value of every ciphertext handle seen
// during one evaluation run.
package shadow

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
)

// recordLen is one used-flag byte followed by a 32-byte big-endian value.
const recordLen = 1 + 32

var (
	ErrClosed        = errors.New("shadow store closed")
	ErrValueOverflow = errors.New("clear-text value wider than 256 bits")
	ErrCorrupt       = errors.New("corrupt shadow record")
)

// Entry is the clear-text state of one handle.
type Entry struct {
	Handle common.Hash
	Value  *big.Int
	Used   bool
}

// Store maps handles to clear-text values. It is owned by a single run and
// must not be shared between goroutines.
type Store struct {
	db     database.Database
	closed bool
}

// New opens an empty in-memory store.
func New() *Store {
	return Open(memdb.New())
}

// Open adopts db as the backing database. Close closes it.
func Open(db database.Database) *Store {
	return &Store{db: db}
}

// Close discards the store and its backing database.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Put inserts or overwrites the value of h.
func (s *Store) Put(h common.Hash, value *big.Int, used bool) error {
	if s.closed {
		return ErrClosed
	}
	rec, err := encode(value, used)
	if err != nil {
		return fmt.Errorf("put %s: %w", h.Hex(), err)
	}
	return s.db.Put(h[:], rec)
}

// Get returns the value of h, or zero when h was never written.
func (s *Store) Get(h common.Hash) (*big.Int, error) {
	e, _, err := s.Entry(h)
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

// Entry returns the full record of h and whether it exists. A missing handle
// yields a zero-valued, unused entry.
func (s *Store) Entry(h common.Hash) (Entry, bool, error) {
	if s.closed {
		return Entry{}, false, ErrClosed
	}
	rec, err := s.db.Get(h[:])
	if errors.Is(err, database.ErrNotFound) {
		return Entry{Handle: h, Value: new(big.Int)}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	value, used, err := decode(rec)
	if err != nil {
		return Entry{}, false, fmt.Errorf("entry %s: %w", h.Hex(), err)
	}
	return Entry{Handle: h, Value: value, Used: used}, true, nil
}

// Has reports whether h was ever written.
func (s *Store) Has(h common.Hash) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	return s.db.Has(h[:])
}

// MarkUsed flags an existing handle as consumed. It reports whether h existed.
func (s *Store) MarkUsed(h common.Hash) (bool, error) {
	e, ok, err := s.Entry(h)
	if err != nil || !ok {
		return false, err
	}
	return true, s.Put(h, e.Value, true)
}

// Entries returns every record sorted by handle bytes.
func (s *Store) Entries() ([]Entry, error) {
	if s.closed {
		return nil, ErrClosed
	}
	it := s.db.NewIterator()
	defer it.Release()

	var out []Entry
	for it.Next() {
		value, used, err := decode(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{
			Handle: common.BytesToHash(it.Key()),
			Value:  value,
			Used:   used,
		})
	}
	return out, it.Error()
}

// Len returns the number of stored handles.
func (s *Store) Len() (int, error) {
	entries, err := s.Entries()
	return len(entries), err
}

func encode(value *big.Int, used bool) ([]byte, error) {
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %s", ErrValueOverflow, value)
	}
	v, overflow := uint256.FromBig(value)
	if overflow {
		return nil, ErrValueOverflow
	}
	rec := make([]byte, recordLen)
	if used {
		rec[0] = 1
	}
	word := v.Bytes32()
	copy(rec[1:], word[:])
	return rec, nil
}

func decode(rec []byte) (*big.Int, bool, error) {
	if len(rec) != recordLen || rec[0] > 1 {
		return nil, false, ErrCorrupt
	}
	v := new(uint256.Int).SetBytes(rec[1:])
	if v.IsZero() {
		return new(big.Int), rec[0] == 1, nil
	}
	return v.ToBig(), rec[0] == 1, nil
}
