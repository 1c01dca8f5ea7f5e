// Package kv defines the raw keyed byte storage that a shelf sits on, and
// provides several embedded backends for it.
//
// An Engine stores opaque byte-string keys and values with explicit lengths,
// and can walk its keys one at a time via FirstKey/NextKey. All bundled
// engines keep keys sorted, and NextKey(k) returns the smallest key strictly
// greater than k, so removing the key a walk is currently positioned at does
// not disturb the walk. Third-party engines are only required to return every
// key exactly once while the key set is unchanged.
package kv

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrKeyExists is returned by Engine.Store in Insert mode when the key is
	// already present.
	ErrKeyExists = errors.New("key already exists")

	// ErrEmptyKey is returned when storing a zero-length key.
	ErrEmptyKey = errors.New("empty key")

	// ErrReadOnly is returned when mutating an engine opened read-only.
	ErrReadOnly = errors.New("engine is read-only")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine closed")
)

// StoreMode selects what Engine.Store does when the key already exists.
type StoreMode int

const (
	// Replace overwrites an existing value.
	Replace StoreMode = iota
	// Insert fails with ErrKeyExists if the key exists.
	Insert
)

func (m StoreMode) String() string {
	switch m {
	case Replace:
		return "replace"
	case Insert:
		return "insert"
	default:
		return fmt.Sprintf("StoreMode(%d)", int(m))
	}
}

// Engine is the raw keyed byte storage capability.
//
// Slices passed in are not retained. Slices returned are owned by the caller.
// Keys are non-empty: Store rejects a zero-length key with ErrEmptyKey, since
// Bolt and Badger cannot hold one, and Delete treats it as always missing.
type Engine interface {
	// Store writes value under key.
	Store(key, value []byte, mode StoreMode) error

	// Fetch returns the value stored under key, or nil if there is none.
	Fetch(key []byte) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// FirstKey returns the first key, or nil if the engine is empty.
	FirstKey() ([]byte, error)

	// NextKey returns the key following key, or nil at the end.
	NextKey(key []byte) ([]byte, error)

	// Compact reclaims space left behind by deletions and overwrites.
	// Engines without compaction support return nil.
	Compact() error

	// Close releases the engine.
	Close() error
}

// Kind names an engine implementation.
type Kind string

const (
	Bolt   Kind = "bolt"
	Pebble Kind = "pebble"
	Badger Kind = "badger"
	LMDB   Kind = "lmdb"
	Memory Kind = "memory"

	Default = Bolt
)

// Kinds lists every engine that Open knows about.
var Kinds = []Kind{Bolt, Pebble, Badger, LMDB, Memory}

// IsDir reports whether the engine keeps its data in a directory rather than
// a single file.
func (k Kind) IsDir() bool {
	switch k {
	case Pebble, Badger, LMDB:
		return true
	default:
		return false
	}
}

// Available reports whether Open supports k in this build. LMDB needs cgo.
func (k Kind) Available() bool {
	switch k {
	case "", Bolt, Pebble, Badger, Memory:
		return true
	case LMDB:
		return lmdbAvailable
	default:
		return false
	}
}

type Options struct {
	ReadOnly bool
	NoSync   bool
	Timeout  time.Duration // file lock wait, only honored by Bolt
	Logger   *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Open opens or, unless opt.ReadOnly is set, creates an engine of the given
// kind at path.
func Open(kind Kind, path string, opt Options) (Engine, error) {
	switch kind {
	case "", Bolt:
		return openBolt(path, opt)
	case Pebble:
		return openPebble(path, opt)
	case Badger:
		return openBadger(path, opt)
	case LMDB:
		return openLMDB(path, opt)
	case Memory:
		return NewMemory(opt.ReadOnly), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", kind)
	}
}

// succ returns the smallest key strictly greater than key.
func succ(key []byte) []byte {
	out := make([]byte, len(key)+1)
	copy(out, key)
	return out
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
