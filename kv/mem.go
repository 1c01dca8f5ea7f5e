package kv

import (
	"bytes"
	"slices"
	"sort"
	"sync"
)

type memKV struct {
	key   []byte
	value []byte
}

// MemoryEngine is a transient Engine that keeps a sorted slice of pairs.
// Intended for tests and throwaway shelves.
type MemoryEngine struct {
	mu       sync.Mutex
	items    []memKV // sorted by key
	readOnly bool
	closed   bool
	garbage  int
}

// NewMemory returns an empty in-memory engine.
func NewMemory(readOnly bool) *MemoryEngine {
	return &MemoryEngine{readOnly: readOnly}
}

func (m *MemoryEngine) find(key []byte) (idx int, ok bool) {
	items := m.items
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, key) >= 0
	})
	if i < len(items) && bytes.Equal(items[i].key, key) {
		return i, true
	}
	return i, false
}

func (m *MemoryEngine) Store(key, value []byte, mode StoreMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if m.readOnly {
		return ErrReadOnly
	}

	value = slices.Clone(value)
	if value == nil {
		value = []byte{}
	}
	i, ok := m.find(key)
	if ok {
		if mode == Insert {
			return ErrKeyExists
		}
		m.garbage += len(m.items[i].value)
		m.items[i].value = value
		return nil
	}
	m.items = slices.Insert(m.items, i, memKV{key: slices.Clone(key), value: value})
	return nil
}

func (m *MemoryEngine) Fetch(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	i, ok := m.find(key)
	if !ok {
		return nil, nil
	}
	return clone(m.items[i].value), nil
}

func (m *MemoryEngine) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.readOnly {
		return ErrReadOnly
	}
	i, ok := m.find(key)
	if !ok {
		return nil
	}
	m.garbage += len(m.items[i].key) + len(m.items[i].value)
	m.items = slices.Delete(m.items, i, i+1)
	return nil
}

func (m *MemoryEngine) FirstKey() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if len(m.items) == 0 {
		return nil, nil
	}
	return clone(m.items[0].key), nil
}

func (m *MemoryEngine) NextKey(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	i, ok := m.find(key)
	if ok {
		i++
	}
	if i >= len(m.items) {
		return nil, nil
	}
	return clone(m.items[i].key), nil
}

// Compact drops the bookkeeping of freed bytes; there is nothing to reclaim
// for real beyond letting the Go runtime shrink the slice.
func (m *MemoryEngine) Compact() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.items = slices.Clip(m.items)
	m.garbage = 0
	return nil
}

// Garbage returns the number of key and value bytes released by deletions
// and overwrites since the last Compact.
func (m *MemoryEngine) Garbage() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.garbage
}

// Len returns the number of stored keys.
func (m *MemoryEngine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	m.items = nil
	return nil
}
