package shelf

import (
	"fmt"
	"iter"
)

// Cursor walks the keys of a Store one at a time. It is not restartable.
//
//	c, err := s.Keys()
//	if err != nil { ... }
//	defer c.Close()
//	for c.Next() {
//		key := c.Key()
//		...
//	}
//	if err := c.Err(); err != nil { ... }
//
// Sets and deletes of other keys made through the same Store between calls
// to Next do not disturb the walk. Deleting the key the cursor is positioned
// on is safe with every engine in package kv, because the next key is looked
// up as the first one after it; for other engines it depends on their
// NextKey. A cursor borrows its Store: once the Store is closed, Next
// returns false and Err returns ErrClosed.
type Cursor struct {
	s       *Store
	pos     []byte
	started bool
	done    bool
	err     error
}

// Keys returns a cursor positioned before the store's first key.
func (s *Store) Keys() (*Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	first, err := s.engine.FirstKey()
	if err != nil {
		return nil, fmt.Errorf("shelf: first key: %w", err)
	}
	return &Cursor{s: s, pos: first}, nil
}

// Next advances to the next key and reports whether there is one.
func (c *Cursor) Next() bool {
	if c.done {
		return false
	}
	if !c.started {
		c.started = true
		if err := c.s.checkOpen(); err != nil {
			return c.fail(err)
		}
	} else {
		next, err := c.s.nextKey(c.pos)
		if err != nil {
			return c.fail(err)
		}
		c.pos = next
	}
	if c.pos == nil {
		c.done = true
		return false
	}
	return true
}

func (c *Cursor) fail(err error) bool {
	c.err = err
	c.done = true
	c.pos = nil
	return false
}

// Key returns the current key. The slice belongs to the caller.
func (c *Cursor) Key() []byte {
	if c.done || !c.started {
		return nil
	}
	return clone(c.pos)
}

// Err returns the error that stopped the walk, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the cursor. It is safe to call more than once.
func (c *Cursor) Close() error {
	c.done = true
	c.pos = nil
	return nil
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Store) nextKey(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	next, err := s.engine.NextKey(key)
	if err != nil {
		return nil, fmt.Errorf("shelf: next key: %w", err)
	}
	return next, nil
}

// All yields every key of the store. Iteration errors are yielded with a nil
// key and end the sequence. Breaking out of the loop releases the cursor.
func (s *Store) All() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		c, err := s.Keys()
		if err != nil {
			yield(nil, err)
			return
		}
		defer c.Close()
		for c.Next() {
			if !yield(c.Key(), nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(nil, err)
		}
	}
}
