package kv

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/pebble"
)

type pebbleEngine struct {
	db  *pebble.DB
	opt Options
	wo  *pebble.WriteOptions
}

func openPebble(path string, opt Options) (Engine, error) {
	popt := &pebble.Options{
		ReadOnly:         opt.ReadOnly,
		ErrorIfNotExists: opt.ReadOnly,
		Logger:           pebbleLogger{opt.logger()},
	}
	db, err := pebble.Open(path, popt)
	if err != nil {
		return nil, err
	}
	wo := pebble.Sync
	if opt.NoSync {
		wo = pebble.NoSync
	}
	return &pebbleEngine{db: db, opt: opt, wo: wo}, nil
}

func (e *pebbleEngine) Store(key, value []byte, mode StoreMode) error {
	if e.db == nil {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if e.opt.ReadOnly {
		return ErrReadOnly
	}
	if mode == Insert {
		v, err := e.Fetch(key)
		if err != nil {
			return err
		}
		if v != nil {
			return ErrKeyExists
		}
	}
	return e.db.Set(key, value, e.wo)
}

func (e *pebbleEngine) Fetch(key []byte) ([]byte, error) {
	if e.db == nil {
		return nil, ErrClosed
	}
	value, closer, err := e.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return clone(value), nil
}

func (e *pebbleEngine) Delete(key []byte) error {
	if e.db == nil {
		return ErrClosed
	}
	if e.opt.ReadOnly {
		return ErrReadOnly
	}
	if len(key) == 0 {
		return nil
	}
	return e.db.Delete(key, e.wo)
}

func (e *pebbleEngine) FirstKey() ([]byte, error) {
	return e.seek(nil)
}

func (e *pebbleEngine) NextKey(key []byte) ([]byte, error) {
	return e.seek(succ(key))
}

func (e *pebbleEngine) seek(from []byte) ([]byte, error) {
	if e.db == nil {
		return nil, ErrClosed
	}
	iter, err := e.db.NewIter(&pebble.IterOptions{LowerBound: from})
	if err != nil {
		return nil, err
	}
	var k []byte
	if iter.First() {
		k = clone(iter.Key())
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return nil, err
	}
	return k, iter.Close()
}

func (e *pebbleEngine) lastKey() ([]byte, error) {
	if e.db == nil {
		return nil, ErrClosed
	}
	iter, err := e.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	var k []byte
	if iter.Last() {
		k = clone(iter.Key())
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return nil, err
	}
	return k, iter.Close()
}

func (e *pebbleEngine) Compact() error {
	if e.db == nil {
		return ErrClosed
	}
	if e.opt.ReadOnly {
		return nil
	}
	first, err := e.FirstKey()
	if err != nil || first == nil {
		return err
	}
	last, err := e.lastKey()
	if err != nil || last == nil {
		return err
	}
	if err := e.db.Compact(first, succ(last), true); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	return nil
}

func (e *pebbleEngine) Close() error {
	if e.db == nil {
		return ErrClosed
	}
	err := e.db.Close()
	e.db = nil
	return err
}

type pebbleLogger struct {
	logger *slog.Logger
}

func (l pebbleLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "engine", Pebble)
}

func (l pebbleLogger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Error(msg, "engine", Pebble)
	panic(msg)
}
