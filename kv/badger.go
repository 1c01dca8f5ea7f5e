package kv

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const badgerGCDiscardRatio = 0.5

type badgerEngine struct {
	db  *badger.DB
	opt Options
}

func openBadger(path string, opt Options) (Engine, error) {
	bopt := badger.DefaultOptions(path).
		WithReadOnly(opt.ReadOnly).
		WithSyncWrites(!opt.NoSync).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{opt.logger()})
	db, err := badger.Open(bopt)
	if err != nil {
		return nil, err
	}
	return &badgerEngine{db: db, opt: opt}, nil
}

func (e *badgerEngine) Store(key, value []byte, mode StoreMode) error {
	if e.db == nil {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if e.opt.ReadOnly {
		return ErrReadOnly
	}
	return e.db.Update(func(txn *badger.Txn) error {
		if mode == Insert {
			_, err := txn.Get(key)
			if err == nil {
				return ErrKeyExists
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return txn.Set(key, value)
	})
}

func (e *badgerEngine) Fetch(key []byte) ([]byte, error) {
	if e.db == nil {
		return nil, ErrClosed
	}
	var v []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (e *badgerEngine) Delete(key []byte) error {
	if e.db == nil {
		return ErrClosed
	}
	if e.opt.ReadOnly {
		return ErrReadOnly
	}
	if len(key) == 0 {
		return nil
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (e *badgerEngine) FirstKey() ([]byte, error) {
	return e.seek(nil)
}

func (e *badgerEngine) NextKey(key []byte) ([]byte, error) {
	return e.seek(succ(key))
}

func (e *badgerEngine) seek(from []byte) ([]byte, error) {
	if e.db == nil {
		return nil, ErrClosed
	}
	var k []byte
	err := e.db.View(func(txn *badger.Txn) error {
		iopt := badger.DefaultIteratorOptions
		iopt.PrefetchValues = false
		it := txn.NewIterator(iopt)
		defer it.Close()
		if from == nil {
			it.Rewind()
		} else {
			it.Seek(from)
		}
		if it.Valid() {
			k = it.Item().KeyCopy(nil)
		}
		return nil
	})
	return k, err
}

func (e *badgerEngine) Compact() error {
	if e.db == nil {
		return ErrClosed
	}
	if e.opt.ReadOnly {
		return nil
	}
	if err := e.db.Flatten(1); err != nil {
		return fmt.Errorf("compact: flatten: %w", err)
	}
	for {
		err := e.db.RunValueLogGC(badgerGCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		} else if err != nil {
			return fmt.Errorf("compact: value log gc: %w", err)
		}
	}
}

func (e *badgerEngine) Close() error {
	if e.db == nil {
		return ErrClosed
	}
	err := e.db.Close()
	e.db = nil
	return err
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...), "engine", Badger)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...), "engine", Badger)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "engine", Badger)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "engine", Badger)
}
