//go:build cgo

package kv

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/PowerDNS/lmdb-go/lmdb"
)

const lmdbMapSize = 1 << 30

const lmdbAvailable = true

type lmdbEngine struct {
	env  *lmdb.Env
	dbi  lmdb.DBI
	path string
	opt  Options
}

func openLMDB(path string, opt Options) (Engine, error) {
	if !opt.ReadOnly {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, err
		}
	}
	e := &lmdbEngine{path: path, opt: opt}
	if err := e.open(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *lmdbEngine) open() error {
	env, err := lmdb.NewEnv()
	if err != nil {
		return err
	}
	if err := env.SetMapSize(lmdbMapSize); err != nil {
		env.Close()
		return err
	}

	var flags uint = lmdb.NoTLS
	if e.opt.ReadOnly {
		flags |= lmdb.Readonly
	}
	if e.opt.NoSync {
		flags |= lmdb.NoSync
	}
	if err := env.Open(e.path, flags, 0o644); err != nil {
		env.Close()
		return err
	}

	openRoot := func(txn *lmdb.Txn) (err error) {
		e.dbi, err = txn.OpenRoot(0)
		return err
	}
	if e.opt.ReadOnly {
		err = env.View(openRoot)
	} else {
		err = env.Update(openRoot)
	}
	if err != nil {
		env.Close()
		return err
	}
	e.env = env
	return nil
}

func (e *lmdbEngine) Store(key, value []byte, mode StoreMode) error {
	if e.env == nil {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if e.opt.ReadOnly {
		return ErrReadOnly
	}
	var flags uint
	if mode == Insert {
		flags = lmdb.NoOverwrite
	}
	err := e.env.Update(func(txn *lmdb.Txn) error {
		return txn.Put(e.dbi, key, value, flags)
	})
	if lmdb.IsErrno(err, lmdb.KeyExist) {
		return ErrKeyExists
	}
	return err
}

func (e *lmdbEngine) Fetch(key []byte) ([]byte, error) {
	if e.env == nil {
		return nil, ErrClosed
	}
	var v []byte
	err := e.env.View(func(txn *lmdb.Txn) error {
		raw, err := txn.Get(e.dbi, key)
		if lmdb.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		v = clone(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (e *lmdbEngine) Delete(key []byte) error {
	if e.env == nil {
		return ErrClosed
	}
	if e.opt.ReadOnly {
		return ErrReadOnly
	}
	if len(key) == 0 {
		return nil
	}
	return e.env.Update(func(txn *lmdb.Txn) error {
		err := txn.Del(e.dbi, key, nil)
		if lmdb.IsNotFound(err) {
			return nil
		}
		return err
	})
}

func (e *lmdbEngine) FirstKey() ([]byte, error) {
	return e.seek(nil)
}

func (e *lmdbEngine) NextKey(key []byte) ([]byte, error) {
	return e.seek(succ(key))
}

func (e *lmdbEngine) seek(from []byte) ([]byte, error) {
	if e.env == nil {
		return nil, ErrClosed
	}
	var k []byte
	err := e.env.View(func(txn *lmdb.Txn) error {
		cur, err := txn.OpenCursor(e.dbi)
		if err != nil {
			return err
		}
		defer cur.Close()

		var key []byte
		if from == nil {
			key, _, err = cur.Get(nil, nil, lmdb.First)
		} else {
			key, _, err = cur.Get(from, nil, lmdb.SetRange)
		}
		if lmdb.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		k = clone(key)
		return nil
	})
	return k, err
}

// Compact writes a compacted copy of the environment next to it, then swaps
// the data file in and reopens.
func (e *lmdbEngine) Compact() error {
	if e.env == nil {
		return ErrClosed
	}
	if e.opt.ReadOnly {
		return nil
	}
	tmpDir := e.path + ".compact"
	if err := os.RemoveAll(tmpDir); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := e.env.CopyFlags(tmpDir, lmdb.CopyCompact); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	e.env.Close()
	e.env = nil

	renameErr := os.Rename(filepath.Join(tmpDir, "data.mdb"), filepath.Join(e.path, "data.mdb"))
	if err := e.open(); err != nil {
		return fmt.Errorf("compact: reopen: %w", err)
	}
	if renameErr != nil {
		return fmt.Errorf("compact: %w", renameErr)
	}
	return nil
}

func (e *lmdbEngine) Close() error {
	if e.env == nil {
		return ErrClosed
	}
	e.env.Close()
	e.env = nil
	return nil
}
