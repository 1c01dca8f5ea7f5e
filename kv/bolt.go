package kv

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

var boltBucketName = []byte("shelf")

const defaultBoltTimeout = 10 * time.Second

type boltEngine struct {
	bdb  *bbolt.DB
	path string
	opt  Options
}

func openBolt(path string, opt Options) (Engine, error) {
	bdb, err := bbolt.Open(path, 0666, boltOptions(opt))
	if err != nil {
		return nil, err
	}
	e := &boltEngine{bdb: bdb, path: path, opt: opt}
	if !opt.ReadOnly {
		err = bdb.Update(func(btx *bbolt.Tx) error {
			_, err := btx.CreateBucketIfNotExists(boltBucketName)
			return err
		})
		if err != nil {
			bdb.Close()
			return nil, err
		}
	}
	return e, nil
}

func boltOptions(opt Options) *bbolt.Options {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opt.Timeout
	if bopt.Timeout == 0 {
		bopt.Timeout = defaultBoltTimeout
	}
	bopt.ReadOnly = opt.ReadOnly
	if opt.NoSync {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	return &bopt
}

func (e *boltEngine) Store(key, value []byte, mode StoreMode) error {
	if e.bdb == nil {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if e.opt.ReadOnly {
		return ErrReadOnly
	}
	return e.bdb.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(boltBucketName)
		if mode == Insert && b.Get(key) != nil {
			return ErrKeyExists
		}
		return b.Put(key, value)
	})
}

func (e *boltEngine) Fetch(key []byte) ([]byte, error) {
	if e.bdb == nil {
		return nil, ErrClosed
	}
	var v []byte
	err := e.bdb.View(func(btx *bbolt.Tx) error {
		if b := btx.Bucket(boltBucketName); b != nil {
			// bolt values live in the mmap and die with the tx
			v = clone(b.Get(key))
		}
		return nil
	})
	return v, err
}

func (e *boltEngine) Delete(key []byte) error {
	if e.bdb == nil {
		return ErrClosed
	}
	if e.opt.ReadOnly {
		return ErrReadOnly
	}
	if len(key) == 0 {
		return nil
	}
	return e.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(boltBucketName).Delete(key)
	})
}

func (e *boltEngine) FirstKey() ([]byte, error) {
	return e.seek(nil)
}

func (e *boltEngine) NextKey(key []byte) ([]byte, error) {
	return e.seek(succ(key))
}

func (e *boltEngine) seek(from []byte) ([]byte, error) {
	if e.bdb == nil {
		return nil, ErrClosed
	}
	var k []byte
	err := e.bdb.View(func(btx *bbolt.Tx) error {
		b := btx.Bucket(boltBucketName)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		var key []byte
		if from == nil {
			key, _ = c.First()
		} else {
			key, _ = c.Seek(from)
		}
		k = clone(key)
		return nil
	})
	return k, err
}

// Compact rewrites the database into a fresh file and swaps it in, which is
// the only way to give freed pages back to the filesystem with Bolt.
func (e *boltEngine) Compact() error {
	if e.bdb == nil {
		return ErrClosed
	}
	if e.opt.ReadOnly {
		return nil
	}
	tmpPath := e.path + ".compact"
	_ = os.Remove(tmpPath)

	dst, err := bbolt.Open(tmpPath, 0666, boltOptions(e.opt))
	if err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	err = bbolt.Compact(dst, e.bdb, 0)
	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("compact: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("compact: %w", err)
	}
	if err := e.bdb.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("compact: %w", err)
	}

	renameErr := os.Rename(tmpPath, e.path)

	// reopen whichever file is now at path so the engine stays usable
	bdb, err := bbolt.Open(e.path, 0666, boltOptions(e.opt))
	if err != nil {
		e.bdb = nil
		return errors.Join(fmt.Errorf("compact: reopen: %w", err), renameErr)
	}
	e.bdb = bdb
	if renameErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("compact: %w", renameErr)
	}
	return nil
}

func (e *boltEngine) Close() error {
	if e.bdb == nil {
		return ErrClosed
	}
	err := e.bdb.Close()
	e.bdb = nil
	return err
}
