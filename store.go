package shelf

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/andreyvit/shelf/kv"
	"github.com/puzpuzpuz/xsync/v3"
)

// Mode is the access mode of a Store.
type Mode int

const (
	ReadWrite Mode = iota
	ReadOnly
)

func (m Mode) String() string {
	if m == ReadOnly {
		return "ro"
	}
	return "rw"
}

type Options struct {
	// ReadOnly opens an existing store without the ability to modify it.
	// Otherwise the store is opened read-write and created if missing.
	ReadOnly bool

	// Engine selects the backing engine; kv.Bolt by default.
	Engine kv.Kind

	// OpenEngine, if set, is used instead of kv.Open.
	OpenEngine func(path string, opt kv.Options) (kv.Engine, error)

	Logger  *slog.Logger
	Verbose bool

	// NoCompact skips the compaction that Close normally runs on
	// read-write stores.
	NoCompact bool

	// Timeout bounds the wait for the engine's file lock (Bolt only).
	Timeout time.Duration

	// IsTesting trades durability for speed.
	IsTesting bool
}

// writers tracks the paths this process holds open read-write.
var writers = xsync.NewMapOf[string, *Store]()

// Store is an open shelf: a persistent map from byte-string keys to Values.
//
// Operations are synchronous and applied in the order they are issued. A
// Store serializes its own operations, but callers that need several
// operations to happen atomically must coordinate themselves. Nothing
// coordinates separate Stores opened on the same path, beyond the engine's
// own file locking and the in-process ErrAlreadyOpen check for writers.
type Store struct {
	mu        sync.Mutex
	engine    kv.Engine
	path      string
	regKey    string
	mode      Mode
	kind      kv.Kind
	logger    *slog.Logger
	verbose   bool
	noCompact bool
	closed    bool
}

// Open opens the shelf at path. In read-write mode the backing store is
// created if it does not exist; in read-only mode it must exist. Failures are
// reported as *OpenError.
func Open(path string, opt Options) (*Store, error) {
	s := &Store{
		path:      path,
		mode:      ReadWrite,
		kind:      opt.Engine,
		logger:    opt.Logger,
		verbose:   opt.Verbose,
		noCompact: opt.NoCompact,
	}
	if opt.ReadOnly {
		s.mode = ReadOnly
	}
	if s.kind == "" {
		s.kind = kv.Default
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if s.mode == ReadWrite && s.kind != kv.Memory {
		key, err := filepath.Abs(path)
		if err != nil {
			return nil, &OpenError{path, s.mode, err}
		}
		if _, loaded := writers.LoadOrStore(key, s); loaded {
			return nil, &OpenError{path, s.mode, ErrAlreadyOpen}
		}
		s.regKey = key
	}

	kopt := kv.Options{
		ReadOnly: opt.ReadOnly,
		NoSync:   opt.IsTesting,
		Timeout:  opt.Timeout,
		Logger:   s.logger,
	}
	start := time.Now()
	var err error
	if opt.OpenEngine != nil {
		s.engine, err = opt.OpenEngine(path, kopt)
	} else {
		s.engine, err = kv.Open(s.kind, path, kopt)
	}
	if err != nil {
		s.unregister()
		return nil, &OpenError{path, s.mode, err}
	}

	s.logger.Debug("shelf: opened", "path", path, "mode", s.mode, "engine", s.kind, "elapsed", time.Since(start))
	return s, nil
}

func (s *Store) unregister() {
	if s.regKey != "" {
		writers.Delete(s.regKey)
		s.regKey = ""
	}
}

func (s *Store) checkWritable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.mode == ReadOnly {
		return ErrReadOnly
	}
	return nil
}

func (s *Store) Path() string   { return s.path }
func (s *Store) Mode() Mode     { return s.mode }
func (s *Store) ReadOnly() bool { return s.mode == ReadOnly }

// String identifies the store for diagnostics, e.g. "shelf (data.db, rw)".
func (s *Store) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Sprintf("shelf (%s, closed)", s.path)
	}
	return fmt.Sprintf("shelf (%s, %s)", s.path, s.mode)
}

// Get returns the value stored under key, or Nil if there is none. A stored
// value that fails to decode is reported as *CorruptionError.
func (s *Store) Get(key []byte) (Value, error) {
	raw, err := s.GetRaw(key)
	if err != nil || raw == nil {
		return Nil, err
	}
	v, err := Unmarshal(raw)
	if err != nil {
		s.logger.Error("shelf: corrupted value", "path", s.path, keyAttr(key), "err", err)
		return Nil, &CorruptionError{Key: clone(key), Err: err}
	}
	return v, nil
}

// GetRaw returns the encoded value stored under key, or nil.
func (s *Store) GetRaw(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	raw, err := s.engine.Fetch(key)
	if err != nil {
		return nil, fmt.Errorf("shelf: get %q: %w", key, err)
	}
	if s.verbose {
		s.logger.Debug("shelf: get", "path", s.path, keyAttr(key), "found", raw != nil, "size", len(raw))
	}
	return raw, nil
}

// Has reports whether key has a value.
func (s *Store) Has(key []byte) (bool, error) {
	raw, err := s.GetRaw(key)
	return raw != nil, err
}

// Set stores v under key, replacing any previous value. Setting Nil deletes
// the key; deleting a missing key is not an error. Keys may hold any bytes
// but must not be empty; an empty key fails with kv.ErrEmptyKey.
func (s *Store) Set(key []byte, v Value) error {
	return s.put(key, v, kv.Replace)
}

// Insert stores v under key only if key has no value yet; otherwise it
// fails with an error matching kv.ErrKeyExists.
func (s *Store) Insert(key []byte, v Value) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if v.IsNil() {
		return &EncodeError{Kind: KindNil, Err: ErrUnsupportedType}
	}
	return s.put(key, v, kv.Insert)
}

// Delete removes key. Same as Set(key, Nil).
func (s *Store) Delete(key []byte) error {
	return s.put(key, Nil, kv.Replace)
}

func (s *Store) put(key []byte, v Value, mode kv.StoreMode) error {
	if err := s.checkWritable(); err != nil {
		return err
	}

	var data []byte
	if !v.IsNil() {
		var err error
		data, err = AppendMarshal(acquireValueBytes(), v)
		if err != nil {
			releaseValueBytes(data)
			return err
		}
		defer releaseValueBytes(data)
	}

	// closed by another goroutine while encoding
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.mode == ReadOnly {
		return ErrReadOnly
	}

	if data == nil {
		if s.verbose {
			s.logger.Debug("shelf: delete", "path", s.path, keyAttr(key))
		}
		if err := s.engine.Delete(key); err != nil {
			return fmt.Errorf("shelf: delete %q: %w", key, err)
		}
		return nil
	}

	if s.verbose {
		s.logger.Debug("shelf: set", "path", s.path, keyAttr(key), "mode", mode, "size", len(data))
	}
	if err := s.engine.Store(key, data, mode); err != nil {
		return fmt.Errorf("shelf: set %q: %w", key, err)
	}
	return nil
}

// GetAny is Get followed by Value.Interface.
func (s *Store) GetAny(key []byte) (any, error) {
	v, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// SetAny converts x with ValueOf and stores it.
func (s *Store) SetAny(key []byte, x any) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	v, err := ValueOf(x)
	if err != nil {
		return err
	}
	return s.Set(key, v)
}

// Close compacts a read-write store (unless disabled by Options.NoCompact)
// and releases the engine. Every later call on s, including Close, fails
// with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	defer s.unregister()

	var compactErr error
	if s.mode == ReadWrite && !s.noCompact {
		start := time.Now()
		compactErr = s.engine.Compact()
		if compactErr != nil {
			s.logger.Error("shelf: compaction failed", "path", s.path, "err", compactErr)
		} else {
			s.logger.Debug("shelf: compacted", "path", s.path, "elapsed", time.Since(start))
		}
	}

	closeErr := s.engine.Close()
	s.engine = nil
	if err := errors.Join(compactErr, closeErr); err != nil {
		return fmt.Errorf("shelf: close %s: %w", s.path, err)
	}
	s.logger.Debug("shelf: closed", "path", s.path, "mode", s.mode)
	return nil
}
