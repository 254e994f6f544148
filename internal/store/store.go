// Package store persists documents and the tag forest in a single SQLite
// file. One process owns a store file at a time; within the process every
// method is serialized on one connection.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bobg/flock"
	"github.com/bobg/sqlutil"

	"github.com/starford/docket/internal/apperr"
	"github.com/starford/docket/internal/keyword"
	"github.com/starford/docket/internal/tagforest"
)

// WordFinder reports whether text contains every one of words.
type WordFinder func(text string, words []string) bool

// Option configures a Store.
type Option func(*Store)

// WithWordFinder replaces the keyword predicate used by Query.
func WithWordFinder(fn WordFinder) Option {
	return func(s *Store) { s.find = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithLockTimeout bounds how long Open waits for another owner to release
// the file.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockWait = d }
}

const defaultLockWait = 2 * time.Second

// locker is shared so two Stores in one process contend for the same file.
var locker flock.Locker

// Store is an open store file.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	path     string
	forest   *tagforest.Forest
	find     WordFinder
	log      *slog.Logger
	lockWait time.Duration
	closed   bool
}

// Open opens an existing store file, takes its lock and loads the tags.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:     path,
		find:     keyword.Match,
		log:      slog.Default(),
		lockWait: defaultLockWait,
	}
	for _, o := range opts {
		o(s)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := s.lock(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		s.unlock()
		return nil, fmt.Errorf("store: open db: %w: %w", apperr.ErrStoreIO, err)
	}
	db.SetMaxOpenConns(1)
	s.db = db

	if err := checkSchema(ctx, db); err != nil {
		s.Close()
		return nil, err
	}
	if _, err := s.loadTags(ctx); err != nil {
		s.Close()
		return nil, err
	}
	s.log.Debug("store: opened", slog.String("path", path), slog.Int("tags", s.forest.Len()))
	return s, nil
}

// Create makes a new store file at path with the expected tables and opens it.
func Create(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("store: create %s: %w", path, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("store: create %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("store: create: %w: %w", apperr.ErrStoreIO, err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("store: apply schema: %w: %w", apperr.ErrStoreIO, err)
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("store: create: %w: %w", apperr.ErrStoreIO, err)
	}
	return Open(ctx, path, opts...)
}

// Path returns the store file path.
func (s *Store) Path() string { return s.path }

// Close releases the connection and the file lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	s.unlock()
	return err
}

func (s *Store) lock() error {
	done := make(chan error, 1)
	go func() { done <- locker.Lock(s.path) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("store: lock %s: %w: %w", s.path, apperr.ErrLocked, err)
		}
		return nil
	case <-time.After(s.lockWait):
		// Release the lock if it is granted after we gave up.
		go func() {
			if err := <-done; err == nil {
				_ = locker.Unlock(s.path)
			}
		}()
		return fmt.Errorf("store: lock %s: %w", s.path, apperr.ErrLocked)
	}
}

func (s *Store) unlock() {
	if err := locker.Unlock(s.path); err != nil {
		s.log.Warn("store: unlock failed", slog.String("path", s.path), slog.String("error", err.Error()))
	}
}

// Forest returns a snapshot of the tag forest.
func (s *Store) Forest() *tagforest.Forest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forest.Clone()
}

// LoadTags rereads every tag row and rebuilds the forest.
func (s *Store) LoadTags(ctx context.Context) (*tagforest.Forest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.loadTags(ctx)
	if err != nil {
		return nil, err
	}
	return f.Clone(), nil
}

func (s *Store) loadTags(ctx context.Context) (*tagforest.Forest, error) {
	var rows []tagforest.Row
	err := sqlutil.ForQueryRows(ctx, s.db, "SELECT id, ifnull(name, ''), ifnull(base, 0) FROM tags ORDER BY id",
		func(id int64, name string, base int64) {
			rows = append(rows, tagforest.Row{ID: id, Name: name, ParentID: base})
		})
	if err != nil {
		return nil, ioErr("load tags", err)
	}
	f, err := tagforest.Build(rows)
	if err != nil {
		return nil, fmt.Errorf("store: load tags: %w", err)
	}
	s.forest = f
	return f, nil
}

func ioErr(op string, err error) error {
	return fmt.Errorf("store: %s: %w: %w", op, apperr.ErrStoreIO, err)
}
