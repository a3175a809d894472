// Package store owns the relational engine: an in-memory SQLite database whose
// full image is checkpointed to a durable BlobStore and restored on startup.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"
)

var (
	// ErrStoreUnavailable is returned by every operation on a closed or uninitialized store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPersistence wraps failures to write a snapshot to the blob store.
	ErrPersistence = errors.New("snapshot persistence failed")
)

// Store is the single owner of the engine handle.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	blobs  BlobStore
	logger *slog.Logger

	retries      uint64
	retryInitial time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRetry sets how often a failed snapshot write is retried and the first delay.
func WithRetry(retries uint64, initial time.Duration) Option {
	return func(s *Store) {
		s.retries = retries
		s.retryInitial = initial
	}
}

// Open restores the most recent snapshot from blobs, or initializes an empty schema
// when there is none. A snapshot that cannot be restored is logged and replaced by an
// empty schema; only a failing engine or an unreadable blob store is an error.
func Open(ctx context.Context, blobs BlobStore, opts ...Option) (*Store, error) {
	s := &Store{
		blobs:        blobs,
		logger:       slog.Default(),
		retries:      3,
		retryInitial: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

func (s *Store) load(ctx context.Context) (*sql.DB, error) {
	data, err := s.blobs.Get(ctx, KeySnapshot)
	if errors.Is(err, ErrBlobNotFound) {
		s.logger.Info("store_initialized", "source", "empty")
		return s.fresh(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	db, err := s.restore(ctx, data)
	if err != nil {
		s.logger.Warn("snapshot_corrupt", "err", err, "bytes", len(data))
		return s.fresh(ctx)
	}
	s.logger.Info("store_initialized", "source", "snapshot", "bytes", len(data))
	return db, nil
}

// newEngine opens an empty in-memory database. The pool is pinned to one
// connection: every connection to ":memory:" is a separate database.
func newEngine(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening engine: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening engine: %w", err)
	}
	return db, nil
}

func (s *Store) fresh(ctx context.Context) (*sql.DB, error) {
	db, err := newEngine(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.prepare(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// restore builds an engine from a (possibly compressed) database image.
func (s *Store) restore(ctx context.Context, data []byte) (*sql.DB, error) {
	image, err := decompress(data)
	if err != nil {
		return nil, err
	}

	db, err := newEngine(ctx)
	if err != nil {
		return nil, err
	}
	if err := restoreImage(ctx, db, image); err != nil {
		db.Close()
		return nil, err
	}

	var check string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&check); err != nil || check != "ok" {
		db.Close()
		if err == nil {
			err = fmt.Errorf("quick_check: %s", check)
		}
		return nil, fmt.Errorf("verifying snapshot: %w", err)
	}

	if err := s.prepare(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s *Store) prepare(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	return ensureSchema(ctx, db, s.logger)
}

// DB returns the engine handle.
func (s *Store) DB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	return s.db, nil
}

// Begin starts a transaction on the engine. Checkpoint must not be called
// until the transaction is committed or rolled back.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	db, err := s.DB()
	if err != nil {
		return nil, err
	}
	return db.BeginTx(ctx, nil)
}

// Version returns the schema version recorded in the store.
func (s *Store) Version(ctx context.Context) (int, error) {
	db, err := s.DB()
	if err != nil {
		return 0, err
	}
	return schemaVersion(ctx, db)
}

// Checkpoint writes the full database image to the blob store.
func (s *Store) Checkpoint(ctx context.Context) error {
	db, err := s.DB()
	if err != nil {
		return err
	}
	image, err := serialize(ctx, db)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	blob, err := compress(image)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryInitial
	policy.MaxInterval = 5 * time.Second
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, s.retries), ctx)

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		if err := s.blobs.Put(ctx, KeySnapshot, blob); err != nil {
			s.logger.Warn("snapshot_write_failed", "attempt", attempt, "err", err)
			return err
		}
		return nil
	}, retry)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.logger.Debug("snapshot_written", "bytes", len(blob), "raw_bytes", len(image))
	return nil
}

// Export writes the uncompressed database image, a regular SQLite file.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	db, err := s.DB()
	if err != nil {
		return err
	}
	image, err := serialize(ctx, db)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(image)); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

// Import replaces the current state with a database image (raw or zstd-compressed)
// and checkpoints it. The current state is kept if the image cannot be restored.
func (s *Store) Import(ctx context.Context, r io.Reader) error {
	if _, err := s.DB(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading import: %w", err)
	}
	db, err := s.restore(ctx, data)
	if err != nil {
		return fmt.Errorf("restoring import: %w", err)
	}
	s.swap(db)
	s.logger.Info("store_imported", "bytes", len(data))
	return s.Checkpoint(ctx)
}

// Reset discards all data, recreates the empty schema and persists it.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.DB(); err != nil {
		return err
	}
	db, err := s.fresh(ctx)
	if err != nil {
		return err
	}
	s.swap(db)
	s.logger.Info("store_reset")
	return s.Checkpoint(ctx)
}

func (s *Store) swap(db *sql.DB) {
	s.mu.Lock()
	old := s.db
	s.db = db
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// RememberSource stores the handle of the last ingested log source.
func (s *Store) RememberSource(ctx context.Context, handle string) error {
	if err := s.blobs.Put(ctx, KeySource, []byte(handle)); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// RememberedSource returns the stored source handle, or "" when none was stored.
func (s *Store) RememberedSource(ctx context.Context) (string, error) {
	data, err := s.blobs.Get(ctx, KeySource)
	if errors.Is(err, ErrBlobNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Close releases the engine. Unsaved changes since the last checkpoint are lost.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
