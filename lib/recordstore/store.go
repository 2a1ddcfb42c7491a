// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/logship/lib/sqlitepool"
)

// schema is applied on every new connection. It must stay compatible
// with stores written by earlier runs.
const schema = `
CREATE TABLE IF NOT EXISTS log_entry (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	log_text TEXT NOT NULL
);
`

// Record is one pending log entry.
type Record struct {
	// ID is assigned by the store on insert. Strictly increasing in
	// insertion order and never reused.
	ID int64

	// Text is the formatted log line. It never contains '\n'.
	Text string
}

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the SQLite database file. Its parent directory is
	// created (mode 0700) if missing. Required.
	Path string

	// Synchronous is passed to sqlitepool. Empty means NORMAL,
	// which keeps committed records across process crashes.
	Synchronous string

	// Logger receives rollback failures and open/close messages. If
	// nil, a no-op logger is used.
	Logger *slog.Logger
}

// Store is the durable record spool. It is safe for concurrent use,
// but the flush path is expected to be its only writer.
type Store struct {
	pool   *sqlitepool.Pool
	lock   *fileLock
	logger *slog.Logger
	path   string
	closed atomic.Bool
}

// Open creates the database directory, file, and schema if absent and
// takes the store lock. Opening an existing store is idempotent. Any
// failure wraps [ErrStorageUnavailable].
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: Path is required", ErrStorageUnavailable)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating directory for %s: %w", ErrStorageUnavailable, cfg.Path, err)
	}

	lock, err := acquireLock(cfg.Path + ".lock")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:        cfg.Path,
		Synchronous: cfg.Synchronous,
		Logger:      logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		lock.release()
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	// Connections are prepared lazily. Take one now so that an
	// unreadable file or a schema failure is reported by Open and not
	// by the first append.
	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		lock.release()
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	pool.Put(conn)

	logger.Info("record store opened", "path", cfg.Path)

	return &Store{
		pool:   pool,
		lock:   lock,
		logger: logger,
		path:   cfg.Path,
	}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// AppendBatch inserts texts as new records, in order, in a single
// IMMEDIATE transaction. If any insert fails the transaction is rolled
// back and the store is left unchanged; the returned error wraps
// [ErrTransactionFailed]. A rollback failure is logged and never
// replaces the original error. An empty slice is a no-op.
func (s *Store) AppendBatch(ctx context.Context, texts []string) (err error) {
	if len(texts) == 0 {
		return nil
	}

	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteTransient(conn, "BEGIN IMMEDIATE;", nil); err != nil {
		return fmt.Errorf("%w: begin: %w", ErrTransactionFailed, err)
	}
	defer func() {
		if err == nil {
			return
		}
		// A failed statement may already have ended the transaction.
		if conn.AutocommitEnabled() {
			return
		}
		if rollbackErr := sqlitex.ExecuteTransient(conn, "ROLLBACK;", nil); rollbackErr != nil {
			s.logger.Error("record store rollback failed",
				"path", s.path,
				"error", rollbackErr,
				"cause", err,
			)
		}
	}()

	for index, text := range texts {
		err = sqlitex.Execute(conn, "INSERT INTO log_entry (log_text) VALUES (?);", &sqlitex.ExecOptions{
			Args: []any{text},
		})
		if err != nil {
			return fmt.Errorf("%w: inserting record %d of %d: %w", ErrTransactionFailed, index+1, len(texts), err)
		}
	}

	if err = sqlitex.ExecuteTransient(conn, "COMMIT;", nil); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrTransactionFailed, err)
	}
	return nil
}

// CountPending returns the number of records currently stored.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	var count int64
	err = sqlitex.Execute(conn, "SELECT count(*) FROM log_entry;", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting records: %w", ErrTransactionFailed, err)
	}
	return count, nil
}

// QueryAfter returns up to limit records with id greater than after,
// in ascending id order. Ids start at 1, so after <= 0 reads from the
// beginning. The result comes from a single SELECT and therefore
// reflects one consistent snapshot of committed records.
func (s *Store) QueryAfter(ctx context.Context, after int64, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("recordstore: query limit must be positive, got %d", limit)
	}

	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	records := make([]Record, 0, min(limit, 256))
	err = sqlitex.Execute(conn,
		"SELECT id, log_text FROM log_entry WHERE id > ? ORDER BY id ASC LIMIT ?;",
		&sqlitex.ExecOptions{
			Args: []any{after, limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				records = append(records, Record{
					ID:   stmt.ColumnInt64(0),
					Text: stmt.ColumnText(1),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("%w: reading records after %d: %w", ErrTransactionFailed, after, err)
	}
	return records, nil
}

// DeleteUpTo removes every record with id <= id. It runs as a single
// statement, which SQLite executes atomically.
func (s *Store) DeleteUpTo(ctx context.Context, id int64) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM log_entry WHERE id <= ?;", &sqlitex.ExecOptions{
		Args: []any{id},
	})
	if err != nil {
		return fmt.Errorf("%w: deleting records up to %d: %w", ErrTransactionFailed, id, err)
	}
	return nil
}

// Close releases the connection pool and the store lock. Calling
// Close more than once is a no-op.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	poolErr := s.pool.Close()
	lockErr := s.lock.release()
	if err := errors.Join(poolErr, lockErr); err != nil {
		return fmt.Errorf("recordstore: closing %s: %w", s.path, err)
	}
	s.logger.Info("record store closed", "path", s.path)
	return nil
}

// take borrows a connection, mapping pool failures onto the store's
// error taxonomy.
func (s *Store) take(ctx context.Context) (*sqlite.Conn, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	return conn, nil
}
