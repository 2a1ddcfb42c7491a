// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/logship/lib/sqlitepool"
)

func TestOpenAppliesPragmas(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	if got := pragmaText(t, conn, "PRAGMA journal_mode"); got != "wal" {
		t.Errorf("journal_mode = %q, want %q", got, "wal")
	}
	// NORMAL is 1.
	if got := pragmaText(t, conn, "PRAGMA synchronous"); got != "1" {
		t.Errorf("synchronous = %q, want 1 (NORMAL)", got)
	}
}

func TestSynchronousOverride(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{Synchronous: "full"})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	// FULL is 2.
	if got := pragmaText(t, conn, "PRAGMA synchronous"); got != "2" {
		t.Errorf("synchronous = %q, want 2 (FULL)", got)
	}
}

func TestUnknownSynchronousRejected(t *testing.T) {
	_, err := sqlitepool.Open(sqlitepool.Config{
		Path:        filepath.Join(t.TempDir(), "bad.db"),
		Synchronous: "sometimes",
	})
	if err == nil {
		t.Fatal("expected error for unknown synchronous level")
	}
}

func TestOnConnectCreatesSchema(t *testing.T) {
	var called bool
	pool := openTestPool(t, sqlitepool.Config{
		OnConnect: func(conn *sqlite.Conn) error {
			called = true
			return sqlitex.ExecuteScript(conn, `
				CREATE TABLE IF NOT EXISTS spool (
					id INTEGER PRIMARY KEY,
					line TEXT NOT NULL
				);
			`, nil)
		},
	})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	if !called {
		t.Error("OnConnect was not called")
	}
	err = sqlitex.Execute(conn, "INSERT INTO spool (line) VALUES (?)", &sqlitex.ExecOptions{
		Args: []any{"hello"},
	})
	if err != nil {
		t.Fatalf("INSERT: %v", err)
	}
}

func TestOnConnectErrorSurfacesFromTake(t *testing.T) {
	failure := errors.New("schema broken")
	pool := openTestPool(t, sqlitepool.Config{
		OnConnect: func(*sqlite.Conn) error { return failure },
	})

	conn, err := pool.Take(context.Background())
	if err == nil {
		pool.Put(conn)
		t.Fatal("expected Take to fail when OnConnect fails")
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("expected error for empty Path")
	}
}

func TestContextCancellation(t *testing.T) {
	pool := openTestPool(t, sqlitepool.Config{PoolSize: 1})

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// openTestPool opens a pool on a temporary file and closes it when the
// test completes. Path is filled in if empty.
func openTestPool(t *testing.T, cfg sqlitepool.Config) *sqlitepool.Pool {
	t.Helper()

	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "test.db")
	}
	pool, err := sqlitepool.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}

func pragmaText(t *testing.T, conn *sqlite.Conn, pragma string) string {
	t.Helper()
	var value string
	err := sqlitex.Execute(conn, pragma, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("%s: %v", pragma, err)
	}
	return value
}
