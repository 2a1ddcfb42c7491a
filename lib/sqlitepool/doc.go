// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool used by
// logship's local storage.
//
// It wraps zombiezen.com/go/sqlite with the defaults a local spool
// database wants: WAL journal mode so the flush path can read pending
// records while a writer commits, a configurable synchronous level
// (NORMAL by default, which survives process crashes without an fsync
// per commit), and a busy timeout so a second connection waits for
// the write lock instead of failing with SQLITE_BUSY.
//
// The pool is built on zombiezen's sqlitex.Pool. Callers [Pool.Take]
// a connection, perform work, and [Pool.Put] it back. Connections are
// NOT safe for concurrent use.
//
// # Pragmas
//
// Every connection is initialized with:
//
//   - journal_mode=WAL
//   - synchronous=NORMAL (or [Config].Synchronous)
//   - busy_timeout=5000
//   - cache_size=-2048: 2 MB page cache per connection. A spool
//     database is written once and read once per record, so a large
//     cache buys nothing.
//   - temp_store=MEMORY
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:     "/var/cache/logship/logs.sqlite",
//	    PoolSize: 2,
//	    Logger:   logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
// There is no query builder and no abstraction over SQLite's
// connection model: callers write SQL and use sqlitex.Execute.
package sqlitepool
