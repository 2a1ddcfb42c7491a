// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package recordstore is the durable, append-only spool of log
// records waiting to be shipped.
//
// Records live in a single SQLite table keyed by an autoincrement id:
//
//	CREATE TABLE log_entry (
//	    id       INTEGER PRIMARY KEY AUTOINCREMENT,
//	    log_text TEXT NOT NULL
//	);
//
// The table and its ascending-id FIFO order are a durable contract:
// a store written by one process run is drained by the next. Ids are
// assigned by SQLite on insert and never reused, even after every row
// has been deleted.
//
// Writes go through [Store.AppendBatch], which inserts a whole buffer
// of records in one IMMEDIATE transaction: either every record is
// committed or none is. Records are removed only by [Store.DeleteUpTo]
// once the batch containing them has been accepted by the remote
// endpoint, so a crash between insert and delete results in the batch
// being uploaded again on the next run rather than lost.
//
// A store file is owned by one process at a time. [Open] takes an
// exclusive flock on "<path>.lock" and fails with
// [ErrStorageUnavailable] when another process holds it, which keeps
// two shippers from uploading the same records concurrently.
//
// Errors wrap one of two sentinels, checked with errors.Is:
//
//   - [ErrStorageUnavailable]: the directory, file, schema, or lock
//     could not be set up. Nothing was written.
//   - [ErrTransactionFailed]: an insert, query, or delete failed.
//     Inserts are rolled back as a unit.
package recordstore
