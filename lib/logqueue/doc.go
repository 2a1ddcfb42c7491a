// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logqueue buffers formatted log lines in memory, persists
// them to the record store, and drains the store to the remote
// endpoint.
//
// A [Queue] owns three pieces of state behind one mutex: the buffer of
// lines not yet written to disk, the lazily opened store handle, and
// the flag marking a flush in progress. [Queue.Enqueue] only appends to
// the buffer and never does I/O. [Queue.Flush] runs one cycle:
//
//  1. return at once if another flush is running
//  2. open the store on first use
//  3. move the buffer into the store in one transaction
//  4. run [drain.Drain] until the store is empty or a step fails
//
// Storage and network I/O happen without the mutex held, so callers
// logging from hot paths never wait on the disk or the network. Lines
// enqueued during a flush wait for the next one. If the durable write
// fails, the lines go back to the front of the buffer.
//
// [Queue.Run] is the background loop: it flushes on a ticker, when
// Enqueue reports the save threshold was reached, and once more on
// shutdown with a bounded timeout. Every failure is wrapped and passed
// to the configured error sink; nothing is retried until the next
// cycle.
package logqueue
