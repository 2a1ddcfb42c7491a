// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// logship reads log lines from stdin and ships them to a Loggly bulk
// endpoint through a durable on-disk queue.
//
//	my-service 2>&1 | logship --config /etc/logship.yaml --tag my-service
//
// Each line becomes one event: by default it is wrapped as a slog record
// and rendered as a JSON event with timestamp, level, and tag fields;
// with --raw the line is sent as is, with any newlines replaced. Lines
// are buffered in memory, written to a SQLite spool, and uploaded by a
// background loop on an interval or when the buffer reaches the save
// threshold. Records survive crashes and network outages and are
// uploaded on the next run.
//
// On SIGINT, SIGTERM, or end of input logship makes a final flush with
// a bounded timeout and exits. Whatever could not be uploaded stays in
// the spool.
//
// logship --status prints the number of records waiting in the spool
// and exits without reading stdin.
package main
