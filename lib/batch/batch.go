// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package batch packs pending records into an upload payload under a
// hard byte ceiling.
//
// A batch is always a contiguous prefix of the unprocessed records in
// ascending id order: [Build] never skips an older record to fit a
// newer one. The payload is the record texts joined by a single '\n'.
// A record that alone exceeds the limit is sent as a batch of its own
// rather than blocking the queue forever.
package batch

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/logship/lib/recordstore"
)

const (
	// DefaultLimit is the default payload ceiling in bytes. It sits
	// under the 5 MB bulk limit of the remote endpoint.
	DefaultLimit = 5_000_000

	// DefaultPageSize is how many records Build reads per query.
	DefaultPageSize = 1000

	// Delimiter separates records in the payload.
	Delimiter = '\n'
)

// Source is the read side of the record store.
type Source interface {
	QueryAfter(ctx context.Context, after int64, limit int) ([]recordstore.Record, error)
}

// Options controls batch assembly. Zero values select the defaults.
type Options struct {
	// Limit is the maximum payload size in bytes.
	Limit int

	// PageSize is the number of records read per store query.
	PageSize int

	// Logger receives a warning for every skipped record. If nil, a
	// no-op logger is used.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Batch is one upload unit.
type Batch struct {
	// Payload is the member texts joined by Delimiter.
	Payload []byte

	// IDs are the member record ids in ascending order.
	IDs []int64

	// Skipped are ids of records that could not be encoded. They are
	// not in the payload but are deleted with the batch.
	Skipped []int64

	// Oversized is set when the batch is a single record larger than
	// the limit.
	Oversized bool
}

// Empty reports whether the store had nothing left to process.
func (b *Batch) Empty() bool {
	return len(b.IDs) == 0 && len(b.Skipped) == 0
}

// HighWater returns the largest id covered by the batch, members and
// skipped records alike. Deleting up to it acknowledges the batch.
// Returns 0 for an empty batch.
func (b *Batch) HighWater() int64 {
	var high int64
	if n := len(b.IDs); n > 0 {
		high = b.IDs[n-1]
	}
	if n := len(b.Skipped); n > 0 && b.Skipped[n-1] > high {
		high = b.Skipped[n-1]
	}
	return high
}

// Digest returns the hex BLAKE3 digest of the payload. Two deliveries
// of the same batch log the same digest.
func (b *Batch) Digest() string {
	sum := blake3.Sum256(b.Payload)
	return hex.EncodeToString(sum[:16])
}

// Build reads records from source in id order and packs as many as fit
// under the limit. An empty store produces an empty batch, not an
// error.
func Build(ctx context.Context, source Source, options Options) (*Batch, error) {
	options = options.withDefaults()

	batch := &Batch{
		Payload: make([]byte, 0, min(options.Limit, 64*1024)),
	}
	var cursor int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := source.QueryAfter(ctx, cursor, options.PageSize)
		if err != nil {
			return nil, fmt.Errorf("batch: reading records after %d: %w", cursor, err)
		}

		for _, record := range page {
			if !utf8.ValidString(record.Text) {
				options.Logger.Warn("skipping record with invalid UTF-8 text",
					"id", record.ID,
					"bytes", len(record.Text),
				)
				batch.Skipped = append(batch.Skipped, record.ID)
				cursor = record.ID
				continue
			}

			size := len(record.Text)
			if len(batch.IDs) > 0 {
				size++
			}
			if len(batch.Payload)+size > options.Limit {
				if len(batch.IDs) > 0 {
					return batch, nil
				}
				batch.add(record)
				batch.Oversized = true
				options.Logger.Warn("record exceeds batch limit, sending it alone",
					"id", record.ID,
					"bytes", len(record.Text),
					"limit", options.Limit,
				)
				return batch, nil
			}
			batch.add(record)
			cursor = record.ID
		}

		if len(page) < options.PageSize {
			return batch, nil
		}
	}
}

func (b *Batch) add(record recordstore.Record) {
	if len(b.IDs) > 0 {
		b.Payload = append(b.Payload, Delimiter)
	}
	b.Payload = append(b.Payload, record.Text...)
	b.IDs = append(b.IDs, record.ID)
}
