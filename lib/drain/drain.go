// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package drain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/logship/lib/batch"
)

// Uploader sends one payload to the remote endpoint. A nil error means
// the endpoint acknowledged the whole payload.
type Uploader interface {
	Upload(ctx context.Context, payload []byte) error
}

// Store is the part of the record store a drain needs.
type Store interface {
	batch.Source
	DeleteUpTo(ctx context.Context, id int64) error
}

// StatusError reports a non-2xx response from the endpoint.
type StatusError struct {
	// Code is the HTTP status code.
	Code int

	// Body is a short excerpt of the response body, if any.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("endpoint returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("endpoint returned HTTP %d: %s", e.Code, e.Body)
}

// State is a step of the drain state machine.
type State int

const (
	StateIdle State = iota
	StateUploading
	StateDeleting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateDeleting:
		return "deleting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Options configures a drain.
type Options struct {
	// Batch controls batch assembly.
	Batch batch.Options

	// Logger receives per-batch progress. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Result summarizes one Drain call. On failure it counts only the
// batches that were uploaded and deleted before the failure.
type Result struct {
	// State is StateDone or StateFailed.
	State State

	// Batches is the number of batches uploaded and deleted.
	Batches int

	// Records is the number of records uploaded and deleted.
	Records int

	// Skipped is the number of unencodable records deleted without
	// being uploaded.
	Skipped int

	// Bytes is the total uploaded payload size.
	Bytes int64
}

// Drain uploads and deletes batches until the store is empty or a step
// fails. It returns the first error; records not yet deleted stay in
// the store for the next call.
func Drain(ctx context.Context, store Store, uploader Uploader, options Options) (Result, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if options.Batch.Logger == nil {
		options.Batch.Logger = logger
	}

	var (
		result  Result
		current *batch.Batch
		failure error
	)
	state := StateIdle

	for {
		switch state {
		case StateIdle:
			if err := ctx.Err(); err != nil {
				failure = err
				state = StateFailed
				continue
			}
			built, err := batch.Build(ctx, store, options.Batch)
			if err != nil {
				failure = fmt.Errorf("drain: building batch: %w", err)
				state = StateFailed
				continue
			}
			current = built
			switch {
			case current.Empty():
				state = StateDone
			case len(current.IDs) == 0:
				// Nothing encodable, only skipped records to clear.
				state = StateDeleting
			default:
				state = StateUploading
			}

		case StateUploading:
			if err := uploader.Upload(ctx, current.Payload); err != nil {
				failure = fmt.Errorf("drain: uploading batch of %d records (%d bytes, digest %s): %w",
					len(current.IDs), len(current.Payload), current.Digest(), err)
				state = StateFailed
				continue
			}
			logger.Debug("batch uploaded",
				"records", len(current.IDs),
				"batch_bytes", len(current.Payload),
				"batch_digest", current.Digest(),
				"oversized", current.Oversized,
			)
			state = StateDeleting

		case StateDeleting:
			highWater := current.HighWater()
			if err := store.DeleteUpTo(ctx, highWater); err != nil {
				failure = fmt.Errorf("drain: deleting records up to %d after upload: %w", highWater, err)
				state = StateFailed
				continue
			}
			if len(current.IDs) > 0 {
				result.Batches++
			}
			result.Records += len(current.IDs)
			result.Skipped += len(current.Skipped)
			result.Bytes += int64(len(current.Payload))
			current = nil
			state = StateIdle

		case StateDone:
			result.State = StateDone
			if result.Batches > 0 || result.Skipped > 0 {
				logger.Info("drain complete",
					"batches", result.Batches,
					"records", result.Records,
					"skipped", result.Skipped,
					"bytes", result.Bytes,
				)
			}
			return result, nil

		case StateFailed:
			result.State = StateFailed
			return result, failure

		default:
			return result, errors.New("drain: invalid state " + state.String())
		}
	}
}

// IsStatus reports whether err carries a *StatusError, and returns its
// code.
func IsStatus(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code, true
	}
	return 0, false
}
