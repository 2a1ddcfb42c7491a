// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/logship/lib/batch"
	"github.com/bureau-foundation/logship/lib/clock"
	"github.com/bureau-foundation/logship/lib/drain"
	"github.com/bureau-foundation/logship/lib/recordstore"
)

const (
	// DefaultFlushInterval is how often Run flushes when nothing
	// else triggers it.
	DefaultFlushInterval = 10 * time.Second

	// DefaultShutdownTimeout bounds the final flush made by Run.
	DefaultShutdownTimeout = 5 * time.Second
)

// ErrClosed is returned by Flush and Pending after Close.
var ErrClosed = errors.New("logqueue: queue is closed")

// Store is everything the queue needs from the record store.
// *recordstore.Store satisfies it.
type Store interface {
	drain.Store
	AppendBatch(ctx context.Context, texts []string) error
	CountPending(ctx context.Context) (int64, error)
	Close() error
}

// Config holds the parameters for a Queue.
type Config struct {
	// Path is the SQLite file used when Open is nil.
	Path string

	// Synchronous is the SQLite synchronous level used when Open is
	// nil. Empty means NORMAL.
	Synchronous string

	// Open returns the store. It is called on the first flush and
	// again after a failed attempt. If nil, the queue opens a
	// recordstore at Path.
	Open func() (Store, error)

	// Uploader sends payloads to the remote endpoint. Required.
	Uploader drain.Uploader

	// BatchLimit is the payload ceiling in bytes. Zero selects
	// batch.DefaultLimit.
	BatchLimit int

	// PageSize is the number of records read per store query. Zero
	// selects batch.DefaultPageSize.
	PageSize int

	// SaveThreshold is the buffer length at which Enqueue asks for a
	// flush. Zero disables threshold flushing.
	SaveThreshold int

	// FlushInterval is the period of the Run ticker. Zero selects
	// DefaultFlushInterval; negative disables the ticker.
	FlushInterval time.Duration

	// ShutdownTimeout bounds the final flush of Run. Zero selects
	// DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// ErrorSink receives every flush failure. If nil, failures are
	// logged at Error level.
	ErrorSink func(error)

	// Clock drives the Run ticker. If nil, the real clock is used.
	Clock clock.Clock

	// Logger receives flush progress. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Stats are cumulative counters since New.
type Stats struct {
	Buffered int
	Flushes  uint64
	Failures uint64
	Batches  uint64
	Records  uint64
	Bytes    uint64
}

// Queue is the flush coordinator. All methods are safe for concurrent
// use.
type Queue struct {
	open            func() (Store, error)
	uploader        drain.Uploader
	batchOptions    batch.Options
	saveThreshold   int
	flushInterval   time.Duration
	shutdownTimeout time.Duration
	errorSink       func(error)
	clock           clock.Clock
	logger          *slog.Logger

	// notify has capacity 1 so a pending flush request is never lost
	// and Enqueue never blocks.
	notify chan struct{}

	// openMu serializes lazy opens between Flush and Pending.
	openMu sync.Mutex

	mu       sync.Mutex
	idle     *sync.Cond
	buffered []string
	flushing bool
	closed   bool
	store    Store
	stats    Stats
}

// New validates cfg and returns a Queue. No storage is touched until
// the first Flush.
func New(cfg Config) (*Queue, error) {
	if cfg.Uploader == nil {
		return nil, errors.New("logqueue: Uploader is required")
	}
	if cfg.Open == nil && cfg.Path == "" {
		return nil, errors.New("logqueue: Path or Open is required")
	}
	if cfg.SaveThreshold < 0 {
		return nil, fmt.Errorf("logqueue: negative SaveThreshold %d", cfg.SaveThreshold)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	open := cfg.Open
	if open == nil {
		path, synchronous := cfg.Path, cfg.Synchronous
		open = func() (Store, error) {
			return recordstore.Open(recordstore.Config{
				Path:        path,
				Synchronous: synchronous,
				Logger:      logger,
			})
		}
	}

	interval := cfg.FlushInterval
	if interval == 0 {
		interval = DefaultFlushInterval
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	q := &Queue{
		open:     open,
		uploader: cfg.Uploader,
		batchOptions: batch.Options{
			Limit:    cfg.BatchLimit,
			PageSize: cfg.PageSize,
			Logger:   logger,
		},
		saveThreshold:   cfg.SaveThreshold,
		flushInterval:   interval,
		shutdownTimeout: shutdownTimeout,
		errorSink:       cfg.ErrorSink,
		clock:           clk,
		logger:          logger,
		notify:          make(chan struct{}, 1),
	}
	if q.errorSink == nil {
		q.errorSink = func(err error) {
			logger.Error("log shipping failed", "error", err)
		}
	}
	q.idle = sync.NewCond(&q.mu)
	return q, nil
}

// Enqueue appends text to the in-memory buffer. It reports whether the
// buffer has reached the save threshold, in which case it has also
// asked the Run loop for a flush.
func (q *Queue) Enqueue(text string) bool {
	q.mu.Lock()
	q.buffered = append(q.buffered, text)
	reached := q.saveThreshold > 0 && len(q.buffered) >= q.saveThreshold
	q.mu.Unlock()

	if reached {
		q.Notify()
	}
	return reached
}

// Notify asks the Run loop for a flush without blocking. Requests made
// while one is already pending are merged.
func (q *Queue) Notify() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Buffered returns the number of lines not yet written to the store.
func (q *Queue) Buffered() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffered)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := q.stats
	stats.Buffered = len(q.buffered)
	return stats
}

// Pending returns the number of records in the store, opening it if
// needed. Buffered lines are not counted.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	store, err := q.storeHandle()
	if err != nil {
		return 0, err
	}
	count, err := store.CountPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("logqueue: counting pending records: %w", err)
	}
	return count, nil
}

// Flush runs one persist-and-drain cycle. If a cycle is already
// running it returns nil without touching the buffer or the store.
// Every failure is reported to the error sink; the first one is also
// returned.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if q.flushing {
		q.mu.Unlock()
		q.logger.Debug("flush already in progress, skipping")
		return nil
	}
	q.flushing = true
	q.stats.Flushes++
	q.mu.Unlock()

	defer q.release()

	store, err := q.storeHandle()
	if err != nil {
		q.fail(err)
		return err
	}

	var first error
	if pending := q.takeBuffer(); len(pending) > 0 {
		if err := store.AppendBatch(ctx, pending); err != nil {
			q.restoreBuffer(pending)
			first = fmt.Errorf("logqueue: persisting %d buffered records: %w", len(pending), err)
			q.fail(first)
		} else {
			q.logger.Debug("buffer persisted", "records", len(pending))
		}
	}

	result, err := drain.Drain(ctx, store, q.uploader, drain.Options{
		Batch:  q.batchOptions,
		Logger: q.logger,
	})
	q.record(result)
	if err != nil {
		err = fmt.Errorf("logqueue: draining store: %w", err)
		q.fail(err)
		if first == nil {
			first = err
		}
	}
	return first
}

// Close waits for a running flush to finish and closes the store. Lines
// still buffered are discarded; Run makes a final flush before
// returning, so callers that stop Run first lose nothing.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for q.flushing {
		q.idle.Wait()
	}
	store := q.store
	q.store = nil
	dropped := len(q.buffered)
	q.buffered = nil
	q.mu.Unlock()

	if dropped > 0 {
		q.logger.Warn("closing queue with unpersisted records", "dropped", dropped)
	}
	if store == nil {
		return nil
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("logqueue: closing store: %w", err)
	}
	return nil
}

// storeHandle returns the cached store, opening it on first use. A
// failed open is not cached.
func (q *Queue) storeHandle() (Store, error) {
	q.openMu.Lock()
	defer q.openMu.Unlock()

	q.mu.Lock()
	store, closed := q.store, q.closed
	q.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if store != nil {
		return store, nil
	}

	store, err := q.open()
	if err != nil {
		return nil, fmt.Errorf("logqueue: opening store: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		store.Close()
		return nil, ErrClosed
	}
	q.store = store
	return store, nil
}

// takeBuffer swaps the buffer out so Enqueue can keep appending while
// the swapped lines are written.
func (q *Queue) takeBuffer() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.buffered
	q.buffered = nil
	return pending
}

// restoreBuffer puts lines that failed to persist back in front of
// anything enqueued since takeBuffer.
func (q *Queue) restoreBuffer(pending []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buffered = append(pending, q.buffered...)
}

func (q *Queue) release() {
	q.mu.Lock()
	q.flushing = false
	q.idle.Broadcast()
	q.mu.Unlock()
}

func (q *Queue) record(result drain.Result) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stats.Batches += uint64(result.Batches)
	q.stats.Records += uint64(result.Records)
	q.stats.Bytes += uint64(result.Bytes)
}

func (q *Queue) fail(err error) {
	q.mu.Lock()
	q.stats.Failures++
	q.mu.Unlock()
	q.errorSink(err)
}
