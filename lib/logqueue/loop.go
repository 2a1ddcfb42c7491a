// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logqueue

import (
	"context"
	"time"
)

// Run flushes on the ticker and on every Notify until ctx is done,
// then makes one final flush bounded by the shutdown timeout. Flush
// errors go to the error sink; Run returns once the final flush ends.
func (q *Queue) Run(ctx context.Context) {
	var tick <-chan time.Time
	if q.flushInterval > 0 {
		ticker := q.clock.NewTicker(q.flushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			q.finalFlush()
			return
		case <-tick:
			_ = q.Flush(ctx)
		case <-q.notify:
			_ = q.Flush(ctx)
		}
	}
}

// finalFlush gives lines buffered during shutdown one chance to reach
// the store and the endpoint.
func (q *Queue) finalFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), q.shutdownTimeout)
	defer cancel()

	if err := q.Flush(ctx); err != nil {
		q.logger.Warn("final flush incomplete, records stay in the store", "error", err)
		return
	}
	q.logger.Info("final flush complete", "buffered", q.Buffered())
}
