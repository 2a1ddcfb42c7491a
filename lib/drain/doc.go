// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package drain uploads pending records batch by batch and deletes
// each batch from the store once the remote endpoint accepts it.
//
// [Drain] is an iterative state machine over one store:
//
//	Idle ──build──▶ Uploading ──2xx──▶ Deleting ──ok──▶ Idle
//	  │                 │                  │
//	  └─empty─▶ Done    └─error─▶ Failed ◀─┘
//
// A failed upload leaves the batch in the store; a failed delete
// leaves an already-delivered batch in the store, which the next drain
// uploads again. Delivery is therefore at least once. Drain never
// retries on its own: the caller decides when to run it again.
//
// Upload failures are either a [*StatusError] (the endpoint answered
// with a non-2xx status) or any other error from the [Uploader]
// (transport failure, timeout).
package drain
