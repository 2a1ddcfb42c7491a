// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordstore

import "errors"

var (
	// ErrStorageUnavailable reports that the store could not be
	// opened or created. The caller should retry on its next cycle.
	ErrStorageUnavailable = errors.New("recordstore: storage unavailable")

	// ErrTransactionFailed reports that an insert, query, or delete
	// failed. A failed insert leaves the store unchanged.
	ErrTransactionFailed = errors.New("recordstore: transaction failed")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("recordstore: store is closed")
)
