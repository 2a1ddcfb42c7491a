// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the exit path for the logship binary: an error
// that reaches main is written to stderr, where the structured logger
// may not exist yet, and the process exits non-zero.
package process
