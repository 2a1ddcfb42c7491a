// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by logship tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern used when a test waits on a goroutine, so individual tests
// never call time.After themselves. [UniqueID] produces distinct log
// lines for tests that must tell records apart after a round trip
// through the store.
//
// Helpers call t.Fatalf on failure.
package testutil
