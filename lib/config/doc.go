// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the logship YAML configuration.
//
// Configuration comes from a single file named by the LOGSHIP_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no search path and no fallback file.
//
// The file may carry development, staging, and production sections that
// override base values when [Config].Environment matches. Production
// without its own section gets stricter defaults: FULL synchronous
// writes and gzip upload bodies.
//
// After loading, ${VAR} and ${VAR:-default} are expanded in paths.state,
// loggly.api_key, and loggly.endpoint, so the API key can live in the
// environment instead of the file:
//
//	loggly:
//	  api_key: ${LOGGLY_TOKEN}
//
// This package depends on no other logship packages.
package config
