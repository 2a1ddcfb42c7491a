// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logformat renders slog records as single-line JSON events for
// the bulk endpoint.
//
// Each event is a flat JSON object of string values:
//
//	{"file":"server.go","function":"main.serve","line_number":"42",
//	 "log_level":"info","log_tag":"http","message":"request served",
//	 "timestamp":"2026-01-02T15:04:05+02:00","status":"200"}
//
// Record attributes become fields (groups are flattened with "."), then
// fields from the optional [FieldSource] are added, and the fixed fields
// above are written last so they always win a name collision. The
// bulk format separates events with '\n', so every newline inside a
// value is replaced with [DefaultNewlineReplacement] and the output
// never contains one.
package logformat
