// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds HTTP response helpers shared by the uploader.
//
// Every helper bounds how much of a response body it reads, so a
// misbehaving endpoint cannot make the shipper buffer an unbounded
// reply. Bulk endpoints answer with a few bytes of JSON; anything
// larger is only ever used as error context.
package netutil

import (
	"io"
	"strings"
	"unicode/utf8"
)

// MaxResponseSize bounds ReadResponse: 1 MB.
const MaxResponseSize int64 = 1 << 20

// MaxErrorExcerpt is the longest body excerpt ErrorBody returns.
const MaxErrorExcerpt = 512

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ErrorBody returns a trimmed excerpt of an error response body for
// diagnostics. Read errors are ignored: a partial body is still useful
// in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxErrorExcerpt+utf8.UTFMax))
	excerpt := strings.TrimSpace(string(data))
	if len(excerpt) <= MaxErrorExcerpt {
		return excerpt
	}
	cut := MaxErrorExcerpt
	for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
		cut--
	}
	return excerpt[:cut] + "..."
}

// DiscardBody reads what is left of body, up to MaxResponseSize, so
// the connection can be reused, then closes it.
func DiscardBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
	body.Close()
}
