// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package loggly uploads batch payloads to a Loggly bulk endpoint.
//
// A payload is newline-separated events, POSTed as text/plain to
//
//	{endpoint}/bulk/{api key}/tag/{tag1,tag2}/
//
// Any 2xx response means the whole payload was accepted. Any other
// status is returned as a [*drain.StatusError] carrying a short excerpt
// of the response body; network failures and timeouts are returned as
// wrapped transport errors. The client never retries: the flush loop
// owns retry timing.
//
// The body may be compressed with gzip or zstd (Content-Encoding). The
// batch size ceiling applies to the uncompressed payload.
package loggly
