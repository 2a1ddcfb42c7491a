// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package loggly

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression selects the Content-Encoding of upload bodies.
type Compression uint8

const (
	// CompressionNone sends the payload as is.
	CompressionNone Compression = iota

	// CompressionGzip sends Content-Encoding: gzip.
	CompressionGzip

	// CompressionZstd sends Content-Encoding: zstd.
	CompressionZstd
)

// String returns the configuration name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a configuration name. The empty string means
// none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("loggly: unknown compression %q (want none, gzip, or zstd)", name)
	}
}

// zstdEncoder is shared; EncodeAll is safe for concurrent use.
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("loggly: zstd encoder initialization failed: " + err.Error())
	}
}

// encode returns the request body for payload and its Content-Encoding
// value, empty for none.
func (c Compression) encode(payload []byte) ([]byte, string, error) {
	switch c {
	case CompressionNone:
		return payload, "", nil

	case CompressionGzip:
		var buffer bytes.Buffer
		writer := gzip.NewWriter(&buffer)
		if _, err := writer.Write(payload); err != nil {
			return nil, "", fmt.Errorf("loggly: gzip: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, "", fmt.Errorf("loggly: gzip: %w", err)
		}
		return buffer.Bytes(), "gzip", nil

	case CompressionZstd:
		return zstdEncoder.EncodeAll(payload, make([]byte, 0, len(payload)/4)), "zstd", nil

	default:
		return nil, "", fmt.Errorf("loggly: unsupported compression %s", c)
	}
}
