// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package loggly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bureau-foundation/logship/lib/clock"
	"github.com/bureau-foundation/logship/lib/drain"
	"github.com/bureau-foundation/logship/lib/netutil"
	"github.com/bureau-foundation/logship/lib/version"
)

// DefaultUploadTimeout bounds one upload request.
const DefaultUploadTimeout = 30 * time.Second

// Config holds the parameters for a Client.
type Config struct {
	// Endpoint is the intake base URL. Defaults to DefaultEndpoint.
	Endpoint string

	// APIKey is the customer token. Required.
	APIKey string

	// Tags are attached to every event. Defaults to DefaultTag.
	Tags []string

	// Compression selects the request Content-Encoding.
	Compression Compression

	// UploadTimeout bounds each request. Defaults to
	// DefaultUploadTimeout. Ignored when HTTPClient is set.
	UploadTimeout time.Duration

	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client

	// Clock times each request. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives per-request debug output. If nil, a no-op
	// logger is used.
	Logger *slog.Logger
}

// Client is a drain.Uploader for the Loggly bulk API.
type Client struct {
	url         string
	host        string
	compression Compression
	httpClient  *http.Client
	userAgent   string
	clock       clock.Clock
	logger      *slog.Logger
}

// NewClient validates config and returns a Client.
func NewClient(config Config) (*Client, error) {
	bulkURL, err := BulkURL(config.Endpoint, config.APIKey, config.Tags)
	if err != nil {
		return nil, err
	}
	// The key is a path segment of bulkURL; only the host is safe to
	// put in errors and logs.
	parsed, err := url.Parse(bulkURL)
	if err != nil {
		return nil, fmt.Errorf("loggly: parsing bulk URL: %w", err)
	}
	if config.Compression > CompressionZstd {
		return nil, fmt.Errorf("loggly: unsupported compression %s", config.Compression)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.UploadTimeout
		if timeout <= 0 {
			timeout = DefaultUploadTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		url:         bulkURL,
		host:        parsed.Host,
		compression: config.Compression,
		httpClient:  httpClient,
		userAgent:   "logship/" + version.Short(),
		clock:       clk,
		logger:      logger,
	}, nil
}

// Upload POSTs payload to the bulk endpoint. A 2xx response returns
// nil; any other status returns a *drain.StatusError.
func (c *Client) Upload(ctx context.Context, payload []byte) error {
	body, encoding, err := c.compression.encode(payload)
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("loggly: building request: %w", err)
	}
	request.Header.Set("Content-Type", "text/plain")
	request.Header.Set("User-Agent", c.userAgent)
	if encoding != "" {
		request.Header.Set("Content-Encoding", encoding)
	}

	start := c.clock.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		// *url.Error quotes the full URL, API key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
		}
		return fmt.Errorf("loggly: posting %d bytes to %s: %w", len(body), c.host, err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		statusErr := &drain.StatusError{
			Code: response.StatusCode,
			Body: netutil.ErrorBody(response.Body),
		}
		netutil.DiscardBody(response.Body)
		return fmt.Errorf("loggly: bulk upload rejected: %w", statusErr)
	}
	ack, readErr := netutil.ReadResponse(response.Body)
	response.Body.Close()
	if readErr != nil {
		// The status already acknowledged the payload.
		c.logger.Debug("reading bulk acknowledgement failed", "error", readErr)
	}

	c.logger.Debug("bulk upload accepted",
		"status", response.StatusCode,
		"payload_bytes", len(payload),
		"body_bytes", len(body),
		"compression", c.compression.String(),
		"duration", c.clock.Now().Sub(start),
		"ack", string(bytes.TrimSpace(ack)),
	)
	return nil
}

// IsRejected reports whether err is an HTTP rejection from the
// endpoint rather than a transport failure.
func IsRejected(err error) bool {
	var statusErr *drain.StatusError
	return errors.As(err, &statusErr)
}
