// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package loggly

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultEndpoint is the public Loggly log intake.
	DefaultEndpoint = "https://logs-01.loggly.com"

	// DefaultTag is used when no tags are configured.
	DefaultTag = "logship"
)

// BulkURL returns the bulk upload URL for apiKey and tags. An empty
// endpoint selects DefaultEndpoint; empty tags are dropped and an empty
// tag list becomes DefaultTag.
func BulkURL(endpoint, apiKey string, tags []string) (string, error) {
	if apiKey == "" {
		return "", errors.New("loggly: API key is required")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("loggly: parsing endpoint %q: %w", endpoint, err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return "", fmt.Errorf("loggly: endpoint %q must be an http or https URL", endpoint)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("loggly: endpoint %q has no host", endpoint)
	}

	var kept []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if strings.ContainsAny(tag, ",/") {
			return "", fmt.Errorf("loggly: tag %q contains ',' or '/'", tag)
		}
		kept = append(kept, url.PathEscape(tag))
	}
	if len(kept) == 0 {
		kept = []string{DefaultTag}
	}

	return fmt.Sprintf("%s/bulk/%s/tag/%s/",
		strings.TrimRight(endpoint, "/"),
		url.PathEscape(apiKey),
		strings.Join(kept, ","),
	), nil
}
