// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package loggly

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/bureau-foundation/logship/lib/clock"
	"github.com/bureau-foundation/logship/lib/drain"
)

// capturedRequest is what the test server saw.
type capturedRequest struct {
	method   string
	path     string
	header   http.Header
	body     []byte
	encoding string
}

// newServer starts an intake that records every request and answers
// with status and reply.
func newServer(t *testing.T, status int, reply string) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading request body: %v", err)
		}
		requests <- capturedRequest{
			method:   r.Method,
			path:     r.URL.Path,
			header:   r.Header.Clone(),
			body:     body,
			encoding: r.Header.Get("Content-Encoding"),
		}
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(server.Close)
	return server, requests
}

func TestUploadPlainPayload(t *testing.T) {
	server, requests := newServer(t, http.StatusOK, `{"response":"ok"}`)
	client, err := NewClient(Config{
		Endpoint: server.URL,
		APIKey:   "token-123",
		Tags:     []string{"checkout", "ios"},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	payload := []byte(`{"message":"a"}` + "\n" + `{"message":"b"}`)
	if err := client.Upload(context.Background(), payload); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	request := <-requests
	if request.method != http.MethodPost {
		t.Errorf("method = %s, want POST", request.method)
	}
	if request.path != "/bulk/token-123/tag/checkout,ios/" {
		t.Errorf("path = %s", request.path)
	}
	if got := request.header.Get("Content-Type"); got != "text/plain" {
		t.Errorf("Content-Type = %q", got)
	}
	if request.encoding != "" {
		t.Errorf("unexpected Content-Encoding %q", request.encoding)
	}
	if !strings.HasPrefix(request.header.Get("User-Agent"), "logship/") {
		t.Errorf("User-Agent = %q", request.header.Get("User-Agent"))
	}
	if !bytes.Equal(request.body, payload) {
		t.Errorf("body = %q, want %q", request.body, payload)
	}
}

func TestUploadAcceptsAny2xx(t *testing.T) {
	server, _ := newServer(t, http.StatusAccepted, "")
	client := newClient(t, Config{Endpoint: server.URL, APIKey: "k"})
	if err := client.Upload(context.Background(), []byte("x")); err != nil {
		t.Fatalf("202 must count as success: %v", err)
	}
}

func TestUploadCompressed(t *testing.T) {
	payload := []byte(strings.Repeat(`{"log_level":"info","message":"request served"}`+"\n", 200))
	payload = bytes.TrimSuffix(payload, []byte("\n"))

	decoders := map[Compression]func(t *testing.T, body []byte) []byte{
		CompressionGzip: func(t *testing.T, body []byte) []byte {
			reader, err := gzip.NewReader(bytes.NewReader(body))
			if err != nil {
				t.Fatalf("gzip.NewReader: %v", err)
			}
			decoded, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("reading gzip body: %v", err)
			}
			return decoded
		},
		CompressionZstd: func(t *testing.T, body []byte) []byte {
			decoder, err := zstd.NewReader(nil)
			if err != nil {
				t.Fatalf("zstd.NewReader: %v", err)
			}
			defer decoder.Close()
			decoded, err := decoder.DecodeAll(body, nil)
			if err != nil {
				t.Fatalf("decoding zstd body: %v", err)
			}
			return decoded
		},
	}

	for compression, decode := range decoders {
		t.Run(compression.String(), func(t *testing.T) {
			server, requests := newServer(t, http.StatusOK, "")
			client := newClient(t, Config{Endpoint: server.URL, APIKey: "k", Compression: compression})

			if err := client.Upload(context.Background(), payload); err != nil {
				t.Fatalf("Upload: %v", err)
			}
			request := <-requests
			if request.encoding != compression.String() {
				t.Fatalf("Content-Encoding = %q, want %q", request.encoding, compression.String())
			}
			if len(request.body) >= len(payload) {
				t.Errorf("compressed body (%d bytes) not smaller than payload (%d bytes)", len(request.body), len(payload))
			}
			if !bytes.Equal(decode(t, request.body), payload) {
				t.Fatal("decoded body differs from payload")
			}
		})
	}
}

func TestUploadRejected(t *testing.T) {
	server, _ := newServer(t, http.StatusForbidden, "  invalid customer token\n")
	client := newClient(t, Config{Endpoint: server.URL, APIKey: "bad"})

	err := client.Upload(context.Background(), []byte("x"))
	var statusErr *drain.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *drain.StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusForbidden {
		t.Errorf("Code = %d, want 403", statusErr.Code)
	}
	if statusErr.Body != "invalid customer token" {
		t.Errorf("Body = %q", statusErr.Body)
	}
	if !IsRejected(err) {
		t.Error("IsRejected = false for a 403")
	}
}

func TestUploadTransportFailure(t *testing.T) {
	server, _ := newServer(t, http.StatusOK, "")
	client := newClient(t, Config{Endpoint: server.URL, APIKey: "k"})
	server.Close()

	err := client.Upload(context.Background(), []byte("x"))
	if err == nil {
		t.Fatal("expected transport error")
	}
	if IsRejected(err) {
		t.Fatalf("transport failure reported as rejection: %v", err)
	}
}

func TestUploadTransportFailureHidesAPIKey(t *testing.T) {
	server, _ := newServer(t, http.StatusOK, "")
	const apiKey = "secret-customer-token"
	client := newClient(t, Config{Endpoint: server.URL, APIKey: apiKey})
	host := server.Listener.Addr().String()
	server.Close()

	err := client.Upload(context.Background(), []byte("x"))
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), apiKey) {
		t.Fatalf("error text exposes the API key: %v", err)
	}
	if !strings.Contains(err.Error(), host) {
		t.Errorf("error should name the endpoint host %s: %v", host, err)
	}
}

func TestUploadLogsAcknowledgement(t *testing.T) {
	server, _ := newServer(t, http.StatusOK, "{\"response\":\"ok\"}\n")
	var output bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&output, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := newClient(t, Config{
		Endpoint: server.URL,
		APIKey:   "k",
		Clock:    clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Logger:   logger,
	})

	if err := client.Upload(context.Background(), []byte("x")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	logged := output.String()
	if !strings.Contains(logged, `"ack":"{\"response\":\"ok\"}"`) {
		t.Errorf("acknowledgement body not logged: %s", logged)
	}
	// The fake clock does not move during the request.
	if !strings.Contains(logged, `"duration":0`) {
		t.Errorf("duration not taken from the clock: %s", logged)
	}
}

func TestUploadTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client := newClient(t, Config{Endpoint: server.URL, APIKey: "k", UploadTimeout: 50 * time.Millisecond})
	err := client.Upload(context.Background(), []byte("x"))
	if err == nil {
		t.Fatal("expected timeout")
	}
	if IsRejected(err) {
		t.Fatalf("timeout reported as rejection: %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := NewClient(Config{APIKey: "k", Compression: Compression(9)}); err == nil {
		t.Error("expected error for unknown compression")
	}
}

func newClient(t *testing.T, config Config) *Client {
	t.Helper()
	client, err := NewClient(config)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}
