// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package drain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bureau-foundation/logship/lib/batch"
	"github.com/bureau-foundation/logship/lib/recordstore"
)

// fakeUploader records payloads and returns errors from errorSeq in
// order; nil entries and calls past the end succeed.
type fakeUploader struct {
	mu       sync.Mutex
	payloads [][]byte
	errorSeq []error
	index    int
}

func (f *fakeUploader) Upload(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make([]byte, len(payload))
	copy(copied, payload)
	f.payloads = append(f.payloads, copied)
	var err error
	if f.index < len(f.errorSeq) {
		err = f.errorSeq[f.index]
		f.index++
	}
	return err
}

// delivered returns the records of every payload, in upload order.
func (f *fakeUploader) delivered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lines []string
	for _, payload := range f.payloads {
		lines = append(lines, strings.Split(string(payload), "\n")...)
	}
	return lines
}

// failingDeleteStore wraps a real store and fails DeleteUpTo once.
type failingDeleteStore struct {
	*recordstore.Store
	fail bool
}

func (s *failingDeleteStore) DeleteUpTo(ctx context.Context, id int64) error {
	if s.fail {
		s.fail = false
		return fmt.Errorf("%w: injected", recordstore.ErrTransactionFailed)
	}
	return s.Store.DeleteUpTo(ctx, id)
}

func TestDrainEmptyStore(t *testing.T) {
	store := openStore(t)
	uploader := &fakeUploader{}

	result, err := Drain(context.Background(), store, uploader, Options{})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if result.State != StateDone || result.Batches != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(uploader.payloads) != 0 {
		t.Fatalf("expected no uploads, got %d", len(uploader.payloads))
	}
}

func TestDrainUploadsEverythingInOrder(t *testing.T) {
	store := openStore(t)
	texts := appendRecords(t, store, 40, 12)
	uploader := &fakeUploader{}

	result, err := Drain(context.Background(), store, uploader, Options{
		Batch: batch.Options{Limit: 100, PageSize: 7},
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if result.State != StateDone {
		t.Fatalf("state = %s, want done", result.State)
	}
	if result.Records != len(texts) {
		t.Fatalf("records = %d, want %d", result.Records, len(texts))
	}
	if result.Batches != len(uploader.payloads) || result.Batches < 2 {
		t.Fatalf("expected several batches, got %d (uploads %d)", result.Batches, len(uploader.payloads))
	}

	delivered := uploader.delivered()
	if len(delivered) != len(texts) {
		t.Fatalf("delivered %d records, want %d", len(delivered), len(texts))
	}
	for i := range texts {
		if delivered[i] != texts[i] {
			t.Fatalf("record %d: delivered %q, want %q", i, delivered[i], texts[i])
		}
	}
	for i, payload := range uploader.payloads {
		if len(payload) > 100 {
			t.Errorf("payload %d is %d bytes, over the 100-byte limit", i, len(payload))
		}
	}
	assertPending(t, store, 0)
}

func TestDrainStopsOnStatusError(t *testing.T) {
	store := openStore(t)
	// Ten 9-byte records, limit 20: two records per batch, five batches.
	texts := appendRecords(t, store, 10, 9)
	uploader := &fakeUploader{errorSeq: []error{nil, nil, &StatusError{Code: 503}}}
	options := Options{Batch: batch.Options{Limit: 20}}

	result, err := Drain(context.Background(), store, uploader, options)
	code, ok := IsStatus(err)
	if !ok || code != 503 {
		t.Fatalf("expected HTTP 503 status error, got %v", err)
	}
	if result.State != StateFailed || result.Batches != 2 || result.Records != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}
	// Batches 1 and 2 are gone; batch 3 onward is still pending.
	assertPending(t, store, 6)

	// The next drain starts with exactly the records of the failed
	// batch.
	retry := &fakeUploader{}
	if _, err := Drain(context.Background(), store, retry, options); err != nil {
		t.Fatalf("retry Drain: %v", err)
	}
	if got, want := string(retry.payloads[0]), texts[4]+"\n"+texts[5]; got != want {
		t.Fatalf("first retried payload = %q, want %q", got, want)
	}
	if len(retry.delivered()) != 6 {
		t.Fatalf("retry delivered %d records, want 6", len(retry.delivered()))
	}
	assertPending(t, store, 0)
}

func TestDrainStopsOnTransportError(t *testing.T) {
	store := openStore(t)
	appendRecords(t, store, 3, 5)
	transport := errors.New("connection refused")
	uploader := &fakeUploader{errorSeq: []error{transport}}

	result, err := Drain(context.Background(), store, uploader, Options{})
	if !errors.Is(err, transport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if _, ok := IsStatus(err); ok {
		t.Fatal("transport error must not look like a status error")
	}
	if result.State != StateFailed || result.Batches != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	assertPending(t, store, 3)
}

func TestDrainDeleteFailureLeadsToRedelivery(t *testing.T) {
	inner := openStore(t)
	texts := appendRecords(t, inner, 3, 5)
	store := &failingDeleteStore{Store: inner, fail: true}
	uploader := &fakeUploader{}

	_, err := Drain(context.Background(), store, uploader, Options{})
	if !errors.Is(err, recordstore.ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}
	assertPending(t, inner, 3)

	// The delivered-but-undeleted batch goes out again.
	if _, err := Drain(context.Background(), store, uploader, Options{}); err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if len(uploader.payloads) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(uploader.payloads))
	}
	want := strings.Join(texts, "\n")
	for i, payload := range uploader.payloads {
		if string(payload) != want {
			t.Errorf("upload %d = %q, want %q", i, payload, want)
		}
	}
	assertPending(t, inner, 0)
}

func TestDrainClearsUnencodableRecords(t *testing.T) {
	store := openStore(t)
	if err := store.AppendBatch(context.Background(), []string{"\xff\xfe"}); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	uploader := &fakeUploader{}

	result, err := Drain(context.Background(), store, uploader, Options{})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(uploader.payloads) != 0 {
		t.Fatalf("nothing encodable should be uploaded, got %d uploads", len(uploader.payloads))
	}
	if result.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", result.Skipped)
	}
	assertPending(t, store, 0)
}

func TestDrainCancelled(t *testing.T) {
	store := openStore(t)
	appendRecords(t, store, 2, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Drain(ctx, store, &fakeUploader{}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.State != StateFailed {
		t.Fatalf("state = %s, want failed", result.State)
	}
	assertPending(t, store, 2)
}

func TestStateString(t *testing.T) {
	if StateUploading.String() != "uploading" {
		t.Errorf("StateUploading = %q", StateUploading.String())
	}
	if State(42).String() != "unknown(42)" {
		t.Errorf("State(42) = %q", State(42).String())
	}
}

func openStore(t *testing.T) *recordstore.Store {
	t.Helper()
	store, err := recordstore.Open(recordstore.Config{Path: filepath.Join(t.TempDir(), "logs.sqlite")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// appendRecords stores count records of exactly width bytes each and
// returns their texts.
func appendRecords(t *testing.T, store *recordstore.Store, count, width int) []string {
	t.Helper()
	texts := make([]string, count)
	for i := range texts {
		prefix := fmt.Sprintf("r%d-", i)
		texts[i] = prefix + strings.Repeat("x", width-len(prefix))
	}
	if err := store.AppendBatch(context.Background(), texts); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	return texts
}

func assertPending(t *testing.T, store *recordstore.Store, want int64) {
	t.Helper()
	count, err := store.CountPending(context.Background())
	if err != nil {
		t.Fatalf("CountPending: %v", err)
	}
	if count != want {
		t.Fatalf("pending = %d, want %d", count, want)
	}
}
