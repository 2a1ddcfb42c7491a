// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

// ship reads lines from r and passes each non-empty one to enqueue
// until end of input or ctx is done. It returns the number of lines
// passed on. A read error other than EOF is returned after the lines
// before it have been handed over.
func ship(ctx context.Context, r io.Reader, enqueue func(line string)) (int, error) {
	type readResult struct {
		line string
		err  error
	}
	results := make(chan readResult)

	// The reader goroutine is abandoned on shutdown: a blocked read on
	// stdin cannot be interrupted, and the process is about to exit.
	go func() {
		reader := bufio.NewReaderSize(r, 64*1024)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				select {
				case results <- readResult{line: line}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				select {
				case results <- readResult{err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	count := 0
	for {
		select {
		case <-ctx.Done():
			return count, nil
		case result := <-results:
			if result.err != nil {
				if errors.Is(result.err, io.EOF) {
					return count, nil
				}
				return count, result.err
			}
			line := strings.TrimRight(result.line, "\r\n")
			if line == "" {
				continue
			}
			enqueue(line)
			count++
		}
	}
}
