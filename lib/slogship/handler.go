// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package slogship is a slog.Handler that ships records through a
// logqueue.Queue.
//
// Handle formats the record on the calling goroutine and hands the line
// to the queue, which only appends it to memory. The queue's Run loop
// does all disk and network work, so logging never blocks on either.
//
//	queue, _ := logqueue.New(cfg)
//	go queue.Run(ctx)
//	logger := slog.New(slogship.New(queue, slogship.Options{}))
//	logger.Info("request served", "tag", "http", "status", 200)
package slogship

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/logship/lib/logformat"
)

// Enqueuer accepts formatted lines. *logqueue.Queue satisfies it.
type Enqueuer interface {
	Enqueue(text string) bool
}

// Options configures a Handler.
type Options struct {
	// Level is the minimum level shipped. Defaults to slog.LevelInfo.
	Level slog.Leveler

	// Formatter renders records. Defaults to logformat.New with
	// default options.
	Formatter *logformat.Formatter
}

// Handler formats records and enqueues them.
type Handler struct {
	queue     Enqueuer
	formatter *logformat.Formatter
	level     slog.Leveler

	// attrs are already nested under the groups open when they were
	// added.
	attrs  []slog.Attr
	groups []string
}

// New returns a Handler feeding queue.
func New(queue Enqueuer, options Options) *Handler {
	formatter := options.Formatter
	if formatter == nil {
		formatter = logformat.New(logformat.Options{})
	}
	level := options.Level
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{queue: queue, formatter: formatter, level: level}
}

// Enabled reports whether level reaches the configured minimum.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats r with the handler's attributes and enqueues it.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	record := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	record.AddAttrs(h.attrs...)

	own := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(attr slog.Attr) bool {
		own = append(own, attr)
		return true
	})
	record.AddAttrs(nest(h.groups, own)...)

	h.queue.Enqueue(h.formatter.Format(record))
	return nil
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), nest(h.groups, attrs)...)
	return &clone
}

// WithGroup returns a handler that nests later attributes under name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

// nest wraps attrs in the open groups, innermost last.
func nest(groups []string, attrs []slog.Attr) []slog.Attr {
	if len(groups) == 0 || len(attrs) == 0 {
		return attrs
	}
	for i := len(groups) - 1; i >= 0; i-- {
		members := make([]any, len(attrs))
		for j, attr := range attrs {
			members[j] = attr
		}
		attrs = []slog.Attr{slog.Group(groups[i], members...)}
	}
	return attrs
}
