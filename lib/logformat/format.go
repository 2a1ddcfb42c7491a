// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logformat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultNewlineReplacement stands in for '\n' inside values.
	DefaultNewlineReplacement = " <br> "

	// DefaultTimeLayout is RFC 3339 at second precision with a numeric
	// offset.
	DefaultTimeLayout = "2006-01-02T15:04:05Z07:00"

	// DefaultTagKey is the attribute rendered as log_tag.
	DefaultTagKey = "tag"

	// LevelVerbose is below debug, for very chatty output.
	LevelVerbose = slog.Level(-8)
)

// FieldSource supplies extra fields for a record, such as a device or
// session id.
type FieldSource interface {
	Fields(record slog.Record) map[string]string
}

// FieldSourceFunc adapts a function to FieldSource.
type FieldSourceFunc func(record slog.Record) map[string]string

// Fields calls f.
func (f FieldSourceFunc) Fields(record slog.Record) map[string]string { return f(record) }

// Options configures a Formatter. Zero values select the defaults.
type Options struct {
	NewlineReplacement string
	TimeLayout         string
	Location           *time.Location
	TagKey             string
	FieldSource        FieldSource
}

// Formatter turns records into event lines. It is safe for concurrent
// use.
type Formatter struct {
	scrubber    *strings.Replacer
	timeLayout  string
	location    *time.Location
	tagKey      string
	fieldSource FieldSource
}

// New returns a Formatter for options.
func New(options Options) *Formatter {
	replacement := options.NewlineReplacement
	if replacement == "" {
		replacement = DefaultNewlineReplacement
	}
	layout := options.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}
	location := options.Location
	if location == nil {
		location = time.Local
	}
	tagKey := options.TagKey
	if tagKey == "" {
		tagKey = DefaultTagKey
	}
	return &Formatter{
		scrubber:    strings.NewReplacer("\r\n", replacement, "\n", replacement),
		timeLayout:  layout,
		location:    location,
		tagKey:      tagKey,
		fieldSource: options.FieldSource,
	}
}

// Format renders record as one JSON object with no '\n'.
func (f *Formatter) Format(record slog.Record) string {
	fields := make(map[string]string, record.NumAttrs()+8)

	var tag string
	hasTag := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == f.tagKey && !hasTag {
			tag = attr.Value.Resolve().String()
			hasTag = true
			return true
		}
		f.addAttr(fields, "", attr)
		return true
	})

	if f.fieldSource != nil {
		for key, value := range f.fieldSource.Fields(record) {
			fields[key] = value
		}
	}

	file, function, line := caller(record.PC)
	fields["timestamp"] = record.Time.In(f.location).Format(f.timeLayout)
	fields["log_level"] = LevelName(record.Level)
	fields["message"] = record.Message
	fields["file"] = file
	fields["function"] = function
	fields["line_number"] = strconv.Itoa(line)
	if hasTag {
		fields["log_tag"] = tag
	}

	for key, value := range fields {
		fields[key] = f.scrubber.Replace(value)
	}
	return encode(fields)
}

// Scrub replaces newlines in text, for lines that bypass Format.
func (f *Formatter) Scrub(text string) string {
	return f.scrubber.Replace(text)
}

// addAttr flattens attr into fields under prefix.
func (f *Formatter) addAttr(fields map[string]string, prefix string, attr slog.Attr) {
	value := attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	switch value.Kind() {
	case slog.KindGroup:
		group := value.Group()
		if len(group) == 0 {
			return
		}
		// Inline groups have an empty key.
		if attr.Key == "" {
			key = prefix
		}
		for _, member := range group {
			f.addAttr(fields, key, member)
		}
	case slog.KindTime:
		fields[key] = value.Time().In(f.location).Format(f.timeLayout)
	default:
		fields[key] = value.String()
	}
}

// LevelName maps a level to its bulk field value. Levels between the
// named ones round down; anything below LevelVerbose is unknown[N].
func LevelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warning"
	case level >= slog.LevelInfo:
		return "info"
	case level >= slog.LevelDebug:
		return "debug"
	case level >= LevelVerbose:
		return "verbose"
	default:
		return fmt.Sprintf("unknown[%d]", int(level))
	}
}

// caller resolves a record PC to file basename, function, and line.
func caller(pc uintptr) (file, function string, line int) {
	if pc == 0 {
		return "unknown", "unknown", 0
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	file = filepath.Base(frame.File)
	if frame.File == "" {
		file = "unknown"
	}
	function = frame.Function
	if function == "" {
		function = "unknown"
	} else if slash := strings.LastIndexByte(function, '/'); slash >= 0 {
		function = function[slash+1:]
	}
	return file, function, frame.Line
}

// encode writes fields as a compact JSON object with sorted keys and
// without HTML escaping, so the newline replacement stays readable.
func encode(fields map[string]string) string {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	// A map of strings always encodes.
	_ = encoder.Encode(fields)
	return strings.TrimSuffix(buffer.String(), "\n")
}
