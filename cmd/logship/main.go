// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/logship/lib/config"
	"github.com/bureau-foundation/logship/lib/logformat"
	"github.com/bureau-foundation/logship/lib/loggly"
	"github.com/bureau-foundation/logship/lib/logqueue"
	"github.com/bureau-foundation/logship/lib/process"
	"github.com/bureau-foundation/logship/lib/slogship"
	"github.com/bureau-foundation/logship/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath  string
	tag         string
	level       string
	raw         bool
	status      bool
	allowTTY    bool
	showVersion bool
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("logship", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "", "path to logship.yaml (default: $LOGSHIP_CONFIG)")
	flagSet.StringVar(&opts.tag, "tag", "", "log_tag attached to every event read from stdin")
	flagSet.StringVar(&opts.level, "level", "info", "log_level of events read from stdin (error, warning, info, debug, verbose)")
	flagSet.BoolVar(&opts.raw, "raw", false, "send lines as is instead of wrapping them in JSON events")
	flagSet.BoolVar(&opts.status, "status", false, "print the number of records waiting in the spool and exit")
	flagSet.BoolVar(&opts.allowTTY, "allow-tty", false, "read from an interactive terminal")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	if opts.showVersion {
		return version.Print(stdout, "logship")
	}

	lineLevel, err := parseLineLevel(opts.level)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(stderr, cfg.Log.Level)
	if err != nil {
		return err
	}

	compression, err := loggly.ParseCompression(cfg.Loggly.Compression)
	if err != nil {
		return err
	}
	client, err := loggly.NewClient(loggly.Config{
		Endpoint:      cfg.Loggly.Endpoint,
		APIKey:        cfg.Loggly.APIKey,
		Tags:          cfg.Loggly.Tags,
		Compression:   compression,
		UploadTimeout: cfg.Loggly.UploadTimeout,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	queue, err := logqueue.New(logqueue.Config{
		Path:            cfg.DatabasePath(),
		Synchronous:     cfg.Queue.Synchronous,
		Uploader:        client,
		BatchLimit:      cfg.Queue.BatchLimitBytes,
		PageSize:        cfg.Queue.PageSize,
		SaveThreshold:   cfg.Queue.SaveThreshold,
		FlushInterval:   cfg.Queue.FlushInterval,
		ShutdownTimeout: cfg.Queue.ShutdownTimeout,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Error("closing queue", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.status {
		pending, err := queue.Pending(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "%d records pending in %s\n", pending, cfg.DatabasePath())
		return err
	}

	if file, ok := stdin.(*os.File); ok && !opts.allowTTY && term.IsTerminal(int(file.Fd())) {
		return errors.New("stdin is a terminal; pipe logs into logship or pass --allow-tty")
	}

	formatter := logformat.New(logformat.Options{})
	var enqueue func(line string)
	if opts.raw {
		enqueue = func(line string) { queue.Enqueue(formatter.Scrub(line)) }
	} else {
		handler := slogship.New(queue, slogship.Options{
			Level:     logformat.LevelVerbose,
			Formatter: formatter,
		})
		enqueue = func(line string) {
			record := slog.NewRecord(time.Now(), lineLevel, line, 0)
			if opts.tag != "" {
				record.AddAttrs(slog.String(logformat.DefaultTagKey, opts.tag))
			}
			_ = handler.Handle(ctx, record)
		}
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	runDone := make(chan struct{})
	go func() {
		queue.Run(runCtx)
		close(runDone)
	}()

	logger.Info("logship running",
		"version", version.Short(),
		"database", cfg.DatabasePath(),
		"environment", cfg.Environment,
		"compression", compression.String(),
		"flush_interval", cfg.Queue.FlushInterval,
		"save_threshold", cfg.Queue.SaveThreshold,
	)

	lines, readErr := ship(ctx, stdin, enqueue)

	// Run makes the final flush once its context is cancelled.
	cancelRun()
	<-runDone

	stats := queue.Stats()
	logger.Info("logship stopped",
		"lines_read", lines,
		"records_uploaded", stats.Records,
		"batches_uploaded", stats.Batches,
		"flush_failures", stats.Failures,
	)
	if readErr != nil {
		return fmt.Errorf("reading stdin: %w", readErr)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// newLogger builds logship's own diagnostics logger: JSON on stderr,
// also installed as the slog default.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel}))
	slog.SetDefault(logger)
	return logger, nil
}

// parseLineLevel maps a --level name to the slog level that formats
// back to the same log_level.
func parseLineLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "error":
		return slog.LevelError, nil
	case "warning", "warn":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "verbose":
		return logformat.LevelVerbose, nil
	default:
		return 0, fmt.Errorf("--level: unknown level %q", name)
	}
}
