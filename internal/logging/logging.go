// Package logging builds the slog logger used by the CLI.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Options controls where log records go.
type Options struct {
	// Verbose sends debug records to Stderr.
	Verbose bool
	Stderr  io.Writer

	// File, when set, receives every record at debug level.
	File string
}

// New builds a logger from opts. The returned close function releases the
// log file, if any. With neither Verbose nor File set, records are discarded.
func New(opts Options) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }

	var handlers []slog.Handler
	if opts.Verbose {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		handlers = append(handlers, slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	closeFn := noop
	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, noop, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open log file: %w", err)
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closeFn = f.Close
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.DiscardHandler), noop, nil
	case 1:
		return slog.New(handlers[0]), closeFn, nil
	default:
		return slog.New(fanout(handlers)), closeFn, nil
	}
}
