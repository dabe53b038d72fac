// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Log formats accepted by [NewCommandLogger].
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// NewCommandLogger creates a structured logger for CLI command operations,
// writing to stderr at the given level. Format "text" and "json" select a
// handler directly; "auto" (or empty) uses slog.TextHandler when stderr is
// a terminal and slog.JSONHandler when it is piped or redirected.
//
// Callers scope the logger with command-specific context via With():
//
//	logger := cli.NewCommandLogger(level, format).With(
//	    "command", "compress",
//	    "input", inputPath,
//	)
func NewCommandLogger(level slog.Level, format string) (*slog.Logger, error) {
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level, format)
}

func newLogger(w io.Writer, terminal bool, level slog.Level, format string) (*slog.Logger, error) {
	options := &slog.HandlerOptions{Level: level}
	switch format {
	case "", FormatAuto:
		if terminal {
			return slog.New(slog.NewTextHandler(w, options)), nil
		}
		return slog.New(slog.NewJSONHandler(w, options)), nil
	case FormatText:
		return slog.New(slog.NewTextHandler(w, options)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want auto, text or json)", format)
	}
}
